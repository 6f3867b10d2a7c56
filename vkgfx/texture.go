// texture.go
package vkgfx

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

const (
	texSize  = 256
	texCells = 8
)

// checkerboardPixels generates an RGBA checkerboard so the demo needs no
// asset files.
func checkerboardPixels() []byte {
	const cell = texSize / texCells
	pix := make([]byte, texSize*texSize*4)
	for y := 0; y < texSize; y++ {
		for x := 0; x < texSize; x++ {
			i := (y*texSize + x) * 4
			if (x/cell+y/cell)%2 == 0 {
				pix[i], pix[i+1], pix[i+2] = 230, 230, 230
			} else {
				pix[i], pix[i+1], pix[i+2] = 40, 60, 110
			}
			pix[i+3] = 255
		}
	}
	return pix
}

func (b *Backend) createImage(width, height uint32, format vk.Format,
	usage vk.ImageUsageFlags, properties vk.MemoryPropertyFlags,
	image *vk.Image, memory *vk.DeviceMemory) error {

	res := vk.CreateImage(b.device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Extent:        vk.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		Samples:       vk.SampleCount1Bit,
	}, nil, image)
	if res != vk.Success {
		return errors.Wrap(vk.Error(res), "create image")
	}

	var memReq vk.MemoryRequirements
	vk.GetImageMemoryRequirements(b.device, *image, &memReq)
	memReq.Deref()

	memType, err := b.findMemoryType(memReq.MemoryTypeBits, properties)
	if err != nil {
		return err
	}

	res = vk.AllocateMemory(b.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReq.Size,
		MemoryTypeIndex: memType,
	}, nil, memory)
	if res != vk.Success {
		return errors.Wrap(vk.Error(res), "allocate image memory")
	}

	if res := vk.BindImageMemory(b.device, *image, *memory, 0); res != vk.Success {
		return errors.Wrap(vk.Error(res), "bind image memory")
	}
	return nil
}

func (b *Backend) transitionImageLayout(image vk.Image, oldLayout, newLayout vk.ImageLayout) error {
	cmd, err := b.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlags
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	default:
		return errors.Errorf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	}

	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})

	return b.endSingleTimeCommands(cmd)
}

func (b *Backend) copyBufferToImage(buffer vk.Buffer, image vk.Image, width, height uint32) error {
	cmd, err := b.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cmd, buffer, image, vk.ImageLayoutTransferDstOptimal,
		1, []vk.BufferImageCopy{region})

	return b.endSingleTimeCommands(cmd)
}

// createTexture uploads the generated checkerboard through a staging
// buffer and leaves the image in shader-read-only layout.
func (b *Backend) createTexture() error {
	pixels := checkerboardPixels()
	size := vk.DeviceSize(len(pixels))

	var staging vk.Buffer
	var stagingMemory vk.DeviceMemory
	err := b.createBuffer(size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit),
		&staging, &stagingMemory)
	if err != nil {
		return errors.Wrap(err, "texture staging buffer")
	}
	defer func() {
		vk.DestroyBuffer(b.device, staging, nil)
		vk.FreeMemory(b.device, stagingMemory, nil)
	}()

	var ptr unsafe.Pointer
	vk.MapMemory(b.device, stagingMemory, 0, size, 0, &ptr)
	vk.Memcopy(ptr, pixels)
	vk.UnmapMemory(b.device, stagingMemory)

	err = b.createImage(texSize, texSize, vk.FormatR8g8b8a8Srgb,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)|vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		&b.textureImage, &b.textureMemory)
	if err != nil {
		return errors.Wrap(err, "texture image")
	}

	if err := b.transitionImageLayout(b.textureImage,
		vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
		return err
	}
	if err := b.copyBufferToImage(staging, b.textureImage, texSize, texSize); err != nil {
		return err
	}
	if err := b.transitionImageLayout(b.textureImage,
		vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal); err != nil {
		return err
	}

	var view vk.ImageView
	res := vk.CreateImageView(b.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    b.textureImage,
		ViewType: vk.ImageViewType2d,
		Format:   vk.FormatR8g8b8a8Srgb,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if res != vk.Success {
		return errors.Wrap(vk.Error(res), "texture image view")
	}
	b.textureView = view

	var sampler vk.Sampler
	res = vk.CreateSampler(b.device, &vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vk.FilterLinear,
		MinFilter:    vk.FilterLinear,
		AddressModeU: vk.SamplerAddressModeRepeat,
		AddressModeV: vk.SamplerAddressModeRepeat,
		AddressModeW: vk.SamplerAddressModeRepeat,
		MipmapMode:   vk.SamplerMipmapModeLinear,
		CompareOp:    vk.CompareOpAlways,
	}, nil, &sampler)
	if res != vk.Success {
		return errors.Wrap(vk.Error(res), "texture sampler")
	}
	b.textureSampler = sampler

	return nil
}
