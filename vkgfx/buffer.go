// buffer.go
package vkgfx

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/xlab/linmath"
)

// Vertex is the interleaved per-vertex layout fed to the vertex shader.
type Vertex struct {
	Pos      linmath.Vec3
	Color    linmath.Vec3
	TexCoord linmath.Vec2
}

// The quad, counter-clockwise, drawn with six indices.
var quadVertices = []Vertex{
	{Pos: linmath.Vec3{-0.5, -0.5, 0}, Color: linmath.Vec3{1, 1, 1}, TexCoord: linmath.Vec2{0, 0}},
	{Pos: linmath.Vec3{0.5, -0.5, 0}, Color: linmath.Vec3{1, 1, 1}, TexCoord: linmath.Vec2{1, 0}},
	{Pos: linmath.Vec3{0.5, 0.5, 0}, Color: linmath.Vec3{1, 1, 1}, TexCoord: linmath.Vec2{1, 1}},
	{Pos: linmath.Vec3{-0.5, 0.5, 0}, Color: linmath.Vec3{1, 1, 1}, TexCoord: linmath.Vec2{0, 1}},
}

var quadIndices = []uint16{0, 1, 2, 2, 3, 0}

// uniformObject matches the uniform block in the vertex shader.
type uniformObject struct {
	model linmath.Mat4x4
	view  linmath.Mat4x4
	proj  linmath.Mat4x4
}

func vertexBindingDescription() vk.VertexInputBindingDescription {
	return vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(Vertex{})),
		InputRate: vk.VertexInputRateVertex,
	}
}

func vertexAttributeDescriptions() [3]vk.VertexInputAttributeDescription {
	return [3]vk.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Pos)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Color)),
		},
		{
			Binding:  0,
			Location: 2,
			Format:   vk.FormatR32g32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.TexCoord)),
		},
	}
}

// createBuffer allocates a buffer with backing memory of the requested
// properties and binds the two together.
func (b *Backend) createBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags,
	properties vk.MemoryPropertyFlags, buffer *vk.Buffer, memory *vk.DeviceMemory) error {

	res := vk.CreateBuffer(b.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}, nil, buffer)
	if res != vk.Success {
		return errors.Wrap(vk.Error(res), "create buffer")
	}

	var memReq vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.device, *buffer, &memReq)
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
		return errors.Wrap(vk.Error(res), "allocate buffer memory")
	}

	if res := vk.BindBufferMemory(b.device, *buffer, *memory, 0); res != vk.Success {
		return errors.Wrap(vk.Error(res), "bind buffer memory")
	}
	return nil
}

func (b *Backend) findMemoryType(typeFilter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(b.physicalDevice, &memProps)
	memProps.Deref()

	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		memType := memProps.MemoryTypes[i]
		memType.Deref()

		if typeFilter&(1<<i) == 0 {
			continue
		}
		if memType.PropertyFlags&properties != properties {
			continue
		}
		return i, nil
	}
	return 0, errors.New("no suitable memory type")
}

// beginSingleTimeCommands starts a throwaway command buffer for setup
// transfers.
func (b *Backend) beginSingleTimeCommands() (vk.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, 1)
	res := vk.AllocateCommandBuffers(b.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        b.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers)
	if res != vk.Success {
		return nil, errors.Wrap(vk.Error(res), "allocate transfer command buffer")
	}

	res = vk.BeginCommandBuffer(buffers[0], &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if res != vk.Success {
		return nil, errors.Wrap(vk.Error(res), "begin transfer command buffer")
	}
	return buffers[0], nil
}

// endSingleTimeCommands submits the transfer and blocks until the queue
// drains. Setup-time only; the render loop never calls it.
func (b *Backend) endSingleTimeCommands(cmd vk.CommandBuffer) error {
	if res := vk.EndCommandBuffer(cmd); res != vk.Success {
		return errors.Wrap(vk.Error(res), "end transfer command buffer")
	}

	res := vk.QueueSubmit(b.graphicsQueue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}}, vk.NullFence)
	if res != vk.Success {
		return errors.Wrap(vk.Error(res), "submit transfer")
	}
	if res := vk.QueueWaitIdle(b.graphicsQueue); res != vk.Success {
		return errors.Wrap(vk.Error(res), "wait for transfer")
	}

	vk.FreeCommandBuffers(b.device, b.commandPool, 1, []vk.CommandBuffer{cmd})
	return nil
}

func (b *Backend) copyBuffer(src, dst vk.Buffer, size vk.DeviceSize) error {
	cmd, err := b.beginSingleTimeCommands()
	if err != nil {
		return err
	}
	vk.CmdCopyBuffer(cmd, src, dst, 1, []vk.BufferCopy{{Size: size}})
	return b.endSingleTimeCommands(cmd)
}

// uploadBuffer creates a device-local buffer and fills it through a
// host-visible staging buffer.
func (b *Backend) uploadBuffer(data []byte, usage vk.BufferUsageFlags,
	buffer *vk.Buffer, memory *vk.DeviceMemory) error {

	size := vk.DeviceSize(len(data))

	var staging vk.Buffer
	var stagingMemory vk.DeviceMemory
	err := b.createBuffer(size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit),
		&staging, &stagingMemory)
	if err != nil {
		return errors.Wrap(err, "staging buffer")
	}
	defer func() {
		vk.DestroyBuffer(b.device, staging, nil)
		vk.FreeMemory(b.device, stagingMemory, nil)
	}()

	var ptr unsafe.Pointer
	vk.MapMemory(b.device, stagingMemory, 0, size, 0, &ptr)
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(b.device, stagingMemory)

	err = b.createBuffer(size,
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)|usage,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		buffer, memory)
	if err != nil {
		return err
	}
	return b.copyBuffer(staging, *buffer, size)
}

func (b *Backend) createVertexBuffer() error {
	data := rawBytes(unsafe.Pointer(&quadVertices[0]),
		len(quadVertices)*int(unsafe.Sizeof(Vertex{})))
	err := b.uploadBuffer(data,
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit),
		&b.vertexBuffer, &b.vertexMemory)
	return errors.Wrap(err, "vertex buffer")
}

func (b *Backend) createIndexBuffer() error {
	data := rawBytes(unsafe.Pointer(&quadIndices[0]), len(quadIndices)*2)
	err := b.uploadBuffer(data,
		vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit),
		&b.indexBuffer, &b.indexMemory)
	return errors.Wrap(err, "index buffer")
}

// createUniformBuffers allocates one host-visible uniform buffer per frame
// slot and keeps it persistently mapped for per-frame updates.
func (b *Backend) createUniformBuffers(slots int) error {
	size := vk.DeviceSize(unsafe.Sizeof(uniformObject{}))

	for i := 0; i < slots; i++ {
		var buffer vk.Buffer
		var memory vk.DeviceMemory
		err := b.createBuffer(size,
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|
				vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit),
			&buffer, &memory)
		if err != nil {
			return errors.Wrapf(err, "uniform buffer %d", i)
		}

		var ptr unsafe.Pointer
		vk.MapMemory(b.device, memory, 0, size, 0, &ptr)

		b.uniformBuffers = append(b.uniformBuffers, buffer)
		b.uniformMemory = append(b.uniformMemory, memory)
		b.uniformMapped = append(b.uniformMapped, ptr)
	}
	return nil
}

// rawBytes views a struct slice as its underlying bytes for upload.
func rawBytes(ptr unsafe.Pointer, size int) []byte {
	return unsafe.Slice((*byte)(ptr), size)
}
