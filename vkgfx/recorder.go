// recorder.go
package vkgfx

import (
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/xlab/linmath"

	"github.com/vkpace/vkpace"
)

func (b *Backend) createCommandPool() error {
	var pool vk.CommandPool
	res := vk.CreateCommandPool(b.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: b.families.graphics,
	}, nil, &pool)
	if res != vk.Success {
		return errors.Wrap(vk.Error(res), "create command pool")
	}
	b.commandPool = pool
	return nil
}

func (b *Backend) createCommandBuffers(slots int) error {
	buffers := make([]vk.CommandBuffer, slots)
	res := vk.AllocateCommandBuffers(b.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        b.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(slots),
	}, buffers)
	if res != vk.Success {
		return errors.Wrap(vk.Error(res), "allocate command buffers")
	}
	b.commandBuffers = buffers
	return nil
}

func (b *Backend) createDescriptorPool(slots int) error {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: uint32(slots)},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: uint32(slots)},
	}

	var pool vk.DescriptorPool
	res := vk.CreateDescriptorPool(b.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       uint32(slots),
	}, nil, &pool)
	if res != vk.Success {
		return errors.Wrap(vk.Error(res), "create descriptor pool")
	}
	b.descriptorPool = pool
	return nil
}

func (b *Backend) createDescriptorSets(slots int) error {
	layouts := make([]vk.DescriptorSetLayout, slots)
	for i := range layouts {
		layouts[i] = b.descriptorSetLayout
	}

	b.descriptorSets = make([]vk.DescriptorSet, slots)
	res := vk.AllocateDescriptorSets(b.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     b.descriptorPool,
		DescriptorSetCount: uint32(slots),
		PSetLayouts:        layouts,
	}, &b.descriptorSets[0])
	if res != vk.Success {
		return errors.Wrap(vk.Error(res), "allocate descriptor sets")
	}

	for i := 0; i < slots; i++ {
		writes := []vk.WriteDescriptorSet{
			{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          b.descriptorSets[i],
				DstBinding:      0,
				DescriptorType:  vk.DescriptorTypeUniformBuffer,
				DescriptorCount: 1,
				PBufferInfo: []vk.DescriptorBufferInfo{{
					Buffer: b.uniformBuffers[i],
					Range:  vk.DeviceSize(vk.WholeSize),
				}},
			},
			{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          b.descriptorSets[i],
				DstBinding:      1,
				DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,
				PImageInfo: []vk.DescriptorImageInfo{{
					ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
					ImageView:   b.textureView,
					Sampler:     b.textureSampler,
				}},
			},
		}
		vk.UpdateDescriptorSets(b.device, uint32(len(writes)), writes, 0, nil)
	}
	return nil
}

// recorder implements vkpace.FrameRecorder over the backend's per-slot
// command buffers and mapped uniform buffers.
type recorder struct {
	backend *Backend
}

// UpdateDynamicState writes this frame's transforms into the slot's mapped
// uniform buffer. The quad spins around Z at one radian per second.
func (r *recorder) UpdateDynamicState(slot vkpace.FrameSlot, elapsed time.Duration) error {
	b := r.backend
	extent := b.current.extent

	var ubo uniformObject
	ubo.model.Identity()
	ubo.model.RotateZ(&ubo.model, float32(elapsed.Seconds()))
	ubo.view.LookAt(
		&linmath.Vec3{2, 2, 2},
		&linmath.Vec3{0, 0, 0},
		&linmath.Vec3{0, 0, 1},
	)

	aspect := float32(extent.Width) / float32(extent.Height)
	ubo.proj.Perspective(45, aspect, 0.1, 10)
	// Vulkan's clip-space Y points down; flip what Perspective assumes.
	ubo.proj[1][1] *= -1

	data := rawBytes(unsafe.Pointer(&ubo), int(unsafe.Sizeof(ubo)))
	vk.Memcopy(b.uniformMapped[slot], data)
	return nil
}

// RecordFrame re-records the slot's command buffer to draw the quad into
// the framebuffer of the acquired image.
func (r *recorder) RecordFrame(slot vkpace.FrameSlot, img vkpace.ImageIndex) error {
	b := r.backend
	cmd := b.commandBuffers[slot]
	extent := b.current.extent

	if res := vk.ResetCommandBuffer(cmd, 0); res != vk.Success {
		return errors.Wrap(vk.Error(res), "reset command buffer")
	}
	res := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	})
	if res != vk.Success {
		return errors.Wrap(vk.Error(res), "begin command buffer")
	}

	clearValues := []vk.ClearValue{vk.NewClearValue([]float32{0.02, 0.02, 0.04, 1})}
	vk.CmdBeginRenderPass(cmd, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  b.renderPass,
		Framebuffer: b.current.framebuffers[img],
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}, vk.SubpassContentsInline)

	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, b.pipeline)

	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}})

	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{b.vertexBuffer}, []vk.DeviceSize{0})
	vk.CmdBindIndexBuffer(cmd, b.indexBuffer, 0, vk.IndexTypeUint16)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, b.pipelineLayout,
		0, 1, []vk.DescriptorSet{b.descriptorSets[slot]}, 0, nil)

	vk.CmdDrawIndexed(cmd, uint32(len(quadIndices)), 1, 0, 0, 0)
	vk.CmdEndRenderPass(cmd)

	if res := vk.EndCommandBuffer(cmd); res != vk.Success {
		return errors.Wrap(vk.Error(res), "end command buffer")
	}
	return nil
}
