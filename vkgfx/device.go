// device.go
package vkgfx

import (
	"math"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/vkpace/vkpace"
)

// createLogicalDevice builds the device with one queue per distinct family
// and returns the graphics and present queue handles.
func createLogicalDevice(pd vk.PhysicalDevice, fams queueFamilies) (vk.Device, vk.Queue, vk.Queue, error) {
	families := []uint32{fams.graphics}
	if fams.distinct() {
		families = append(families, fams.present)
	}

	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(families))
	for _, fam := range families {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: fam,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	var device vk.Device
	res := vk.CreateDevice(pd, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
		PpEnabledExtensionNames: terminatedStrs(deviceExtensions),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
	}, nil, &device)
	if res != vk.Success {
		return nil, nil, nil, errors.Wrap(vk.Error(res), "create device")
	}

	var graphicsQ, presentQ vk.Queue
	vk.GetDeviceQueue(device, fams.graphics, 0, &graphicsQ)
	vk.GetDeviceQueue(device, fams.present, 0, &presentQ)
	return device, graphicsQ, presentQ, nil
}

// stale maps the two recoverable swapchain results onto the pacing
// sentinels. Any other non-success result is fatal.
func stale(res vk.Result) error {
	switch res {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate:
		return vkpace.ErrOutOfDate
	case vk.Suboptimal:
		return vkpace.ErrSuboptimal
	default:
		return vk.Error(res)
	}
}

// gpu implements vkpace.Device over a Vulkan logical device.
type gpu struct {
	device vk.Device
}

func (g *gpu) NewSemaphore() (vkpace.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var sem vk.Semaphore
	if res := vk.CreateSemaphore(g.device, &info, nil, &sem); res != vk.Success {
		return nil, errors.Wrap(vk.Error(res), "create semaphore")
	}
	return sem, nil
}

func (g *gpu) NewFence(signaled bool) (vkpace.Fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if res := vk.CreateFence(g.device, &info, nil, &fence); res != vk.Success {
		return nil, errors.Wrap(vk.Error(res), "create fence")
	}
	return fence, nil
}

func (g *gpu) FreeSemaphore(s vkpace.Semaphore) {
	vk.DestroySemaphore(g.device, s.(vk.Semaphore), nil)
}

func (g *gpu) FreeFence(f vkpace.Fence) {
	vk.DestroyFence(g.device, f.(vk.Fence), nil)
}

func (g *gpu) WaitFence(f vkpace.Fence) error {
	res := vk.WaitForFences(g.device, 1, []vk.Fence{f.(vk.Fence)}, vk.True, math.MaxUint64)
	if res != vk.Success {
		return errors.Wrap(vk.Error(res), "wait for fence")
	}
	return nil
}

func (g *gpu) ResetFence(f vkpace.Fence) error {
	if res := vk.ResetFences(g.device, 1, []vk.Fence{f.(vk.Fence)}); res != vk.Success {
		return errors.Wrap(vk.Error(res), "reset fence")
	}
	return nil
}

func (g *gpu) WaitIdle() error {
	if res := vk.DeviceWaitIdle(g.device); res != vk.Success {
		return errors.Wrap(vk.Error(res), "device wait idle")
	}
	return nil
}

// queues implements vkpace.Queue over the graphics and present queue
// handles. It reaches back into the backend for the per-slot command
// buffers and the live swapchain handle.
type queues struct {
	backend  *Backend
	graphics vk.Queue
	present  vk.Queue
}

func (q *queues) Submit(slot vkpace.FrameSlot, img vkpace.ImageIndex, wait, signal vkpace.Semaphore, fence vkpace.Fence) error {
	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait.(vk.Semaphore)},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{q.backend.commandBuffers[slot]},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signal.(vk.Semaphore)},
	}
	res := vk.QueueSubmit(q.graphics, 1, []vk.SubmitInfo{submit}, fence.(vk.Fence))
	if res != vk.Success {
		return errors.Wrap(vk.Error(res), "queue submit")
	}
	return nil
}

func (q *queues) Present(img vkpace.ImageIndex, wait vkpace.Semaphore) error {
	res := vk.QueuePresent(q.present, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait.(vk.Semaphore)},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{q.backend.current.chain},
		PImageIndices:      []uint32{uint32(img)},
	})
	return stale(res)
}
