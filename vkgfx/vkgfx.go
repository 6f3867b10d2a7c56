// vkgfx.go

// Package vkgfx is the Vulkan resource factory behind the vkpace pacing
// core: instance, device, swapchain, pipeline and the per-frame recorder,
// windowed through SDL2.
package vkgfx

import (
	"log"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/vkpace/vkpace"
)

// Backend owns every Vulkan object with a whole-application lifetime and
// implements vkpace.Backend. Swapchain generations come and go through
// CreateSwapchain; everything here survives them.
type Backend struct {
	win *Window

	instance       vk.Instance
	surface        vk.Surface
	physicalDevice vk.PhysicalDevice
	families       queueFamilies
	device         vk.Device
	graphicsQueue  vk.Queue
	presentQueue   vk.Queue

	renderPass          vk.RenderPass
	descriptorSetLayout vk.DescriptorSetLayout
	pipelineLayout      vk.PipelineLayout
	pipeline            vk.Pipeline

	commandPool    vk.CommandPool
	commandBuffers []vk.CommandBuffer
	descriptorPool vk.DescriptorPool
	descriptorSets []vk.DescriptorSet

	vertexBuffer   vk.Buffer
	vertexMemory   vk.DeviceMemory
	indexBuffer    vk.Buffer
	indexMemory    vk.DeviceMemory
	uniformBuffers []vk.Buffer
	uniformMemory  []vk.DeviceMemory
	uniformMapped  []unsafe.Pointer

	textureImage   vk.Image
	textureMemory  vk.DeviceMemory
	textureView    vk.ImageView
	textureSampler vk.Sampler

	current *swapchain

	dev *gpu
	q   *queues
	rec *recorder
}

// New runs the one-shot Vulkan setup over an already-open window. The
// returned backend plugs straight into vkpace.NewApp.
func New(win *Window, cfg vkpace.Config) (*Backend, error) {
	cfg = cfg.WithDefaults()
	b := &Backend{win: win}
	b.dev = &gpu{}
	b.q = &queues{backend: b}
	b.rec = &recorder{backend: b}

	instance, err := createInstance(win, cfg.Title, cfg.EnableValidation)
	if err != nil {
		return nil, err
	}
	b.instance = instance

	b.surface, err = win.createSurface(instance)
	if err != nil {
		b.Close()
		return nil, err
	}

	b.physicalDevice, b.families, err = pickPhysicalDevice(instance, b.surface)
	if err != nil {
		b.Close()
		return nil, err
	}

	b.device, b.graphicsQueue, b.presentQueue, err = createLogicalDevice(b.physicalDevice, b.families)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.dev.device = b.device
	b.q.graphics = b.graphicsQueue
	b.q.present = b.presentQueue

	// The surface format is stable across resizes, so the render pass and
	// pipeline are built once, up front.
	sup, err := querySurfaceSupport(b.physicalDevice, b.surface)
	if err != nil {
		b.Close()
		return nil, err
	}
	format := chooseSurfaceFormat(sup.formats)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"render pass", func() error { return b.createRenderPass(format.Format) }},
		{"descriptor set layout", b.createDescriptorSetLayout},
		{"graphics pipeline", b.createGraphicsPipeline},
		{"command pool", b.createCommandPool},
		{"command buffers", func() error { return b.createCommandBuffers(cfg.FramesInFlight) }},
		{"vertex buffer", b.createVertexBuffer},
		{"index buffer", b.createIndexBuffer},
		{"texture", b.createTexture},
		{"uniform buffers", func() error { return b.createUniformBuffers(cfg.FramesInFlight) }},
		{"descriptor pool", func() error { return b.createDescriptorPool(cfg.FramesInFlight) }},
		{"descriptor sets", func() error { return b.createDescriptorSets(cfg.FramesInFlight) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			b.Close()
			return nil, errors.Wrap(err, step.name)
		}
	}

	log.Printf("vkgfx: backend ready, %d frames in flight", cfg.FramesInFlight)
	return b, nil
}

func (b *Backend) Device() vkpace.Device                     { return b.dev }
func (b *Backend) Queue() vkpace.Queue                       { return b.q }
func (b *Backend) SwapchainFactory() vkpace.SwapchainFactory { return b }
func (b *Backend) Recorder() vkpace.FrameRecorder            { return b.rec }

// Close releases all whole-application resources in reverse creation
// order. The pacing layer has already destroyed the swapchain and sync
// primitives and made the device idle by the time this runs.
func (b *Backend) Close() {
	if b.device != nil {
		for i := range b.uniformBuffers {
			vk.UnmapMemory(b.device, b.uniformMemory[i])
			vk.DestroyBuffer(b.device, b.uniformBuffers[i], nil)
			vk.FreeMemory(b.device, b.uniformMemory[i], nil)
		}
		b.uniformBuffers, b.uniformMemory, b.uniformMapped = nil, nil, nil

		if b.textureSampler != vk.NullSampler {
			vk.DestroySampler(b.device, b.textureSampler, nil)
		}
		if b.textureView != vk.NullImageView {
			vk.DestroyImageView(b.device, b.textureView, nil)
		}
		if b.textureImage != vk.NullImage {
			vk.DestroyImage(b.device, b.textureImage, nil)
			vk.FreeMemory(b.device, b.textureMemory, nil)
		}

		if b.indexBuffer != vk.NullBuffer {
			vk.DestroyBuffer(b.device, b.indexBuffer, nil)
			vk.FreeMemory(b.device, b.indexMemory, nil)
		}
		if b.vertexBuffer != vk.NullBuffer {
			vk.DestroyBuffer(b.device, b.vertexBuffer, nil)
			vk.FreeMemory(b.device, b.vertexMemory, nil)
		}

		if b.descriptorPool != vk.NullDescriptorPool {
			vk.DestroyDescriptorPool(b.device, b.descriptorPool, nil)
		}
		if b.commandPool != nil {
			vk.DestroyCommandPool(b.device, b.commandPool, nil)
		}

		if b.pipeline != nil {
			vk.DestroyPipeline(b.device, b.pipeline, nil)
		}
		if b.pipelineLayout != nil {
			vk.DestroyPipelineLayout(b.device, b.pipelineLayout, nil)
		}
		if b.descriptorSetLayout != vk.NullDescriptorSetLayout {
			vk.DestroyDescriptorSetLayout(b.device, b.descriptorSetLayout, nil)
		}
		if b.renderPass != vk.NullRenderPass {
			vk.DestroyRenderPass(b.device, b.renderPass, nil)
		}

		vk.DestroyDevice(b.device, nil)
		b.device = nil
	}
	if b.surface != vk.NullSurface {
		vk.DestroySurface(b.instance, b.surface, nil)
		b.surface = vk.NullSurface
	}
	if b.instance != nil {
		vk.DestroyInstance(b.instance, nil)
		b.instance = nil
	}
}
