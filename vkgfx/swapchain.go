// swapchain.go
package vkgfx

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/vkpace/vkpace"
)

// swapchain is one generation of the presentation image set together with
// the per-image resources derived from it. It implements vkpace.Swapchain.
type swapchain struct {
	device vk.Device

	chain        vk.Swapchain
	images       []vk.Image
	views        []vk.ImageView
	framebuffers []vk.Framebuffer
	format       vk.Format
	extent       vk.Extent2D
}

func (s *swapchain) ImageCount() int { return len(s.images) }

func (s *swapchain) Extent() vkpace.Extent2D {
	return vkpace.Extent2D{Width: s.extent.Width, Height: s.extent.Height}
}

func (s *swapchain) Acquire(signal vkpace.Semaphore) (vkpace.ImageIndex, error) {
	var idx uint32
	res := vk.AcquireNextImage(s.device, s.chain, ^uint64(0), signal.(vk.Semaphore), vk.NullFence, &idx)
	switch res {
	case vk.Success:
		return vkpace.ImageIndex(idx), nil
	case vk.Suboptimal:
		// The index is still usable; recreation follows the present.
		return vkpace.ImageIndex(idx), vkpace.ErrSuboptimal
	case vk.ErrorOutOfDate:
		return 0, vkpace.ErrOutOfDate
	default:
		return 0, errors.Wrap(vk.Error(res), "acquire next image")
	}
}

// Destroy releases the generation in reverse order of creation.
func (s *swapchain) Destroy() {
	for _, fb := range s.framebuffers {
		vk.DestroyFramebuffer(s.device, fb, nil)
	}
	for _, view := range s.views {
		vk.DestroyImageView(s.device, view, nil)
	}
	vk.DestroySwapchain(s.device, s.chain, nil)
}

// CreateSwapchain negotiates a new swapchain against the current surface
// state and builds its image views and framebuffers. It implements
// vkpace.SwapchainFactory on the backend; each call replaces
// backend.current with the new generation.
func (b *Backend) CreateSwapchain() (vkpace.Swapchain, error) {
	sup, err := querySurfaceSupport(b.physicalDevice, b.surface)
	if err != nil {
		return nil, err
	}
	if len(sup.formats) == 0 || len(sup.presentModes) == 0 {
		return nil, errors.New("surface offers no formats or present modes")
	}

	size := b.win.DrawableSize()
	format := chooseSurfaceFormat(sup.formats)
	presentMode := choosePresentMode(sup.presentModes)
	extent := chooseExtent(sup.capabilities, size.Width, size.Height)
	imageCount := chooseImageCount(sup.capabilities)

	sharingMode := vk.SharingModeExclusive
	var familyIndices []uint32
	if b.families.distinct() {
		sharingMode = vk.SharingModeConcurrent
		familyIndices = []uint32{b.families.graphics, b.families.present}
	}

	var chain vk.Swapchain
	res := vk.CreateSwapchain(b.device, &vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		Surface:               b.surface,
		MinImageCount:         imageCount,
		ImageFormat:           format.Format,
		ImageColorSpace:       format.ColorSpace,
		ImageExtent:           extent,
		ImageArrayLayers:      1,
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode:      sharingMode,
		QueueFamilyIndexCount: uint32(len(familyIndices)),
		PQueueFamilyIndices:   familyIndices,
		PreTransform:          sup.capabilities.CurrentTransform,
		CompositeAlpha:        vk.CompositeAlphaOpaqueBit,
		PresentMode:           presentMode,
		Clipped:               vk.True,
		OldSwapchain:          vk.NullSwapchain,
	}, nil, &chain)
	if res != vk.Success {
		return nil, errors.Wrap(vk.Error(res), "create swapchain")
	}

	s := &swapchain{
		device: b.device,
		chain:  chain,
		format: format.Format,
		extent: extent,
	}

	var count uint32
	vk.GetSwapchainImages(b.device, chain, &count, nil)
	s.images = make([]vk.Image, count)
	vk.GetSwapchainImages(b.device, chain, &count, s.images)

	if err := b.createImageViews(s); err != nil {
		s.Destroy()
		return nil, err
	}
	if err := b.createFramebuffers(s); err != nil {
		s.Destroy()
		return nil, err
	}

	b.current = s
	return s, nil
}

func (b *Backend) createImageViews(s *swapchain) error {
	s.views = make([]vk.ImageView, 0, len(s.images))
	for i, img := range s.images {
		var view vk.ImageView
		res := vk.CreateImageView(b.device, &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   s.format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}, nil, &view)
		if res != vk.Success {
			return errors.Wrapf(vk.Error(res), "image view %d", i)
		}
		s.views = append(s.views, view)
	}
	return nil
}

func (b *Backend) createFramebuffers(s *swapchain) error {
	s.framebuffers = make([]vk.Framebuffer, 0, len(s.views))
	for i, view := range s.views {
		var fb vk.Framebuffer
		res := vk.CreateFramebuffer(b.device, &vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      b.renderPass,
			AttachmentCount: 1,
			PAttachments:    []vk.ImageView{view},
			Width:           s.extent.Width,
			Height:          s.extent.Height,
			Layers:          1,
		}, nil, &fb)
		if res != vk.Success {
			return errors.Wrapf(vk.Error(res), "framebuffer %d", i)
		}
		s.framebuffers = append(s.framebuffers, fb)
	}
	return nil
}

// chooseSurfaceFormat prefers sRGB B8G8R8A8 and falls back to whatever the
// surface lists first.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Srgb &&
			format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

// choosePresentMode prefers mailbox for low latency without tearing. FIFO
// is the guaranteed fallback.
func choosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}
	return vk.PresentModeFifo
}

// chooseExtent honors the surface's current extent unless the window
// system leaves it up to us, in which case the drawable size is clamped
// into the allowed range.
func chooseExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != 0xFFFFFFFF {
		return caps.CurrentExtent
	}

	extent := vk.Extent2D{Width: width, Height: height}
	extent.Width = clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	extent.Height = clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	return extent
}

// chooseImageCount asks for one image beyond the minimum, capped at the
// surface maximum (zero means unlimited).
func chooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func clamp(val, min, max uint32) uint32 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
