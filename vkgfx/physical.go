// physical.go
package vkgfx

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

var deviceExtensions = []string{"VK_KHR_swapchain"}

// queueFamilies holds the queue family indices the renderer needs. The
// graphics and present families may or may not be the same index.
type queueFamilies struct {
	graphics uint32
	present  uint32
	found    bool
}

func (q queueFamilies) distinct() bool { return q.graphics != q.present }

// findQueueFamilies looks for a graphics-capable family and a family able
// to present to surface, preferring a single family that does both.
func findQueueFamilies(pd vk.PhysicalDevice, surface vk.Surface) queueFamilies {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, props)

	var out queueFamilies
	haveGraphics, havePresent := false, false
	for i := range props {
		props[i].Deref()

		graphics := props[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0

		var supported vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), surface, &supported)
		present := supported == vk.True

		if graphics && present {
			out.graphics = uint32(i)
			out.present = uint32(i)
			out.found = true
			return out
		}
		if graphics && !haveGraphics {
			out.graphics = uint32(i)
			haveGraphics = true
		}
		if present && !havePresent {
			out.present = uint32(i)
			havePresent = true
		}
	}
	out.found = haveGraphics && havePresent
	return out
}

// surfaceSupport is a snapshot of what the surface can do on a device.
type surfaceSupport struct {
	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
}

func querySurfaceSupport(pd vk.PhysicalDevice, surface vk.Surface) (surfaceSupport, error) {
	var sup surfaceSupport

	res := vk.GetPhysicalDeviceSurfaceCapabilities(pd, surface, &sup.capabilities)
	if res != vk.Success {
		return sup, errors.Wrap(vk.Error(res), "surface capabilities")
	}
	sup.capabilities.Deref()
	sup.capabilities.CurrentExtent.Deref()
	sup.capabilities.MinImageExtent.Deref()
	sup.capabilities.MaxImageExtent.Deref()

	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &count, nil)
	if count > 0 {
		sup.formats = make([]vk.SurfaceFormat, count)
		vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &count, sup.formats)
		for i := range sup.formats {
			sup.formats[i].Deref()
		}
	}

	vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &count, nil)
	if count > 0 {
		sup.presentModes = make([]vk.PresentMode, count)
		vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &count, sup.presentModes)
	}

	return sup, nil
}

func checkDeviceExtensions(pd vk.PhysicalDevice) bool {
	var count uint32
	if vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil) != vk.Success {
		return false
	}
	exts := make([]vk.ExtensionProperties, count)
	if vk.EnumerateDeviceExtensionProperties(pd, "", &count, exts) != vk.Success {
		return false
	}

	available := map[string]bool{}
	for i := range exts {
		exts[i].Deref()
		available[vk.ToString(exts[i].ExtensionName[:])] = true
	}
	for _, want := range deviceExtensions {
		if !available[want] {
			return false
		}
	}
	return true
}

// pickPhysicalDevice scores the available GPUs and returns the best one
// that can render to and present on surface. Discrete GPUs win over
// integrated ones.
func pickPhysicalDevice(instance vk.Instance, surface vk.Surface) (vk.PhysicalDevice, queueFamilies, error) {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(instance, &count, nil); res != vk.Success {
		return nil, queueFamilies{}, errors.Wrap(vk.Error(res), "enumerate devices")
	}
	if count == 0 {
		return nil, queueFamilies{}, errors.New("no Vulkan-capable GPU found")
	}
	devices := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(instance, &count, devices)

	var (
		best      vk.PhysicalDevice
		bestFams  queueFamilies
		bestScore uint32
	)
	for _, pd := range devices {
		fams := findQueueFamilies(pd, surface)
		if !fams.found || !checkDeviceExtensions(pd) {
			continue
		}
		sup, err := querySurfaceSupport(pd, surface)
		if err != nil || len(sup.formats) == 0 || len(sup.presentModes) == 0 {
			continue
		}

		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()

		score := uint32(1)
		if props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			score += 1000
		}
		if score > bestScore {
			best, bestFams, bestScore = pd, fams, score
		}
	}
	if best == nil {
		return nil, queueFamilies{}, errors.New("no suitable GPU found")
	}
	return best, bestFams, nil
}
