// instance.go
package vkgfx

import (
	"log"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

// createInstance builds the Vulkan instance with the extensions the window
// asks for, plus the validation layer when requested and available.
func createInstance(win *Window, appName string, validation bool) (vk.Instance, error) {
	exts := win.requiredExtensions()

	layers := []string{}
	if validation {
		if checkValidationSupport() {
			layers = validationLayers
		} else {
			log.Println("validation layer not available, continuing without it")
		}
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   safeString(appName),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        safeString("vkpace"),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 1, 0),
	}

	var instance vk.Instance
	res := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     terminatedStrs(layers),
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: terminatedStrs(exts),
	}, nil, &instance)
	if res != vk.Success {
		return nil, errors.Wrap(vk.Error(res), "create instance")
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, errors.Wrap(err, "init instance proc addrs")
	}
	return instance, nil
}

func checkValidationSupport() bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, layers) != vk.Success {
		return false
	}

	available := map[string]bool{}
	for i := range layers {
		layers[i].Deref()
		available[vk.ToString(layers[i].LayerName[:])] = true
	}
	for _, want := range validationLayers {
		if !available[want] {
			return false
		}
	}
	return true
}

// terminatedStrs null-terminates every string, as the C side expects.
func terminatedStrs(strs []string) []string {
	out := make([]string, len(strs))
	for i, s := range strs {
		out[i] = safeString(s)
	}
	return out
}

func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}
