// window.go
package vkgfx

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/vkpace/vkpace"
)

// Window wraps an SDL window with a Vulkan-capable surface. It implements
// vkpace.EventWindow.
type Window struct {
	win *sdl.Window
}

// NewWindow initializes SDL, loads the Vulkan loader through SDL's proc
// address, and opens a resizable Vulkan window.
func NewWindow(cfg vkpace.Config) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, errors.Wrap(err, "init SDL")
	}

	win, err := sdl.CreateWindow(
		cfg.Title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		cfg.Width,
		cfg.Height,
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE|sdl.WINDOW_VULKAN,
	)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}

	vk.SetGetInstanceProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err := vk.Init(); err != nil {
		win.Destroy()
		sdl.Quit()
		return nil, errors.Wrap(err, "init Vulkan")
	}

	return &Window{win: win}, nil
}

// DrawableSize returns the Vulkan drawable extent. Both dimensions are
// zero while the window is minimized.
func (w *Window) DrawableSize() vkpace.Extent2D {
	width, height := w.win.VulkanGetDrawableSize()
	if width < 0 || height < 0 {
		return vkpace.Extent2D{}
	}
	return vkpace.Extent2D{Width: uint32(width), Height: uint32(height)}
}

// WaitEvent blocks until SDL delivers any event.
func (w *Window) WaitEvent() {
	sdl.WaitEvent()
}

// Poll drains one SDL event and maps it onto the pacing event set.
// Unrelated events are swallowed; EventNone means the queue is empty.
func (w *Window) Poll() vkpace.EventKind {
	for {
		event := sdl.PollEvent()
		if event == nil {
			return vkpace.EventNone
		}
		switch ev := event.(type) {
		case *sdl.QuitEvent:
			return vkpace.EventQuit
		case *sdl.WindowEvent:
			switch ev.Event {
			case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
				return vkpace.EventResized
			case sdl.WINDOWEVENT_MINIMIZED:
				return vkpace.EventMinimized
			case sdl.WINDOWEVENT_RESTORED:
				return vkpace.EventRestored
			}
		case *sdl.KeyboardEvent:
			if ev.Keysym.Sym == sdl.K_ESCAPE {
				return vkpace.EventQuit
			}
		}
	}
}

// requiredExtensions returns the instance extensions SDL needs for this
// window's surface.
func (w *Window) requiredExtensions() []string {
	return w.win.VulkanGetInstanceExtensions()
}

// createSurface makes a Vulkan surface for the window on instance.
func (w *Window) createSurface(instance vk.Instance) (vk.Surface, error) {
	surfPtr, err := w.win.VulkanCreateSurface(instance)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "create surface")
	}
	return vk.SurfaceFromPointer(uintptr(surfPtr)), nil
}

// Destroy closes the window and shuts SDL down.
func (w *Window) Destroy() {
	w.win.Destroy()
	sdl.Quit()
}
