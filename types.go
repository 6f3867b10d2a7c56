// types.go
package vkpace

import "errors"

// FrameSlot identifies one of the N logical pipeline stages the CPU cycles
// through. Frame-scoped primitives (image-available semaphore, in-flight
// fence, command buffer, uniform buffer) are keyed by it.
type FrameSlot int

// ImageIndex identifies one of the M images owned by the presentation
// engine. Image-scoped resources (render-finished semaphore, framebuffer,
// image view) are keyed by it. M is independent of N and the two must never
// be conflated: acquisition order is not submission order once M > N.
type ImageIndex uint32

// Extent2D is a drawable size in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Zero reports whether the extent has no drawable area (minimized window).
func (e Extent2D) Zero() bool {
	return e.Width == 0 || e.Height == 0
}

// Staleness conditions reported by acquire and present. They are the only
// recoverable error class: the scheduler handles them by driving swapchain
// recreation and they never escape RenderFrame. Everything else coming out
// of a Device, Queue or Swapchain is fatal and propagates to the caller.
var (
	// ErrOutOfDate means the swapchain no longer matches the surface and
	// cannot be presented to. Acquire returning it aborts the frame.
	ErrOutOfDate = errors.New("vkpace: swapchain out of date")

	// ErrSuboptimal means the swapchain still works but no longer matches
	// the surface exactly. The frame proceeds; recreation follows the
	// present.
	ErrSuboptimal = errors.New("vkpace: swapchain suboptimal")
)

// IsStale reports whether err is one of the recoverable staleness
// conditions.
func IsStale(err error) bool {
	return errors.Is(err, ErrOutOfDate) || errors.Is(err, ErrSuboptimal)
}

// DefaultFramesInFlight is the number of frame slots used when Config does
// not say otherwise.
const DefaultFramesInFlight = 2

// Config carries the application-level knobs. The zero value is usable;
// NewApp fills in defaults.
type Config struct {
	// Title is the window title.
	Title string

	// Width and Height are the initial window size in pixels.
	Width  int32
	Height int32

	// FramesInFlight is N, the number of frame slots. It is fixed for the
	// lifetime of the app; a window resize never changes it.
	FramesInFlight int

	// EnableValidation requests the Khronos validation layer on the
	// backend, when the backend supports it.
	EnableValidation bool
}

// WithDefaults returns a copy of the config with unset fields filled in.
func (c *Config) WithDefaults() Config {
	out := *c
	if out.Title == "" {
		out.Title = "vkpace"
	}
	if out.Width <= 0 {
		out.Width = 960
	}
	if out.Height <= 0 {
		out.Height = 540
	}
	if out.FramesInFlight <= 0 {
		out.FramesInFlight = DefaultFramesInFlight
	}
	return out
}
