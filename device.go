// device.go
package vkpace

import "time"

// The core drives the GPU exclusively through the narrow interfaces below.
// A real implementation lives in the vkgfx package; the tests use fakes.
// Semaphores and fences are opaque to the core: it stores them, hands them
// back to the device, and compares them for identity, nothing more.

// Semaphore is a GPU-GPU ordering primitive owned by the Device that
// created it.
type Semaphore interface{}

// Fence is a GPU-CPU ordering primitive owned by the Device that created
// it.
type Fence interface{}

// Device creates and tracks synchronization primitives and exposes the two
// host-side blocking operations the core needs.
type Device interface {
	// NewSemaphore returns an unsignaled semaphore.
	NewSemaphore() (Semaphore, error)

	// NewFence returns a fence, pre-signaled when signaled is true.
	NewFence(signaled bool) (Fence, error)

	FreeSemaphore(Semaphore)
	FreeFence(Fence)

	// WaitFence blocks until f is signaled. The timeout is unbounded: the
	// fence wait is the frame-pacing throttle and is bounded only by GPU
	// completion.
	WaitFence(f Fence) error

	// ResetFence returns f to the unsignaled state. The scheduler calls it
	// only after WaitFence on the same fence has returned and an image has
	// been acquired for the frame about to be submitted.
	ResetFence(f Fence) error

	// WaitIdle blocks until the device has finished all submitted work.
	WaitIdle() error
}

// Queue submits recorded work and presents finished images. Submit and
// Present must report staleness as ErrOutOfDate / ErrSuboptimal (possibly
// wrapped); anything else is fatal.
type Queue interface {
	// Submit queues the command buffer for slot, rendering into the
	// swapchain image at img. Execution waits on wait at the
	// color-attachment-output stage, signals signal when rendering
	// finishes, and signals fence when the whole submission completes.
	Submit(slot FrameSlot, img ImageIndex, wait Semaphore, signal Semaphore, fence Fence) error

	// Present hands img back to the presentation engine once wait is
	// signaled.
	Present(img ImageIndex, wait Semaphore) error
}

// Swapchain is one generation of the presentation engine's image set plus
// the per-image resources derived from it (views, framebuffers). It is
// either fully valid or already torn down; the lifecycle manager never
// exposes an in-between state to the scheduler.
type Swapchain interface {
	// ImageCount returns M, the number of images in this generation.
	ImageCount() int

	// Extent returns the drawable size the chain was built for.
	Extent() Extent2D

	// Acquire asks the presentation engine for the next image, arranging
	// for signal to be signaled when the image is ready to be rendered to.
	// It returns the image's index. err is nil on success, ErrSuboptimal
	// when the index is valid but the chain should be rebuilt soon,
	// ErrOutOfDate when no image could be acquired, and fatal otherwise.
	Acquire(signal Semaphore) (ImageIndex, error)

	// Destroy releases framebuffers, image views and the swapchain itself,
	// in reverse order of creation. The caller must have made the device
	// idle first.
	Destroy()
}

// SwapchainFactory builds a fresh swapchain generation against the current
// surface state. Implemented by the resource-factory collaborator.
type SwapchainFactory interface {
	CreateSwapchain() (Swapchain, error)
}

// Window is the slice of the windowing system the lifecycle manager needs
// while the drawable area is zero.
type Window interface {
	// DrawableSize returns the current drawable extent. Both dimensions
	// are zero while the window is minimized.
	DrawableSize() Extent2D

	// WaitEvent blocks until the window system delivers an event.
	WaitEvent()
}

// FrameRecorder fills per-slot command buffers and per-slot dynamic state.
// Implemented by the resource-factory collaborator; recording has no side
// effects beyond GPU command memory.
type FrameRecorder interface {
	// UpdateDynamicState writes the frame's transform data into slot's
	// mapped uniform buffer.
	UpdateDynamicState(slot FrameSlot, elapsed time.Duration) error

	// RecordFrame records the draw for the swapchain image at img into
	// slot's command buffer.
	RecordFrame(slot FrameSlot, img ImageIndex) error
}

// Clock supplies the elapsed-time input for dynamic state.
type Clock interface {
	Elapsed() time.Duration
}
