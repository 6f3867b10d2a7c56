// sync.go
package vkpace

import "github.com/pkg/errors"

// SyncPool owns the per-frame and per-image synchronization primitives.
//
// The two sets have independent sizes and lifetimes. Frame-scoped
// primitives (image-available semaphore, in-flight fence, one per slot) are
// created once and live until Destroy. Image-scoped primitives
// (render-finished semaphore, one per swapchain image) are replaced every
// time the swapchain is rebuilt, because the negotiated image count may
// change.
type SyncPool struct {
	dev Device

	imageAvailable []Semaphore // keyed by FrameSlot
	inFlight       []Fence     // keyed by FrameSlot
	renderFinished []Semaphore // keyed by ImageIndex
}

// NewSyncPool allocates frameSlots image-available semaphores, frameSlots
// fences (pre-signaled, so the first frameSlots frames do not block on a
// submission that never happened), and imageCount render-finished
// semaphores. imageCount may be zero when the swapchain does not exist
// yet; ResizeImageScoped then sizes the image-scoped set once it does.
// Any creation failure unwinds what was already allocated and is fatal to
// the caller.
func NewSyncPool(dev Device, frameSlots, imageCount int) (*SyncPool, error) {
	if frameSlots < 1 {
		return nil, errors.Errorf("sync pool needs at least one frame slot, got %d", frameSlots)
	}

	p := &SyncPool{dev: dev}

	for i := 0; i < frameSlots; i++ {
		sem, err := dev.NewSemaphore()
		if err != nil {
			p.Destroy()
			return nil, errors.Wrapf(err, "image-available semaphore %d", i)
		}
		p.imageAvailable = append(p.imageAvailable, sem)

		fence, err := dev.NewFence(true)
		if err != nil {
			p.Destroy()
			return nil, errors.Wrapf(err, "in-flight fence %d", i)
		}
		p.inFlight = append(p.inFlight, fence)
	}

	if imageCount > 0 {
		if err := p.ResizeImageScoped(imageCount); err != nil {
			p.Destroy()
			return nil, err
		}
	}

	return p, nil
}

// FrameSlots returns N, the number of frame slots.
func (p *SyncPool) FrameSlots() int { return len(p.inFlight) }

// ImageCount returns the size of the image-scoped set.
func (p *SyncPool) ImageCount() int { return len(p.renderFinished) }

// ImageAvailable returns the semaphore the acquire for slot signals. It is
// frame-scoped: reused every N submissions no matter which image was
// acquired.
func (p *SyncPool) ImageAvailable(slot FrameSlot) Semaphore {
	return p.imageAvailable[slot]
}

// InFlight returns the fence pacing slot.
func (p *SyncPool) InFlight(slot FrameSlot) Fence {
	return p.inFlight[slot]
}

// RenderFinished returns the semaphore the submission for img signals and
// the presentation of img waits on. It is image-scoped: with more images
// than frames in flight, acquisition order is not submission order, so
// keying this semaphore by slot would let a submission reuse it while the
// presentation engine still waits on it.
func (p *SyncPool) RenderFinished(img ImageIndex) Semaphore {
	return p.renderFinished[img]
}

// ResizeImageScoped replaces the render-finished set with imageCount fresh
// semaphores. Frame-scoped primitives are untouched. Must be called
// whenever the swapchain is recreated; the caller guarantees the device is
// idle so no in-flight work still references the old set.
func (p *SyncPool) ResizeImageScoped(imageCount int) error {
	if imageCount < 1 {
		return errors.Errorf("sync pool needs at least one image, got %d", imageCount)
	}

	for _, sem := range p.renderFinished {
		p.dev.FreeSemaphore(sem)
	}
	p.renderFinished = p.renderFinished[:0]

	for i := 0; i < imageCount; i++ {
		sem, err := p.dev.NewSemaphore()
		if err != nil {
			return errors.Wrapf(err, "render-finished semaphore %d", i)
		}
		p.renderFinished = append(p.renderFinished, sem)
	}

	return nil
}

// Destroy releases every primitive the pool still owns. Call only after
// the device is idle.
func (p *SyncPool) Destroy() {
	for _, sem := range p.renderFinished {
		p.dev.FreeSemaphore(sem)
	}
	p.renderFinished = nil

	for _, fence := range p.inFlight {
		p.dev.FreeFence(fence)
	}
	p.inFlight = nil

	for _, sem := range p.imageAvailable {
		p.dev.FreeSemaphore(sem)
	}
	p.imageAvailable = nil
}
