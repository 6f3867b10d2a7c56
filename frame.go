// frame.go
package vkpace

import (
	stderrors "errors"
	"time"

	"github.com/loov/hrtime"
	"github.com/pkg/errors"
)

// Scheduler runs the per-frame protocol: wait, acquire, record, submit,
// present, advance. One Scheduler is driven by exactly one control thread;
// all cross-frame ordering is carried by the pool's semaphores and fences,
// never by locks.
type Scheduler struct {
	dev   Device
	queue Queue
	pool  *SyncPool
	chain *SwapchainManager
	rec   FrameRecorder
	clock Clock

	slot    FrameSlot
	slots   int
	resized bool
}

// NewScheduler wires a scheduler over an already-initialized pool and
// swapchain manager. clock may be nil, in which case a monotonic clock
// started now is used.
func NewScheduler(dev Device, queue Queue, pool *SyncPool, chain *SwapchainManager, rec FrameRecorder, clock Clock) *Scheduler {
	if clock == nil {
		clock = NewClock()
	}
	return &Scheduler{
		dev:   dev,
		queue: queue,
		pool:  pool,
		chain: chain,
		rec:   rec,
		clock: clock,
		slots: pool.FrameSlots(),
	}
}

// Slot returns the frame slot the next RenderFrame will use.
func (s *Scheduler) Slot() FrameSlot { return s.slot }

// NotifyResized records that the window changed size. The flag is consumed
// after the next successful present, when the swapchain is rebuilt.
func (s *Scheduler) NotifyResized() { s.resized = true }

// RenderFrame runs one full frame cycle. Staleness reported by the
// swapchain is handled internally by recreating it; any other failure is
// fatal and returned as-is for the caller to surface and exit on. No step
// is retried except implicitly by the next call after a recreation.
func (s *Scheduler) RenderFrame() error {
	slot := s.slot
	fence := s.pool.InFlight(slot)

	// 1. Throttle: block until the GPU finished the previous submission
	// that used this slot.
	if err := s.dev.WaitFence(fence); err != nil {
		return errors.Wrapf(err, "wait on in-flight fence, slot %d", slot)
	}

	// 2. Acquire the next image, to signal the slot's image-available
	// semaphore when ready.
	img, err := s.chain.Current().Acquire(s.pool.ImageAvailable(slot))
	if stderrors.Is(err, ErrOutOfDate) {
		// Nothing consumed the fence: it stays signaled and the next call
		// re-waits on it with the same slot.
		return s.chain.Recreate()
	}
	suboptimal := stderrors.Is(err, ErrSuboptimal)
	if err != nil && !suboptimal {
		return errors.Wrapf(err, "acquire image, slot %d", slot)
	}

	// 3. Only now is it safe to reset the fence: work that will signal it
	// again is guaranteed to be submitted below. Resetting before the
	// acquire could leave the fence unsignaled forever if the acquire
	// aborts the frame.
	if err := s.dev.ResetFence(fence); err != nil {
		return errors.Wrapf(err, "reset in-flight fence, slot %d", slot)
	}

	// 4. Per-frame dynamic state for this slot.
	if err := s.rec.UpdateDynamicState(slot, s.clock.Elapsed()); err != nil {
		return errors.Wrapf(err, "update dynamic state, slot %d", slot)
	}

	// 5. Record the draw targeting the acquired image.
	if err := s.rec.RecordFrame(slot, img); err != nil {
		return errors.Wrapf(err, "record frame, slot %d image %d", slot, img)
	}

	// 6. Submit: wait for the image at color-attachment output, signal the
	// image's render-finished semaphore and this slot's fence. The
	// render-finished semaphore is keyed by image index, not slot: with
	// more images than slots the presentation engine may still be waiting
	// on a slot-keyed semaphore when the slot comes around again.
	if err := s.queue.Submit(slot, img,
		s.pool.ImageAvailable(slot),
		s.pool.RenderFinished(img),
		fence,
	); err != nil {
		return errors.Wrapf(err, "submit, slot %d image %d", slot, img)
	}

	// 7. Present once rendering finishes.
	err = s.queue.Present(img, s.pool.RenderFinished(img))
	recreate := suboptimal || s.resized
	if IsStale(err) {
		recreate = true
		err = nil
	}
	if err != nil {
		return errors.Wrapf(err, "present image %d", img)
	}
	if recreate {
		s.resized = false
		if err := s.chain.Recreate(); err != nil {
			return err
		}
	}

	// 8. Advance to the next slot.
	s.slot = (s.slot + 1) % FrameSlot(s.slots)
	return nil
}

// monotonicClock measures elapsed wall time from a fixed start using the
// high-resolution clock.
type monotonicClock struct {
	start time.Duration
}

// NewClock returns a Clock measuring time from now.
func NewClock() Clock {
	return &monotonicClock{start: hrtime.Now()}
}

func (c *monotonicClock) Elapsed() time.Duration {
	return hrtime.Now() - c.start
}
