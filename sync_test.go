// sync_test.go
package vkpace

import (
	"errors"
	"testing"
)

func TestSyncPoolCounts(t *testing.T) {
	log := &oplog{}
	dev := newFakeDevice(log)

	pool, err := NewSyncPool(dev, 2, 3)
	if err != nil {
		t.Fatalf("NewSyncPool: %v", err)
	}
	defer pool.Destroy()

	if got := pool.FrameSlots(); got != 2 {
		t.Errorf("FrameSlots = %d, want 2", got)
	}
	if got := pool.ImageCount(); got != 3 {
		t.Errorf("ImageCount = %d, want 3", got)
	}

	// Every primitive is distinct.
	seen := map[interface{}]bool{}
	for slot := FrameSlot(0); slot < 2; slot++ {
		seen[pool.ImageAvailable(slot)] = true
	}
	for img := ImageIndex(0); img < 3; img++ {
		seen[pool.RenderFinished(img)] = true
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 distinct semaphores, got %d", len(seen))
	}
}

func TestSyncPoolFencesStartSignaled(t *testing.T) {
	log := &oplog{}
	dev := newFakeDevice(log)

	pool, err := NewSyncPool(dev, 2, 2)
	if err != nil {
		t.Fatalf("NewSyncPool: %v", err)
	}
	defer pool.Destroy()

	// A wait on a fresh fence must not deadlock: the first cycle of every
	// slot has no prior submission to wait for.
	for slot := FrameSlot(0); slot < 2; slot++ {
		if err := dev.WaitFence(pool.InFlight(slot)); err != nil {
			t.Errorf("slot %d: %v", slot, err)
		}
	}
}

func TestSyncPoolResizeReplacesOnlyImageScoped(t *testing.T) {
	log := &oplog{}
	dev := newFakeDevice(log)

	pool, err := NewSyncPool(dev, 2, 3)
	if err != nil {
		t.Fatalf("NewSyncPool: %v", err)
	}
	defer pool.Destroy()

	avail := []Semaphore{pool.ImageAvailable(0), pool.ImageAvailable(1)}
	fences := []Fence{pool.InFlight(0), pool.InFlight(1)}
	old := []Semaphore{pool.RenderFinished(0), pool.RenderFinished(1), pool.RenderFinished(2)}

	if err := pool.ResizeImageScoped(4); err != nil {
		t.Fatalf("ResizeImageScoped: %v", err)
	}

	if got := pool.ImageCount(); got != 4 {
		t.Fatalf("ImageCount after resize = %d, want 4", got)
	}
	for slot := FrameSlot(0); slot < 2; slot++ {
		if pool.ImageAvailable(slot) != avail[slot] {
			t.Errorf("image-available semaphore for slot %d was replaced", slot)
		}
		if pool.InFlight(slot) != fences[slot] {
			t.Errorf("in-flight fence for slot %d was replaced", slot)
		}
	}
	for img := ImageIndex(0); img < 3; img++ {
		if pool.RenderFinished(img) == old[img] {
			t.Errorf("render-finished semaphore %d survived the resize", img)
		}
	}
	for _, sem := range old {
		if dev.liveSems[sem.(*fakeSem)] {
			t.Errorf("old render-finished semaphore %s was never freed", sem.(*fakeSem).name)
		}
	}
}

func TestSyncPoolCreateUnwindsOnFailure(t *testing.T) {
	log := &oplog{}
	dev := newFakeDevice(log)
	boom := errors.New("out of host memory")

	// Frame-scoped creation succeeds, then the device starts failing
	// before the image-scoped set can be built.
	pool, err := NewSyncPool(dev, 2, 0)
	if err != nil {
		t.Fatalf("NewSyncPool: %v", err)
	}
	dev.semErr = boom
	if err := pool.ResizeImageScoped(3); err == nil {
		t.Fatal("ResizeImageScoped succeeded with a failing device")
	}
	pool.Destroy()

	if n := len(dev.liveSems); n != 0 {
		t.Errorf("%d semaphores leaked", n)
	}
	if n := len(dev.liveFences); n != 0 {
		t.Errorf("%d fences leaked", n)
	}
}

func TestSyncPoolRejectsZeroSlots(t *testing.T) {
	log := &oplog{}
	dev := newFakeDevice(log)

	if _, err := NewSyncPool(dev, 0, 2); err == nil {
		t.Fatal("NewSyncPool accepted zero frame slots")
	}
}

func TestSyncPoolDestroyFreesEverything(t *testing.T) {
	log := &oplog{}
	dev := newFakeDevice(log)

	pool, err := NewSyncPool(dev, 3, 4)
	if err != nil {
		t.Fatalf("NewSyncPool: %v", err)
	}
	pool.Destroy()

	if n := len(dev.liveSems); n != 0 {
		t.Errorf("%d semaphores still live after Destroy", n)
	}
	if n := len(dev.liveFences); n != 0 {
		t.Errorf("%d fences still live after Destroy", n)
	}
}
