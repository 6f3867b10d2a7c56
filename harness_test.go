// harness_test.go
package vkpace

import (
	"fmt"
	"time"
)

// The fakes below share one operation log so tests can assert cross-object
// ordering (fence reset after wait, recreation before the next submit, and
// so on). Semaphores and fences are distinct pointers so identity survives
// interface round-trips.

type oplog struct {
	ops []string
}

func (l *oplog) add(format string, args ...interface{}) {
	l.ops = append(l.ops, fmt.Sprintf(format, args...))
}

type fakeSem struct {
	name string
}

type fakeFence struct {
	name     string
	signaled bool
}

type fakeDevice struct {
	log *oplog

	semSeq   int
	fenceSeq int

	liveSems   map[*fakeSem]bool
	liveFences map[*fakeFence]bool

	semErr      error // returned by NewSemaphore when set
	waitIdleN   int
	waitIdleErr error
}

func newFakeDevice(log *oplog) *fakeDevice {
	return &fakeDevice{
		log:        log,
		liveSems:   map[*fakeSem]bool{},
		liveFences: map[*fakeFence]bool{},
	}
}

func (d *fakeDevice) NewSemaphore() (Semaphore, error) {
	if d.semErr != nil {
		return nil, d.semErr
	}
	s := &fakeSem{name: fmt.Sprintf("sem%d", d.semSeq)}
	d.semSeq++
	d.liveSems[s] = true
	d.log.add("new semaphore %s", s.name)
	return s, nil
}

func (d *fakeDevice) NewFence(signaled bool) (Fence, error) {
	f := &fakeFence{name: fmt.Sprintf("fence%d", d.fenceSeq), signaled: signaled}
	d.fenceSeq++
	d.liveFences[f] = true
	d.log.add("new fence %s signaled=%v", f.name, signaled)
	return f, nil
}

func (d *fakeDevice) FreeSemaphore(s Semaphore) {
	sem := s.(*fakeSem)
	delete(d.liveSems, sem)
	d.log.add("free semaphore %s", sem.name)
}

func (d *fakeDevice) FreeFence(f Fence) {
	fence := f.(*fakeFence)
	delete(d.liveFences, fence)
	d.log.add("free fence %s", fence.name)
}

func (d *fakeDevice) WaitFence(f Fence) error {
	fence := f.(*fakeFence)
	if !fence.signaled {
		return fmt.Errorf("wait on unsignaled fence %s would never return", fence.name)
	}
	d.log.add("wait %s", fence.name)
	return nil
}

func (d *fakeDevice) ResetFence(f Fence) error {
	fence := f.(*fakeFence)
	fence.signaled = false
	d.log.add("reset %s", fence.name)
	return nil
}

func (d *fakeDevice) WaitIdle() error {
	d.waitIdleN++
	d.log.add("wait idle")
	return d.waitIdleErr
}

type submission struct {
	slot   FrameSlot
	img    ImageIndex
	wait   Semaphore
	signal Semaphore
	fence  Fence
}

type presentation struct {
	img  ImageIndex
	wait Semaphore
}

type fakeQueue struct {
	log *oplog

	submits  []submission
	presents []presentation

	// presentErrs is consumed one entry per Present call; nil entries and
	// exhaustion mean success.
	presentErrs []error
	submitErr   error
}

func (q *fakeQueue) Submit(slot FrameSlot, img ImageIndex, wait, signal Semaphore, fence Fence) error {
	if q.submitErr != nil {
		return q.submitErr
	}
	q.submits = append(q.submits, submission{slot, img, wait, signal, fence})
	// The fake GPU completes instantly.
	fence.(*fakeFence).signaled = true
	q.log.add("submit slot=%d img=%d", slot, img)
	return nil
}

func (q *fakeQueue) Present(img ImageIndex, wait Semaphore) error {
	var err error
	if len(q.presentErrs) > 0 {
		err = q.presentErrs[0]
		q.presentErrs = q.presentErrs[1:]
	}
	q.presents = append(q.presents, presentation{img, wait})
	q.log.add("present img=%d err=%v", img, err)
	return err
}

type acquireResult struct {
	img ImageIndex
	err error
}

type fakeSwapchain struct {
	log *oplog

	gen       int
	images    int
	extent    Extent2D
	acquires  []acquireResult // consumed front to back
	destroyed bool
}

func (c *fakeSwapchain) ImageCount() int  { return c.images }
func (c *fakeSwapchain) Extent() Extent2D { return c.extent }

func (c *fakeSwapchain) Acquire(signal Semaphore) (ImageIndex, error) {
	if len(c.acquires) == 0 {
		c.log.add("acquire gen=%d exhausted", c.gen)
		return 0, fmt.Errorf("acquire script exhausted for generation %d", c.gen)
	}
	r := c.acquires[0]
	c.acquires = c.acquires[1:]
	c.log.add("acquire gen=%d img=%d err=%v signal=%s", c.gen, r.img, r.err, signal.(*fakeSem).name)
	return r.img, r.err
}

func (c *fakeSwapchain) Destroy() {
	c.destroyed = true
	c.log.add("destroy chain gen=%d", c.gen)
}

type fakeFactory struct {
	log *oplog

	gen    int
	images int // image count for the next generation

	created []*fakeSwapchain
	// script supplies acquire results per generation; generations past the
	// end of the script acquire images round-robin forever.
	script map[int][]acquireResult

	err error
}

func (f *fakeFactory) CreateSwapchain() (Swapchain, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gen++
	c := &fakeSwapchain{
		log:    f.log,
		gen:    f.gen,
		images: f.images,
		extent: Extent2D{Width: 800, Height: 600},
	}
	if acq, ok := f.script[f.gen]; ok {
		c.acquires = acq
	} else {
		for i := 0; i < 64; i++ {
			c.acquires = append(c.acquires, acquireResult{img: ImageIndex(i % f.images)})
		}
	}
	f.created = append(f.created, c)
	f.log.add("create chain gen=%d images=%d", f.gen, f.images)
	return c, nil
}

type fakeWindow struct {
	log *oplog

	// sizes is consumed by WaitEvent; DrawableSize reports the head. The
	// last entry sticks once the script runs out.
	sizes  []Extent2D
	events []EventKind
}

func (w *fakeWindow) DrawableSize() Extent2D {
	if len(w.sizes) == 0 {
		return Extent2D{Width: 800, Height: 600}
	}
	return w.sizes[0]
}

func (w *fakeWindow) WaitEvent() {
	w.log.add("wait event")
	if len(w.sizes) > 1 {
		w.sizes = w.sizes[1:]
	}
}

func (w *fakeWindow) Poll() EventKind {
	if len(w.events) == 0 {
		return EventNone
	}
	ev := w.events[0]
	w.events = w.events[1:]
	return ev
}

type recorded struct {
	slot FrameSlot
	img  ImageIndex
}

type fakeRecorder struct {
	log *oplog

	updates []FrameSlot
	frames  []recorded
}

func (r *fakeRecorder) UpdateDynamicState(slot FrameSlot, elapsed time.Duration) error {
	r.updates = append(r.updates, slot)
	r.log.add("update slot=%d", slot)
	return nil
}

func (r *fakeRecorder) RecordFrame(slot FrameSlot, img ImageIndex) error {
	r.frames = append(r.frames, recorded{slot, img})
	r.log.add("record slot=%d img=%d", slot, img)
	return nil
}

type fixedClock struct {
	at time.Duration
}

func (c *fixedClock) Elapsed() time.Duration { return c.at }

// rig bundles a full fake stack with its pool, manager and scheduler.
type rig struct {
	log     *oplog
	dev     *fakeDevice
	queue   *fakeQueue
	factory *fakeFactory
	win     *fakeWindow
	rec     *fakeRecorder
	pool    *SyncPool
	chain   *SwapchainManager
	sched   *Scheduler
}

func newRig(t testingT, slots, images int) *rig {
	log := &oplog{}
	r := &rig{
		log:     log,
		dev:     newFakeDevice(log),
		queue:   &fakeQueue{log: log},
		factory: &fakeFactory{log: log, images: images},
		win:     &fakeWindow{log: log},
		rec:     &fakeRecorder{log: log},
	}
	pool, err := NewSyncPool(r.dev, slots, 0)
	if err != nil {
		t.Fatalf("NewSyncPool: %v", err)
	}
	r.pool = pool
	chain, err := NewSwapchainManager(r.dev, r.factory, r.win, pool)
	if err != nil {
		t.Fatalf("NewSwapchainManager: %v", err)
	}
	r.chain = chain
	r.sched = NewScheduler(r.dev, r.queue, pool, chain, r.rec, &fixedClock{})
	return r
}

// testingT is the slice of *testing.T the harness needs.
type testingT interface {
	Fatalf(format string, args ...interface{})
	Helper()
}

func (r *rig) renderN(t testingT, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := r.sched.RenderFrame(); err != nil {
			t.Fatalf("RenderFrame %d: %v", i, err)
		}
	}
}
