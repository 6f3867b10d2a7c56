// app_test.go
package vkpace

import (
	"strings"
	"testing"
)

type fakeBackend struct {
	dev     *fakeDevice
	queue   *fakeQueue
	factory *fakeFactory
	rec     *fakeRecorder
	closed  bool
	log     *oplog
}

func newFakeBackend(log *oplog) *fakeBackend {
	return &fakeBackend{
		dev:     newFakeDevice(log),
		queue:   &fakeQueue{log: log},
		factory: &fakeFactory{log: log, images: 3},
		rec:     &fakeRecorder{log: log},
		log:     log,
	}
}

func (b *fakeBackend) Device() Device                     { return b.dev }
func (b *fakeBackend) Queue() Queue                       { return b.queue }
func (b *fakeBackend) SwapchainFactory() SwapchainFactory { return b.factory }
func (b *fakeBackend) Recorder() FrameRecorder            { return b.rec }
func (b *fakeBackend) Close() {
	b.closed = true
	b.log.add("backend close")
}

func TestAppRunQuitsCleanly(t *testing.T) {
	log := &oplog{}
	backend := newFakeBackend(log)
	win := &fakeWindow{log: log}
	// Three rendered frames' worth of empty polls, then quit.
	win.events = []EventKind{EventNone, EventNone, EventNone, EventQuit}

	app, err := NewApp(Config{}, win, backend)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if err := app.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(backend.queue.presents) != 3 {
		t.Errorf("presented %d frames before quit, want 3", len(backend.queue.presents))
	}
	if err := app.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestAppResizeEventFlowsToScheduler(t *testing.T) {
	log := &oplog{}
	backend := newFakeBackend(log)
	win := &fakeWindow{log: log}
	win.events = []EventKind{EventResized, EventNone, EventQuit}

	app, err := NewApp(Config{}, win, backend)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	generationsBefore := backend.factory.gen
	if err := app.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := backend.factory.gen; got != generationsBefore+1 {
		t.Errorf("resize event did not rebuild the swapchain: generations %d -> %d",
			generationsBefore, got)
	}
	app.Close()
}

func TestAppMinimizedWaitsInsteadOfRendering(t *testing.T) {
	log := &oplog{}
	backend := newFakeBackend(log)
	win := &fakeWindow{log: log}
	win.events = []EventKind{EventMinimized, EventNone, EventRestored, EventNone, EventQuit}

	app, err := NewApp(Config{}, win, backend)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if err := app.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// One blocking wait while minimized, one frame after restore.
	if got := countOps(log, "wait event"); got != 1 {
		t.Errorf("waited %d times while minimized, want 1", got)
	}
	if got := len(backend.queue.presents); got != 1 {
		t.Errorf("presented %d frames, want 1 (after restore)", got)
	}
	app.Close()
}

func TestAppCloseOrder(t *testing.T) {
	log := &oplog{}
	backend := newFakeBackend(log)
	win := &fakeWindow{log: log}

	app, err := NewApp(Config{FramesInFlight: 2}, win, backend)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if err := app.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Device idle, then the swapchain, then the pool's primitives, then the
	// backend, with nothing leaked.
	var idleAt, chainAt, backendAt, lastFree = -1, -1, -1, -1
	for i, op := range log.ops {
		switch {
		case op == "wait idle":
			idleAt = i
		case strings.HasPrefix(op, "destroy chain"):
			chainAt = i
		case op == "backend close":
			backendAt = i
		case strings.HasPrefix(op, "free "):
			lastFree = i
		}
	}
	if !(idleAt < chainAt && chainAt < lastFree && lastFree < backendAt) {
		t.Errorf("teardown order wrong: idle@%d chain@%d lastFree@%d backend@%d",
			idleAt, chainAt, lastFree, backendAt)
	}
	if n := len(backend.dev.liveSems) + len(backend.dev.liveFences); n != 0 {
		t.Errorf("%d primitives leaked", n)
	}
	if !backend.closed {
		t.Error("backend never closed")
	}

	// Idempotent.
	if err := app.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if got := backend.dev.waitIdleN; got != 1 {
		t.Errorf("device idled %d times across double Close, want 1", got)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := (&Config{}).WithDefaults()
	if cfg.FramesInFlight != DefaultFramesInFlight {
		t.Errorf("FramesInFlight = %d, want %d", cfg.FramesInFlight, DefaultFramesInFlight)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Title == "" {
		t.Errorf("zero-value config not filled in: %+v", cfg)
	}

	cfg = (&Config{Title: "demo", Width: 100, Height: 50, FramesInFlight: 3}).WithDefaults()
	if cfg.Title != "demo" || cfg.Width != 100 || cfg.Height != 50 || cfg.FramesInFlight != 3 {
		t.Errorf("explicit config was overridden: %+v", cfg)
	}
}
