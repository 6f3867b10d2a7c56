// app.go
package vkpace

import (
	"github.com/pkg/errors"
)

// EventKind is a window event relevant to frame pacing. The windowing
// backend maps its native event stream onto these.
type EventKind int

const (
	// EventNone means the event queue is empty.
	EventNone EventKind = iota
	// EventQuit requests an orderly exit.
	EventQuit
	// EventResized reports a changed drawable size.
	EventResized
	// EventMinimized reports the window became zero-extent.
	EventMinimized
	// EventRestored reports the window is visible again.
	EventRestored
)

// EventWindow extends Window with a non-blocking event poll.
type EventWindow interface {
	Window
	Poll() EventKind
}

// Backend bundles the device-side collaborators built by a graphics
// backend during its one-shot setup.
type Backend interface {
	Device() Device
	Queue() Queue
	SwapchainFactory() SwapchainFactory
	Recorder() FrameRecorder

	// Close releases backend resources. The App calls it last, after the
	// device is idle and all pacing state is gone.
	Close()
}

// App owns the window loop and the pacing state, gluing the scheduler to a
// backend. Construct with NewApp, drive with Run or RenderOneFrame, always
// Close.
type App struct {
	win     EventWindow
	backend Backend
	dev     Device
	pool    *SyncPool
	chain   *SwapchainManager
	sched   *Scheduler

	minimized bool
	closed    bool
}

// NewApp builds the pacing state over an initialized backend: the sync
// pool, the first swapchain, and the scheduler. On failure everything
// created so far is released; the caller still owns win and backend.
func NewApp(cfg Config, win EventWindow, backend Backend) (*App, error) {
	cfg = cfg.WithDefaults()
	dev := backend.Device()

	pool, err := NewSyncPool(dev, cfg.FramesInFlight, 0)
	if err != nil {
		return nil, errors.Wrap(err, "create sync pool")
	}
	chain, err := NewSwapchainManager(dev, backend.SwapchainFactory(), win, pool)
	if err != nil {
		pool.Destroy()
		return nil, errors.Wrap(err, "create swapchain")
	}
	return &App{
		win:     win,
		backend: backend,
		dev:     dev,
		pool:    pool,
		chain:   chain,
		sched:   NewScheduler(dev, backend.Queue(), pool, chain, backend.Recorder(), nil),
	}, nil
}

// RenderOneFrame runs a single frame cycle.
func (a *App) RenderOneFrame() error { return a.sched.RenderFrame() }

// NotifyResized forwards a size change to the scheduler.
func (a *App) NotifyResized() { a.sched.NotifyResized() }

// Run drains window events and renders frames until quit or a fatal
// error. While minimized it blocks on events instead of rendering.
func (a *App) Run() error {
	for {
		for {
			ev := a.win.Poll()
			if ev == EventNone {
				break
			}
			switch ev {
			case EventQuit:
				return nil
			case EventResized:
				a.sched.NotifyResized()
			case EventMinimized:
				a.minimized = true
			case EventRestored:
				a.minimized = false
			}
		}
		if a.minimized {
			a.win.WaitEvent()
			continue
		}
		if err := a.sched.RenderFrame(); err != nil {
			return err
		}
	}
}

// Close tears everything down in reverse creation order: device idle, then
// the swapchain group, then the sync pool, then the backend. Safe to call
// more than once.
func (a *App) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	err := a.dev.WaitIdle()
	a.chain.Destroy()
	a.pool.Destroy()
	a.backend.Close()
	return errors.Wrap(err, "wait for device idle")
}
