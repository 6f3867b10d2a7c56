// swapchain.go
package vkpace

import "github.com/pkg/errors"

// LifecycleState is the swapchain manager's externally visible state.
type LifecycleState int

const (
	// StateValid means the current swapchain generation can be acquired
	// from and presented to.
	StateValid LifecycleState = iota

	// StateRecreating means the manager is between generations: waiting
	// for a usable drawable size or rebuilding image-scoped state.
	StateRecreating
)

// SwapchainManager owns the current swapchain generation and drives the
// recreate protocol. The scheduler only ever sees a fully valid generation;
// mid-recreation state never escapes Recreate.
type SwapchainManager struct {
	dev     Device
	factory SwapchainFactory
	win     Window
	pool    *SyncPool

	chain Swapchain
	state LifecycleState
}

// NewSwapchainManager builds the first swapchain generation and sizes the
// pool's image-scoped set to match it.
func NewSwapchainManager(dev Device, factory SwapchainFactory, win Window, pool *SyncPool) (*SwapchainManager, error) {
	m := &SwapchainManager{
		dev:     dev,
		factory: factory,
		win:     win,
		pool:    pool,
	}

	chain, err := factory.CreateSwapchain()
	if err != nil {
		return nil, errors.Wrap(err, "initial swapchain")
	}
	m.chain = chain

	if err := pool.ResizeImageScoped(chain.ImageCount()); err != nil {
		chain.Destroy()
		return nil, err
	}

	return m, nil
}

// Current returns the valid swapchain generation.
func (m *SwapchainManager) Current() Swapchain { return m.chain }

// State returns the manager's lifecycle state.
func (m *SwapchainManager) State() LifecycleState { return m.state }

// Recreate tears down the current generation and builds a new one against
// the surface's present size, then resizes the pool's image-scoped
// semaphore set to the new image count. Frame-scoped fences and semaphores
// are never touched: a resize does not change how many frames are in
// flight.
//
// While the drawable area is zero (minimized window) it blocks on window
// events without destroying anything; teardown only starts once a usable
// size exists.
func (m *SwapchainManager) Recreate() error {
	m.state = StateRecreating
	defer func() { m.state = StateValid }()

	for m.win.DrawableSize().Zero() {
		m.win.WaitEvent()
	}

	if err := m.dev.WaitIdle(); err != nil {
		return errors.Wrap(err, "device idle before swapchain teardown")
	}

	m.chain.Destroy()
	m.chain = nil

	chain, err := m.factory.CreateSwapchain()
	if err != nil {
		return errors.Wrap(err, "recreate swapchain")
	}
	m.chain = chain

	// The negotiated image count may differ from the previous generation.
	if err := m.pool.ResizeImageScoped(chain.ImageCount()); err != nil {
		return err
	}

	return nil
}

// Destroy releases the current generation. Call only after the device is
// idle.
func (m *SwapchainManager) Destroy() {
	if m.chain != nil {
		m.chain.Destroy()
		m.chain = nil
	}
}
