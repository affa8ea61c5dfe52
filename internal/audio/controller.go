// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"musualiser/internal/analysis"
	"musualiser/internal/handoff"
	"musualiser/internal/log"
)

var logger = log.Named("capture")

// State is the controller's view of its capture worker.
type State int

const (
	// Stopped means no worker is streaming: none exists yet or it is parked.
	Stopped State = iota
	// Starting means the worker is opening its client.
	Starting
	// Running means the worker is streaming.
	Running
	// Draining means the worker saw a device change and awaits replacement.
	Draining
	// Dead means the worker has exited and has not been replaced.
	Dead
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Dead:
		return "dead"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configure every capture session a Controller spawns.
type Options struct {
	Format            Format
	AnalysisFrequency int
	Window            analysis.WindowFunc
	BufferTimeout     time.Duration
	Target            Target
	// Tap, when set, sees every mono chunk read by any session.
	Tap Tap
}

const (
	defaultBufferTimeout = 2 * time.Second
	defaultFrequency     = 5
)

// Controller supervises at most one capture worker. All methods are safe for
// concurrent use and none of them block on the audio device.
type Controller struct {
	mu sync.Mutex

	backend Backend
	planner analysis.Planner
	sender  handoff.Sender
	opts    Options
	gate    *Gate

	target Target
	w      *worker
	err    error
	spawns int
	closed bool
}

// NewController returns a Controller and spawns the first worker parked on
// a closed gate.
func NewController(backend Backend, planner analysis.Planner, sender handoff.Sender, opts Options) *Controller {
	if opts.BufferTimeout <= 0 {
		opts.BufferTimeout = defaultBufferTimeout
	}
	if opts.AnalysisFrequency <= 0 {
		opts.AnalysisFrequency = defaultFrequency
	}
	if planner == nil {
		planner = analysis.NewPlanner()
	}
	if sender == nil {
		sender = handoff.Discard{}
	}

	c := &Controller{
		backend: backend,
		planner: planner,
		sender:  sender,
		opts:    opts,
		gate:    NewGate(),
		target:  opts.Target,
	}

	c.mu.Lock()
	c.spawnLocked()
	c.mu.Unlock()
	return c
}

// Start opens the gate. A worker that has exited, including after a fatal
// error, is replaced first.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrControllerClosed
	}

	c.reconcileLocked()
	if c.w == nil {
		c.err = nil
		c.spawnLocked()
	}
	c.gate.Set(true)
	return nil
}

// Stop closes the gate. The worker stops its stream and parks without exiting.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrControllerClosed
	}

	c.reconcileLocked()
	c.gate.Set(false)
	return nil
}

// IsPlaying reports whether the gate is open.
func (c *Controller) IsPlaying() bool {
	return c.gate.Playing()
}

// CheckDevice reconciles the worker once. Call it once per render tick. A
// device change or a non-fatal exit spawns a replacement bound to the current
// target with the gate untouched. A fatal exit is reported and left alone.
func (c *Controller) CheckDevice() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrControllerClosed
	}
	return c.reconcileLocked()
}

// Update retargets capture. The current worker is killed and a new one is
// spawned right away; the old one tears itself down on its own goroutine.
func (c *Controller) Update(target Target) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrControllerClosed
	}

	c.reconcileLocked()
	if target == c.target && c.w != nil {
		return nil
	}

	logger.Infof("retargeting capture from %v to %v", c.target, target)
	c.killLocked()
	c.target = target
	c.err = nil
	c.spawnLocked()
	return nil
}

// Target returns the current capture target.
func (c *Controller) Target() Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// State returns the current worker state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.w == nil {
		if c.err != nil {
			return Dead
		}
		return Stopped
	}
	phase := c.w.phase.Load()
	if phase == phaseDraining {
		return Draining
	}
	if c.w.exited() {
		return Dead
	}
	switch phase {
	case phaseStarting:
		return Starting
	case phaseRunning:
		return Running
	default:
		return Stopped
	}
}

// Err returns the error that ended the most recent session, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Spawns returns how many workers have been started in total.
func (c *Controller) Spawns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spawns
}

// Close kills the worker and waits up to timeout for it to release the
// device. Later control calls return ErrControllerClosed.
func (c *Controller) Close(timeout time.Duration) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	w := c.w
	c.killLocked()
	c.mu.Unlock()

	if w == nil {
		return nil
	}
	select {
	case <-w.done:
		return nil
	case <-time.After(timeout):
		return errors.New("capture worker did not exit in time")
	}
}

// reconcileLocked consumes at most one worker notification.
func (c *Controller) reconcileLocked() error {
	w := c.w
	if w == nil {
		return c.err
	}

	select {
	case <-w.deviceChanged:
		logger.Infof("replacing worker %d after device change", w.id)
		c.spawnLocked()
		return nil
	case <-w.done:
	default:
		return nil
	}

	if IsFatal(w.err) {
		c.err = w.err
		c.w = nil
		return c.err
	}
	if w.err != nil {
		c.err = w.err
	}
	logger.Infof("reviving capture for %v", c.target)
	c.spawnLocked()
	return nil
}

func (c *Controller) spawnLocked() {
	c.spawns++
	w := newWorker(c.spawns, c.target)
	c.w = w
	go w.run(session{
		backend: c.backend,
		planner: c.planner,
		sender:  c.sender,
		gate:    c.gate,
		opts:    c.opts,
	})
}

func (c *Controller) killLocked() {
	if c.w == nil {
		return
	}
	close(c.w.kill)
	c.gate.Wake()
	c.w = nil
}
