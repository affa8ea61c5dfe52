// SPDX-License-Identifier: MIT
package audio

import "sync"

// Gate is a play/pause switch. One owner mutates it; worker goroutines
// observe it and park on it while it is closed.
type Gate struct {
	mu      sync.Mutex
	cond    *sync.Cond
	playing bool
}

// NewGate returns a closed (paused) gate.
func NewGate() *Gate {
	g := &Gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Set changes the gate and wakes every waiter.
func (g *Gate) Set(playing bool) {
	g.mu.Lock()
	g.playing = playing
	g.mu.Unlock()
	g.cond.Broadcast()
}

// Playing returns the current gate state.
func (g *Gate) Playing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playing
}

// Wake rouses waiters without changing state so they can re-check cancel.
func (g *Gate) Wake() {
	g.mu.Lock()
	g.mu.Unlock()
	g.cond.Broadcast()
}

// WaitPlaying blocks until the gate opens or cancel is closed. It returns
// true only when the gate is open and cancel has not fired. The caller must
// close cancel and then call Wake to release a parked waiter.
func (g *Gate) WaitPlaying(cancel <-chan struct{}) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for !g.playing && !closed(cancel) {
		g.cond.Wait()
	}
	return g.playing && !closed(cancel)
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
