// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Transform is a planned forward complex transform of a fixed length.
// *fourier.CmplxFFT satisfies it.
type Transform interface {
	Len() int
	Coefficients(dst, seq []complex128) []complex128
}

// Planner hands out transforms sized to a window length. Implementations
// must be safe for concurrent use since every capture session shares one.
type Planner interface {
	Plan(n int) (Transform, error)
}

// FFTPlanner plans gonum complex FFTs and caches one per distinct length.
type FFTPlanner struct {
	mu    sync.Mutex
	plans map[int]*lockedTransform
}

var _ Planner = (*FFTPlanner)(nil)

// NewPlanner returns an empty FFTPlanner.
func NewPlanner() *FFTPlanner {
	return &FFTPlanner{plans: make(map[int]*lockedTransform)}
}

// Plan returns the cached transform for length n, planning it on first use.
func (p *FFTPlanner) Plan(n int) (Transform, error) {
	if n < 2 {
		return nil, fmt.Errorf("plan transform of length %d: %w", n, ErrInvalidWindow)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.plans[n]; ok {
		return t, nil
	}
	t := &lockedTransform{fft: fourier.NewCmplxFFT(n)}
	p.plans[n] = t
	logger.Debugf("planned %d-point transform", n)
	return t, nil
}

// Planned reports how many distinct lengths have been planned.
func (p *FFTPlanner) Planned() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.plans)
}

// lockedTransform serialises access to a CmplxFFT, which keeps internal
// work space. Old and new capture goroutines may briefly overlap.
type lockedTransform struct {
	mu  sync.Mutex
	fft *fourier.CmplxFFT
}

func (t *lockedTransform) Len() int { return t.fft.Len() }

func (t *lockedTransform) Coefficients(dst, seq []complex128) []complex128 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fft.Coefficients(dst, seq)
}
