// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"musualiser/internal/log"
	"musualiser/internal/spectrum"
)

var logger = log.Named("analysis")

// Audible range kept by Analyze, exclusive on both ends.
const (
	MinFrequency = 20.0
	MaxFrequency = 20000.0
)

// Analyzer converts fixed-length windows of mono samples into spectrum
// batches. It owns scratch buffers and is not safe for concurrent use; each
// capture goroutine builds its own from a shared Planner.
type Analyzer struct {
	transform  Transform
	sampleRate float64
	windowLen  int
	coeffs     []float64

	in  []complex128
	out []complex128
}

// NewAnalyzer plans a transform for windowLen samples at sampleRate Hz.
// A planning failure is returned unchanged so callers can treat it as fatal.
func NewAnalyzer(planner Planner, sampleRate, windowLen int, w WindowFunc) (*Analyzer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	t, err := planner.Plan(windowLen)
	if err != nil {
		return nil, err
	}

	logger.Debugf("analyzer ready (window %d, rate %d Hz, taper %v)", windowLen, sampleRate, w)

	return &Analyzer{
		transform:  t,
		sampleRate: float64(sampleRate),
		windowLen:  windowLen,
		coeffs:     coefficients(windowLen, w),
		in:         make([]complex128, windowLen),
		out:        make([]complex128, windowLen),
	}, nil
}

// WindowLen returns the window length the analyzer was planned for.
func (a *Analyzer) WindowLen() int { return a.windowLen }

// BinWidth returns the frequency spacing between adjacent bins in Hz.
func (a *Analyzer) BinWidth() float64 {
	return a.sampleRate / float64(a.windowLen)
}

// Analyze transforms one window and returns the audible bins in increasing
// frequency order. Shorter windows are zero padded; extra samples are ignored.
// The returned batch is freshly allocated and owned by the caller.
func (a *Analyzer) Analyze(window []float32) spectrum.Batch {
	half := a.transformWindow(window)

	batch := make(spectrum.Batch, 0, len(half))
	res := a.BinWidth()
	for i, c := range half {
		f := float64(i) * res
		if f <= MinFrequency || f >= MaxFrequency {
			continue
		}
		batch = append(batch, spectrum.Bin{Amplitude: c, Frequency: f})
	}
	return batch
}

// HalfSpectrum returns the first WindowLen/2 bins without range filtering.
func (a *Analyzer) HalfSpectrum(window []float32) spectrum.Batch {
	half := a.transformWindow(window)

	batch := make(spectrum.Batch, len(half))
	res := a.BinWidth()
	for i, c := range half {
		batch[i] = spectrum.Bin{Amplitude: c, Frequency: float64(i) * res}
	}
	return batch
}

func (a *Analyzer) transformWindow(window []float32) []complex128 {
	for i := range a.in {
		var s float64
		if i < len(window) {
			s = float64(window[i])
		}
		if a.coeffs != nil {
			s *= a.coeffs[i]
		}
		a.in[i] = complex(s, 0)
	}
	a.out = a.transform.Coefficients(a.out, a.in)
	return a.out[:a.windowLen/2]
}
