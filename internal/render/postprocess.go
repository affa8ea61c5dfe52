// SPDX-License-Identifier: MIT
package render

import (
	"math"
	"math/cmplx"

	"musualiser/internal/spectrum"
)

// DefaultBuckets is the number of display buckets a spectrum is averaged into.
const DefaultBuckets = 150

// Mel maps a linear frequency in Hz onto the mel scale.
func Mel(f float64) float64 {
	return 1127 * math.Log(1+f/700)
}

// PostProcessor turns a spectrum batch into display bucket points.
type PostProcessor struct {
	Buckets int
}

// NewPostProcessor returns a PostProcessor with n buckets, or DefaultBuckets
// when n < 2.
func NewPostProcessor(n int) *PostProcessor {
	if n < 2 {
		n = DefaultBuckets
	}
	return &PostProcessor{Buckets: n}
}

func (p *PostProcessor) buckets() int {
	if p == nil || p.Buckets < 2 {
		return DefaultBuckets
	}
	return p.Buckets
}

// Process runs mel remap, bucket averaging, normalisation and placement. The
// result holds one point per bucket and has not been smoothed. An empty
// batch or viewport yields nil.
func (p *PostProcessor) Process(batch spectrum.Batch, size spectrum.Size) spectrum.Curve {
	if len(batch) == 0 || size.Empty() {
		return nil
	}
	values := p.Average(batch)
	Normalize(values)
	return Place(values, size)
}

// Average groups the batch into evenly spaced mel buckets and returns the
// mean magnitude of each. Buckets with no bins are 0. When every bin maps to
// the same mel value all of them land in the first bucket.
func (p *PostProcessor) Average(batch spectrum.Batch) []float64 {
	n := p.buckets()
	sums := make([]float64, n)
	if len(batch) == 0 {
		return sums
	}
	counts := make([]int, n)

	first := Mel(batch[0].Frequency)
	last := Mel(batch[len(batch)-1].Frequency)
	width := (last - first) / float64(n)

	for _, bin := range batch {
		idx := 0
		if width > 0 {
			idx = int((Mel(bin.Frequency) - first) / width)
		}
		idx = min(max(idx, 0), n-1)
		sums[idx] += cmplx.Abs(bin.Amplitude)
		counts[idx]++
	}

	for i := range sums {
		if counts[i] == 0 {
			sums[i] = 0
			continue
		}
		sums[i] /= float64(counts[i])
	}
	return sums
}

// Normalize scales values in place so the largest is 1. All-zero input is
// left at 0.
func Normalize(values []float64) {
	var peak float64
	for _, v := range values {
		peak = max(peak, v)
	}
	if peak == 0 {
		for i := range values {
			values[i] = 0
		}
		return
	}
	for i := range values {
		values[i] /= peak
	}
}

// Place maps normalised values onto the viewport. X is evenly spaced, Y is
// inverted so larger values sit higher on screen.
func Place(values []float64, size spectrum.Size) spectrum.Curve {
	if len(values) == 0 {
		return nil
	}
	step := size.Width / float64(len(values))
	curve := make(spectrum.Curve, len(values))
	for i, v := range values {
		curve[i] = spectrum.Point{
			X: step * float64(i),
			Y: size.Height - v*size.Height - 1,
		}
	}
	return curve
}

// Rescale returns curve scaled from one viewport size to another. A curve with
// no usable previous size is returned unchanged.
func Rescale(curve spectrum.Curve, from, to spectrum.Size) spectrum.Curve {
	if from.Empty() || len(curve) == 0 {
		return curve
	}
	wf := to.Width / from.Width
	hf := to.Height / from.Height
	out := make(spectrum.Curve, len(curve))
	for i, pt := range curve {
		out[i] = spectrum.Point{X: pt.X * wf, Y: pt.Y * hf}
	}
	return out
}
