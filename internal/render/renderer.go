// SPDX-License-Identifier: MIT
package render

import (
	"sync"

	"musualiser/internal/handoff"
	"musualiser/internal/spectrum"
)

// Surface draws cubic Bezier curves. Calls are fire-and-forget.
type Surface interface {
	DrawBezier(p0, p1, p2, p3 spectrum.Point)
}

// Renderer builds the display curve once per frame from the newest batch on
// its receiver and hands the Bezier groups to a Surface.
type Renderer struct {
	mu        sync.Mutex
	receiver  handoff.Receiver
	processor *PostProcessor

	batch   spectrum.Batch
	anchors spectrum.Curve
	curve   spectrum.Curve
	size    spectrum.Size
	updates uint64
}

// NewRenderer returns a Renderer reading from rx.
func NewRenderer(rx handoff.Receiver, p *PostProcessor) *Renderer {
	if p == nil {
		p = NewPostProcessor(DefaultBuckets)
	}
	return &Renderer{receiver: rx, processor: p}
}

// SetReceiver switches the batch source. The current curve is kept until the
// new source produces a batch.
func (r *Renderer) SetReceiver(rx handoff.Receiver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receiver = rx
}

// Render consumes at most the most recent pending batch, rebuilds the curve
// for size, and draws it offset by origin. Without new data a size change
// rescales the previous curve instead of recomputing it.
func (r *Renderer) Render(size spectrum.Size, origin spectrum.Point, s Surface) spectrum.Curve {
	r.mu.Lock()
	r.update(size)
	curve := r.curve
	r.mu.Unlock()

	if s != nil && len(curve) > 0 {
		for _, g := range curve.Translate(origin).BezierGroups() {
			s.DrawBezier(g[0], g[1], g[2], g[3])
		}
	}
	return curve
}

func (r *Renderer) update(size spectrum.Size) {
	var (
		batch spectrum.Batch
		ok    bool
	)
	if r.receiver != nil {
		batch, ok = r.receiver.Latest()
	}

	switch {
	case ok && len(batch) > 0:
		r.batch = batch
		r.anchors = r.processor.Process(batch, size)
		r.updates++
	case size == r.size:
		return
	case r.size.Empty() && r.batch != nil:
		r.anchors = r.processor.Process(r.batch, size)
	default:
		r.anchors = Rescale(r.anchors, r.size, size)
	}
	r.size = size
	r.curve = Smooth(r.anchors)
}

// Latest returns a copy of the most recently built display curve.
func (r *Renderer) Latest() spectrum.Curve {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(spectrum.Curve(nil), r.curve...)
}

// Anchors returns a copy of the bucket points behind the current curve.
func (r *Renderer) Anchors() spectrum.Curve {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(spectrum.Curve(nil), r.anchors...)
}

// Updates returns how many batches have been rendered.
func (r *Renderer) Updates() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}
