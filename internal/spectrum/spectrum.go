// SPDX-License-Identifier: MIT
/*
Package spectrum holds the value types passed between the capture, analysis
and render stages:

  - Bin and Batch are produced by the analyzer on the capture goroutine and
    handed to the consumer exactly once per analysis window.
  - Point and Curve are built by the render stage once per render tick.
*/
package spectrum

// Bin is one retained transform output: the raw complex amplitude and the
// centre frequency of the bin in Hz.
type Bin struct {
	Amplitude complex128
	Frequency float64
}

// Batch is the ordered set of bins produced from one analysis window. Bin
// frequencies are strictly increasing.
type Batch []Bin

// Clone returns a deep copy of the batch.
func (b Batch) Clone() Batch {
	if b == nil {
		return nil
	}
	out := make(Batch, len(b))
	copy(out, b)
	return out
}

// Point is a 2-D coordinate on the render surface.
type Point struct {
	X float64
	Y float64
}

// Size is the viewport size of a render surface.
type Size struct {
	Width  float64
	Height float64
}

// Empty reports whether either dimension is non-positive.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Curve is an ordered polyline on the render surface.
type Curve []Point

// BezierGroups splits the curve into cubic Bezier control groups. Consecutive
// groups share their end/start point, matching a smoothed curve that carries
// two interior points between every pair of anchor points.
func (c Curve) BezierGroups() [][4]Point {
	if len(c) < 4 {
		return nil
	}
	groups := make([][4]Point, 0, (len(c)-1)/3)
	for i := 0; i+3 < len(c); i += 3 {
		groups = append(groups, [4]Point{c[i], c[i+1], c[i+2], c[i+3]})
	}
	return groups
}

// Translate returns a copy of the curve shifted by origin.
func (c Curve) Translate(origin Point) Curve {
	out := make(Curve, len(c))
	for i, p := range c {
		out[i] = Point{X: p.X + origin.X, Y: p.Y + origin.Y}
	}
	return out
}
