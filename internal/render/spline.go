// SPDX-License-Identifier: MIT
package render

import "musualiser/internal/spectrum"

// Oversample is the number of interpolated points inserted between every
// pair of anchor points.
const Oversample = 2

// cubic evaluates a Catmull-Rom segment between y1 and y2 at 0 <= x <= 1.
func cubic(y0, y1, y2, y3, x float64) float64 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1

	return a0*x*x*x + a1*x*x + a2*x + a3
}

// Smooth passes a Catmull-Rom spline through every anchor and samples
// Oversample interior points per segment. Anchors are kept exact and the
// outer tangents are clamped to the end points, so n anchors yield
// 3(n-1)+1 points that split cleanly into Bezier groups.
func Smooth(anchors spectrum.Curve) spectrum.Curve {
	n := len(anchors)
	if n < 2 {
		return append(spectrum.Curve(nil), anchors...)
	}

	out := make(spectrum.Curve, 0, (Oversample+1)*(n-1)+1)
	out = append(out, anchors[0])
	for i := 0; i < n-1; i++ {
		p0 := anchors[max(i-1, 0)]
		p1 := anchors[i]
		p2 := anchors[i+1]
		p3 := anchors[min(i+2, n-1)]

		for k := 1; k <= Oversample; k++ {
			t := float64(k) / float64(Oversample+1)
			out = append(out, spectrum.Point{
				X: cubic(p0.X, p1.X, p2.X, p3.X, t),
				Y: cubic(p0.Y, p1.Y, p2.Y, p3.Y, t),
			})
		}
		out = append(out, p2)
	}
	return out
}
