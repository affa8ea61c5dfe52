// SPDX-License-Identifier: MIT
package tui

import (
	"math"
	"strings"

	"musualiser/internal/render"
	"musualiser/internal/spectrum"
)

// Braille cells hold a 2x4 grid of dots.
const (
	dotsX = 2
	dotsY = 4
)

// braille bit for the dot at (x, y) inside one cell.
var brailleBits = [dotsY][dotsX]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas rasterises curves onto terminal cells using braille dots. Its
// drawing coordinates are dots, so Size is twice the column count wide and
// four times the row count high.
type Canvas struct {
	cols, rows int
	cells      []rune
}

var _ render.Surface = (*Canvas)(nil)

func NewCanvas(cols, rows int) *Canvas {
	c := &Canvas{}
	c.Resize(cols, rows)
	return c
}

// Resize changes the grid and clears it.
func (c *Canvas) Resize(cols, rows int) {
	c.cols, c.rows = max(0, cols), max(0, rows)
	c.cells = make([]rune, c.cols*c.rows)
}

// Size returns the drawable area in dots.
func (c *Canvas) Size() spectrum.Size {
	return spectrum.Size{Width: float64(c.cols * dotsX), Height: float64(c.rows * dotsY)}
}

func (c *Canvas) Clear() {
	clear(c.cells)
}

// Set lights the dot at (x, y). Points outside the canvas are ignored.
func (c *Canvas) Set(x, y float64) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return
	}
	dx, dy := int(math.Floor(x)), int(math.Floor(y))
	if dx < 0 || dy < 0 || dx >= c.cols*dotsX || dy >= c.rows*dotsY {
		return
	}
	c.cells[(dy/dotsY)*c.cols+dx/dotsX] |= brailleBits[dy%dotsY][dx%dotsX]
}

// DrawBezier samples the cubic segment densely enough that consecutive
// samples are at most one dot apart.
func (c *Canvas) DrawBezier(p0, p1, p2, p3 spectrum.Point) {
	length := dist(p0, p1) + dist(p1, p2) + dist(p2, p3)
	steps := max(1, int(math.Ceil(length*1.5)))
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		u := 1 - t
		x := u*u*u*p0.X + 3*u*u*t*p1.X + 3*u*t*t*p2.X + t*t*t*p3.X
		y := u*u*u*p0.Y + 3*u*u*t*p1.Y + 3*u*t*t*p2.Y + t*t*t*p3.Y
		c.Set(x, y)
	}
}

// Lit reports whether the dot at (x, y) is set.
func (c *Canvas) Lit(x, y int) bool {
	if x < 0 || y < 0 || x >= c.cols*dotsX || y >= c.rows*dotsY {
		return false
	}
	return c.cells[(y/dotsY)*c.cols+x/dotsX]&brailleBits[y%dotsY][x%dotsX] != 0
}

// String renders the grid as rows of braille characters. Empty cells are
// spaces.
func (c *Canvas) String() string {
	var sb strings.Builder
	sb.Grow(c.rows * (c.cols*3 + 1))
	for r := range c.rows {
		if r > 0 {
			sb.WriteByte('\n')
		}
		for _, bits := range c.cells[r*c.cols : (r+1)*c.cols] {
			if bits == 0 {
				sb.WriteByte(' ')
				continue
			}
			sb.WriteRune(0x2800 + bits)
		}
	}
	return sb.String()
}

func dist(a, b spectrum.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
