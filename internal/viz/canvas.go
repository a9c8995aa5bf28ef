package viz

import (
	"strings"

	"github.com/san-kum/varimech/internal/mech"
)

// Braille Patterns: 2x4 dots per character cell
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var brailleBits = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// Canvas is a Braille pixel grid. Pixel coordinates run over
// (Width*2) x (Height*4) sub-pixels.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800
		}
	}
	return c
}

func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= brailleBits[y%4][x%2]
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800
		}
	}
}

// Line draws with Bresenham's algorithm in sub-pixel coordinates.
func (c *Canvas) Line(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Marker draws a small plus at a point, used for mass markers.
func (c *Canvas) Marker(x, y int) {
	c.Set(x, y)
	c.Set(x-1, y)
	c.Set(x+1, y)
	c.Set(x, y-1)
	c.Set(x, y+1)
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Projection maps world x-z coordinates to canvas sub-pixels. World z points
// up on screen. Terminal cells are roughly twice as tall as wide; the 2x4
// Braille subdivision evens that out.
type Projection struct {
	CenterX, CenterZ float64 // world point at the canvas center
	Scale            float64 // sub-pixels per world unit
	canvas           *Canvas
}

// NewProjection centers the view on (cx, cz) with a world half-width of span.
func NewProjection(c *Canvas, cx, cz, span float64) *Projection {
	if span <= 0 {
		span = 1
	}
	return &Projection{
		CenterX: cx,
		CenterZ: cz,
		Scale:   float64(c.Width) / span, // *2 subpixels / (2*span)
		canvas:  c,
	}
}

func (p *Projection) point(w [3]float64) (int, int) {
	x := float64(p.canvas.Width) + (w[0]-p.CenterX)*p.Scale
	y := float64(p.canvas.Height)*2 - (w[2]-p.CenterZ)*p.Scale
	return int(x), int(y)
}

// DrawSystem draws the mechanism at the kinematics' current configuration:
// a segment from every frame to its parent, and a marker at each frame that
// carries mass.
func (p *Projection) DrawSystem(kin *mech.Kinematics) {
	sys := kin.System()
	for id := 1; id < sys.NumFrames(); id++ {
		f := sys.Frame(mech.FrameID(id))
		x0, y0 := p.point(kin.Pos(f.Parent()))
		x1, y1 := p.point(kin.Pos(mech.FrameID(id)))
		p.canvas.Line(x0, y0, x1, y1)
		if f.Mass() > 0 {
			p.canvas.Marker(x1, y1)
		}
	}
}
