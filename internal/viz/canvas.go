package viz

import (
	"math"
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// Canvas is a grid of braille cells. Each cell holds 2x4 sub-pixels, so the
// addressable area is (Width*2) x (Height*4).
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
	return c
}

// PixelWidth and PixelHeight give the sub-pixel resolution.
func (c *Canvas) PixelWidth() int  { return c.Width * 2 }
func (c *Canvas) PixelHeight() int { return c.Height * 4 }

// Set lights the sub-pixel at (x, y). Out-of-range coordinates are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}

	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}

	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// Lit reports whether a cell has any sub-pixel set.
func (c *Canvas) Lit(row, col int) bool {
	return c.Grid[row][col] != brailleBlank
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	// Endpoints far off the canvas are clamped; Bresenham walks every pixel.
	limit := 4 * (c.PixelWidth() + c.PixelHeight())
	if absInt(x0) > limit || absInt(x1) > limit || absInt(y0) > limit || absInt(y1) > limit {
		x0, y0 = clampInt(x0, -limit, limit), clampInt(y0, -limit, limit)
		x1, y1 = clampInt(x1, -limit, limit), clampInt(y1, -limit, limit)
	}

	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
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

// DrawMarker draws a small plus centred on (x, y).
func (c *Canvas) DrawMarker(x, y int) {
	c.Set(x, y)
	c.Set(x-1, y)
	c.Set(x+1, y)
	c.Set(x, y-1)
	c.Set(x, y+1)
}

// DrawArrow draws a shaft from (x0, y0) to (x1, y1) with a two-stroke head.
func (c *Canvas) DrawArrow(x0, y0, x1, y1 int) {
	c.DrawLine(x0, y0, x1, y1)
	dx, dy := float64(x1-x0), float64(y1-y0)
	length := math.Hypot(dx, dy)
	if length < 1 {
		c.Set(x1, y1)
		return
	}
	head := math.Max(1.5, math.Min(3, length/3))
	angle := math.Atan2(dy, dx)
	for _, side := range []float64{-1, 1} {
		a := angle + math.Pi - side*math.Pi/6
		hx := x1 + int(math.Round(head*math.Cos(a)))
		hy := y1 + int(math.Round(head*math.Sin(a)))
		c.DrawLine(x1, y1, hx, hy)
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
