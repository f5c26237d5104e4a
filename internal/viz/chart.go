package viz

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type layerKind int

const (
	layerLine layerKind = iota
	layerPoints
	layerArrows
)

type layer struct {
	name   string
	kind   layerKind
	x, y   []float64
	dx, dy []float64
}

// Chart is a braille x/y plot with axis labels, a legend and a frame.
// Each series is drawn on its own canvas and the canvases are merged, the
// last series to touch a cell deciding its colour.
type Chart struct {
	Title          string
	XLabel, YLabel string
	// Width and Height size the plotting area in terminal cells.
	Width, Height int
	Theme         Theme
	// Frame wraps the chart in a rounded border.
	Frame bool

	layers []layer

	fixed                  bool
	xmin, xmax, ymin, ymax float64
}

func NewChart(width, height int) *Chart {
	if width < 10 {
		width = 10
	}
	if height < 4 {
		height = 4
	}
	return &Chart{Width: width, Height: height, Theme: CurrentTheme, Frame: true}
}

// Line adds a polyline. Non-finite samples break the line.
func (c *Chart) Line(name string, x, y []float64) *Chart {
	c.layers = append(c.layers, layer{name: name, kind: layerLine, x: x, y: y})
	return c
}

// Points adds unconnected markers.
func (c *Chart) Points(name string, x, y []float64) *Chart {
	c.layers = append(c.layers, layer{name: name, kind: layerPoints, x: x, y: y})
	return c
}

// Arrows adds one arrow per (x, y) pointing along (dx, dy) in data units.
func (c *Chart) Arrows(name string, x, y, dx, dy []float64) *Chart {
	c.layers = append(c.layers, layer{name: name, kind: layerArrows, x: x, y: y, dx: dx, dy: dy})
	return c
}

// SetBounds fixes the data window instead of fitting it to the series.
func (c *Chart) SetBounds(xmin, xmax, ymin, ymax float64) *Chart {
	c.fixed = true
	c.xmin, c.xmax, c.ymin, c.ymax = xmin, xmax, ymin, ymax
	return c
}

// Bounds returns the data window Render will use.
func (c *Chart) Bounds() (xmin, xmax, ymin, ymax float64) {
	if c.fixed {
		return padRange(c.xmin, c.xmax, c.ymin, c.ymax)
	}
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	grow := func(x, y float64) {
		if !finite(x) || !finite(y) {
			return
		}
		xmin, xmax = math.Min(xmin, x), math.Max(xmax, x)
		ymin, ymax = math.Min(ymin, y), math.Max(ymax, y)
	}
	for _, l := range c.layers {
		n := min(len(l.x), len(l.y))
		for i := 0; i < n; i++ {
			grow(l.x[i], l.y[i])
			if l.kind == layerArrows && i < len(l.dx) && i < len(l.dy) {
				grow(l.x[i]+l.dx[i], l.y[i]+l.dy[i])
			}
		}
	}
	if math.IsInf(xmin, 1) {
		return 0, 1, 0, 1
	}
	return padRange(xmin, xmax, ymin, ymax)
}

func padRange(xmin, xmax, ymin, ymax float64) (float64, float64, float64, float64) {
	if xmax <= xmin {
		d := math.Max(math.Abs(xmin)*0.1, 0.5)
		xmin, xmax = xmin-d, xmax+d
	}
	if ymax <= ymin {
		d := math.Max(math.Abs(ymin)*0.1, 0.5)
		ymin, ymax = ymin-d, ymax+d
	}
	return xmin, xmax, ymin, ymax
}

func (c *Chart) Render() string {
	xmin, xmax, ymin, ymax := c.Bounds()
	pw, ph := c.Width*2, c.Height*4
	toPixel := func(x, y float64) (int, int) {
		px := (x - xmin) / (xmax - xmin) * float64(pw-1)
		py := (ymax - y) / (ymax - ymin) * float64(ph-1)
		return int(math.Round(px)), int(math.Round(py))
	}

	canvases := make([]*Canvas, len(c.layers))
	for i, l := range c.layers {
		cv := NewCanvas(c.Width, c.Height)
		n := min(len(l.x), len(l.y))
		switch l.kind {
		case layerLine:
			havePrev := false
			var px0, py0 int
			for k := 0; k < n; k++ {
				if !finite(l.x[k]) || !finite(l.y[k]) {
					havePrev = false
					continue
				}
				px, py := toPixel(l.x[k], l.y[k])
				if havePrev {
					cv.DrawLine(px0, py0, px, py)
				} else {
					cv.Set(px, py)
				}
				px0, py0, havePrev = px, py, true
			}
		case layerPoints:
			for k := 0; k < n; k++ {
				if finite(l.x[k]) && finite(l.y[k]) {
					cv.DrawMarker(toPixel(l.x[k], l.y[k]))
				}
			}
		case layerArrows:
			for k := 0; k < n && k < len(l.dx) && k < len(l.dy); k++ {
				x1, y1 := l.x[k]+l.dx[k], l.y[k]+l.dy[k]
				if !finite(l.x[k]) || !finite(l.y[k]) || !finite(x1) || !finite(y1) {
					continue
				}
				ax, ay := toPixel(l.x[k], l.y[k])
				bx, by := toPixel(x1, y1)
				cv.DrawArrow(ax, ay, bx, by)
			}
		}
		canvases[i] = cv
	}

	yTop, yMid, yBot := formatTick(ymax), formatTick((ymin+ymax)/2), formatTick(ymin)
	gutter := max(len(yTop), len(yMid), len(yBot))
	axis := lipgloss.NewStyle().Foreground(c.Theme.Axis)

	var b strings.Builder
	if c.Title != "" {
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(c.Theme.Title).Render(c.Title))
		b.WriteByte('\n')
	}
	if c.YLabel != "" {
		b.WriteString(axis.Render(strings.Repeat(" ", gutter+1) + c.YLabel))
		b.WriteByte('\n')
	}

	for row := 0; row < c.Height; row++ {
		label := ""
		switch row {
		case 0:
			label = yTop
		case c.Height / 2:
			label = yMid
		case c.Height - 1:
			label = yBot
		}
		b.WriteString(axis.Render(fmt.Sprintf("%*s┤", gutter, label)))
		for col := 0; col < c.Width; col++ {
			cell := rune(brailleBlank)
			owner := -1
			for i, cv := range canvases {
				if cv.Lit(row, col) {
					cell |= cv.Grid[row][col]
					owner = i
				}
			}
			if owner < 0 {
				b.WriteRune(cell)
				continue
			}
			b.WriteString(lipgloss.NewStyle().Foreground(c.Theme.SeriesColor(owner)).Render(string(cell)))
		}
		b.WriteByte('\n')
	}

	b.WriteString(axis.Render(strings.Repeat(" ", gutter) + "└" + strings.Repeat("─", c.Width)))
	b.WriteByte('\n')
	left, right := formatTick(xmin), formatTick(xmax)
	pad := c.Width - len(left) - len(right)
	if c.XLabel != "" && pad > len(c.XLabel)+2 {
		lp := (pad - len(c.XLabel)) / 2
		b.WriteString(axis.Render(strings.Repeat(" ", gutter+1) + left + strings.Repeat(" ", lp) + c.XLabel + strings.Repeat(" ", pad-lp-len(c.XLabel)) + right))
	} else {
		b.WriteString(axis.Render(strings.Repeat(" ", gutter+1) + left + strings.Repeat(" ", max(pad, 1)) + right))
	}

	if legend := c.legend(); legend != "" {
		b.WriteByte('\n')
		b.WriteString(legend)
	}

	if !c.Frame {
		return b.String() + "\n"
	}
	frame := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c.Theme.Border).
		Padding(0, 1)
	return frame.Render(b.String()) + "\n"
}

func (c *Chart) legend() string {
	var parts []string
	for i, l := range c.layers {
		if l.name == "" {
			continue
		}
		glyph := "━"
		switch l.kind {
		case layerPoints:
			glyph = "+"
		case layerArrows:
			glyph = "→"
		}
		swatch := lipgloss.NewStyle().Foreground(c.Theme.SeriesColor(i)).Render(glyph)
		parts = append(parts, swatch+" "+l.name)
	}
	return strings.Join(parts, "  ")
}

func formatTick(v float64) string {
	switch a := math.Abs(v); {
	case v == 0:
		return "0"
	case a >= 1e5 || a < 1e-3:
		return strconv.FormatFloat(v, 'e', 2, 64)
	case a >= 100:
		return strconv.FormatFloat(v, 'f', 0, 64)
	default:
		return strconv.FormatFloat(v, 'g', 4, 64)
	}
}
