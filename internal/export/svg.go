package export

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/dynfit/internal/sim"
	"github.com/san-kum/dynfit/internal/viz"
)

var ErrTooFewPoints = errors.New("export: need at least two points")

// Point is one vertex of a path in data coordinates.
type Point struct {
	X, Y float64
}

const background = "#0a0a0a"

func header(sb *strings.Builder, width, height float64) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background)
}

// CanvasToSVG draws every lit braille dot of canvas as a circle.
func CanvasToSVG(canvas *viz.Canvas, scale float64, theme viz.Theme) string {
	if canvas == nil {
		return ""
	}

	width := float64(canvas.PixelWidth()) * scale
	height := float64(canvas.PixelHeight()) * scale

	var sb strings.Builder
	header(&sb, width, height)
	fmt.Fprintf(&sb, "<g fill=\"%s\">\n", theme.SeriesColor(0))

	// braille bit of each sub-pixel, by row then column
	bits := [4][2]rune{
		{0x01, 0x08},
		{0x02, 0x10},
		{0x04, 0x20},
		{0x40, 0x80},
	}
	r := scale * 0.4

	for row := 0; row < canvas.Height; row++ {
		for col := 0; col < canvas.Width; col++ {
			if !canvas.Lit(row, col) {
				continue
			}
			pattern := canvas.Grid[row][col] - 0x2800
			baseX := float64(col) * scale * 2
			baseY := float64(row) * scale * 4
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&bits[dy][dx] == 0 {
						continue
					}
					cx := baseX + float64(dx)*scale + scale/2
					cy := baseY + float64(dy)*scale + scale/2
					fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n", cx, cy, r)
				}
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// frame maps data coordinates onto a width x height viewport with 10%
// padding on each side.
type frame struct {
	minX, minY     float64
	rangeX, rangeY float64
	width, height  float64
}

func newFrame(xs, ys []float64, width, height int) frame {
	minX, maxX := bounds(xs)
	minY, maxY := bounds(ys)
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	return frame{
		minX: minX, minY: minY,
		rangeX: rangeX * 1.2, rangeY: rangeY * 1.2,
		width: float64(width), height: float64(height),
	}
}

func (f frame) at(x, y float64) (float64, float64) {
	return (x - f.minX) / f.rangeX * f.width,
		f.height - (y-f.minY)/f.rangeY*f.height
}

func bounds(vs []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

func writePath(sb *strings.Builder, f frame, xs, ys []float64, stroke string) {
	fmt.Fprintf(sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, stroke)
	pen := "M"
	for i := range xs {
		if math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
			pen = "M"
			continue
		}
		x, y := f.at(xs[i], ys[i])
		fmt.Fprintf(sb, "%s%.1f,%.1f ", pen, x, y)
		pen = "L"
	}
	sb.WriteString("\"/>\n")
}

// TrajectoryToSVG draws points as a single path.
func TrajectoryToSVG(points []Point, width, height int, strokeColor string) (string, error) {
	if len(points) < 2 {
		return "", ErrTooFewPoints
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	f := newFrame(xs, ys, width, height)

	var sb strings.Builder
	header(&sb, f.width, f.height)
	writePath(&sb, f, xs, ys, strokeColor)
	sb.WriteString("</svg>")
	return sb.String(), nil
}

// SimulationToSVG draws the named series of the last run against time,
// with any attached data for them as markers, in the colours of theme. No
// names means every recorded series.
func SimulationToSVG(s *sim.Simulation, names []string, width, height int, theme viz.Theme) (string, error) {
	if s.Results() == nil {
		return "", sim.ErrNotRun
	}
	ts := s.T()
	if len(ts) < 2 {
		return "", ErrTooFewPoints
	}
	if len(names) == 0 {
		names = s.Names()
	}

	series := make([][]float64, len(names))
	allY := []float64{}
	for i, name := range names {
		ys, err := s.Series(name)
		if err != nil {
			return "", err
		}
		series[i] = ys
		allY = append(allY, ys...)
		for _, d := range s.DataFor(name) {
			allY = append(allY, d.Values...)
		}
	}
	f := newFrame(ts, allY, width, height)

	var sb strings.Builder
	header(&sb, f.width, f.height)
	for i, name := range names {
		color := string(theme.SeriesColor(i))
		writePath(&sb, f, ts, series[i], color)
		for _, d := range s.DataFor(name) {
			fmt.Fprintf(&sb, "<g fill=\"%s\">\n", color)
			for k, t := range d.T {
				x, y := f.at(t, d.Values[k])
				fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"3\"/>\n", x, y)
			}
			sb.WriteString("</g>\n")
		}
		fmt.Fprintf(&sb, "<text x=\"10\" y=\"%d\" fill=\"%s\" font-family=\"monospace\" font-size=\"12\">%s</text>\n",
			16*(i+1), color, name)
	}
	sb.WriteString("</svg>")
	return sb.String(), nil
}
