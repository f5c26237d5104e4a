package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/dynfit/internal/sim"
	"github.com/san-kum/dynfit/internal/viz"
)

// arrowFill is the longest arrow as a fraction of the grid spacing.
const arrowFill = 0.8

// Range is a set of values a state is sampled at.
type Range struct {
	Name   string
	Values []float64
}

// Arrow is one vector of a field: the rate (DX, DY) evaluated at (X, Y).
type Arrow struct {
	X, Y   float64
	DX, DY float64
}

// Field is a sampled vector field ready to draw.
type Field struct {
	XLabel, YLabel string
	Arrows         []Arrow
	// Trajectory is the last run projected onto the field's axes, if any.
	Trajectory [2][]float64
}

// VectorField writes the direction field of the system to the simulation's
// output. With one range the field is drawn in (t, state) over the last
// run, with the same number of time samples as the range has values. With
// two ranges it is drawn in the plane of the two states at the start time
// of the last run (or t=0), other states held at their initial values.
//
// Arrows are scaled by magnitude so the longest fills most of a grid cell;
// with rescale every arrow has that length.
func VectorField(s *sim.Simulation, rescale bool, ranges ...Range) error {
	f, err := SampleField(s, ranges...)
	if err != nil {
		return err
	}
	width, height := s.PlotSize()
	_, err = fmt.Fprint(s.Output(), f.Render(rescale, width, height))
	return err
}

// SampleField evaluates the raw rates VectorField draws.
func SampleField(s *sim.Simulation, ranges ...Range) (*Field, error) {
	if len(ranges) == 0 || len(ranges) > 2 {
		return nil, fmt.Errorf("%w, got %d", ErrNoRange, len(ranges))
	}
	for _, r := range ranges {
		if len(r.Values) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyRange, r.Name)
		}
	}
	if len(ranges) == 1 {
		return slopeField(s, ranges[0])
	}
	return planarField(s, ranges[0], ranges[1])
}

func slopeField(s *sim.Simulation, r Range) (*Field, error) {
	start, end, ok := s.Span()
	if !ok {
		return nil, sim.ErrNotRun
	}
	f := &Field{XLabel: "t", YLabel: r.Name}
	for _, t := range sim.Linspace(start, end, len(r.Values)) {
		for _, v := range r.Values {
			d, err := s.Derivatives(map[string]float64{r.Name: v}, t)
			if err != nil {
				return nil, err
			}
			f.Arrows = append(f.Arrows, Arrow{X: t, Y: v, DX: 1, DY: d[r.Name]})
		}
	}
	if ys, err := s.Series(r.Name); err == nil {
		f.Trajectory = [2][]float64{s.T(), ys}
	}
	return f, nil
}

func planarField(s *sim.Simulation, rx, ry Range) (*Field, error) {
	t, _, _ := s.Span()
	f := &Field{XLabel: rx.Name, YLabel: ry.Name}
	for _, x := range rx.Values {
		for _, y := range ry.Values {
			d, err := s.Derivatives(map[string]float64{rx.Name: x, ry.Name: y}, t)
			if err != nil {
				return nil, err
			}
			f.Arrows = append(f.Arrows, Arrow{X: x, Y: y, DX: d[rx.Name], DY: d[ry.Name]})
		}
	}
	xs, errX := s.Series(rx.Name)
	ys, errY := s.Series(ry.Name)
	if errX == nil && errY == nil {
		f.Trajectory = [2][]float64{xs, ys}
	}
	return f, nil
}

// Scaled returns the arrows resized for drawing. Each arrow is measured in
// grid cells so that axes with different units are treated alike.
func (f *Field) Scaled(rescale bool) []Arrow {
	if len(f.Arrows) == 0 {
		return nil
	}
	xmin, xmax, ymin, ymax := f.extent()
	cellX := (xmax - xmin) / float64(max(1, distinct(f.Arrows, true)-1))
	cellY := (ymax - ymin) / float64(max(1, distinct(f.Arrows, false)-1))
	if cellX == 0 {
		cellX = 1
	}
	if cellY == 0 {
		cellY = 1
	}

	longest := 0.0
	for _, a := range f.Arrows {
		if m := math.Hypot(a.DX/cellX, a.DY/cellY); m > longest && !math.IsInf(m, 0) {
			longest = m
		}
	}

	out := make([]Arrow, len(f.Arrows))
	for i, a := range f.Arrows {
		u, v := a.DX/cellX, a.DY/cellY
		m := math.Hypot(u, v)
		switch {
		case m == 0 || math.IsNaN(m) || math.IsInf(m, 0):
			u, v = 0, 0
		case rescale:
			u, v = u/m*arrowFill, v/m*arrowFill
		default:
			u, v = u/longest*arrowFill, v/longest*arrowFill
		}
		out[i] = Arrow{X: a.X, Y: a.Y, DX: u * cellX, DY: v * cellY}
	}
	return out
}

func (f *Field) extent() (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, a := range f.Arrows {
		xmin, xmax = math.Min(xmin, a.X), math.Max(xmax, a.X)
		ymin, ymax = math.Min(ymin, a.Y), math.Max(ymax, a.Y)
	}
	return xmin, xmax, ymin, ymax
}

func distinct(arrows []Arrow, byX bool) int {
	seen := make(map[float64]bool)
	for _, a := range arrows {
		if byX {
			seen[a.X] = true
		} else {
			seen[a.Y] = true
		}
	}
	return len(seen)
}

func (f *Field) Render(rescale bool, width, height int) string {
	arrows := f.Scaled(rescale)
	x := make([]float64, len(arrows))
	y := make([]float64, len(arrows))
	dx := make([]float64, len(arrows))
	dy := make([]float64, len(arrows))
	for i, a := range arrows {
		x[i], y[i], dx[i], dy[i] = a.X, a.Y, a.DX, a.DY
	}

	chart := viz.NewChart(width, height)
	chart.Title = fmt.Sprintf("%s' field", f.YLabel)
	if f.XLabel != "t" {
		chart.Title = fmt.Sprintf("%s-%s field", f.XLabel, f.YLabel)
	}
	chart.XLabel, chart.YLabel = f.XLabel, f.YLabel
	chart.Arrows("field", x, y, dx, dy)

	xmin, xmax, ymin, ymax := f.extent()
	chart.SetBounds(xmin, xmax, ymin, ymax)
	if len(f.Trajectory[0]) > 0 {
		tx, ty := clip(f.Trajectory[0], f.Trajectory[1], xmin, xmax, ymin, ymax)
		chart.Line("trajectory", tx, ty)
	}
	return chart.Render()
}

// clip breaks the trajectory with NaN where it leaves the window.
func clip(xs, ys []float64, xmin, xmax, ymin, ymax float64) ([]float64, []float64) {
	n := min(len(xs), len(ys))
	cx := make([]float64, n)
	cy := make([]float64, n)
	for i := 0; i < n; i++ {
		if xs[i] < xmin || xs[i] > xmax || ys[i] < ymin || ys[i] > ymax {
			cx[i], cy[i] = math.NaN(), math.NaN()
			continue
		}
		cx[i], cy[i] = xs[i], ys[i]
	}
	return cx, cy
}
