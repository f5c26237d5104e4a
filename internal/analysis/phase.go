package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/dynfit/internal/sim"
	"github.com/san-kum/dynfit/internal/viz"
)

// PhasePlot writes the phase portrait of the last run to the simulation's
// output. Two names plot the second against the first; three names draw a
// rotated 3-D trajectory.
func PhasePlot(s *sim.Simulation, names ...string) error {
	out, err := RenderPhase(s, names...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(s.Output(), out)
	return err
}

// RenderPhase is PhasePlot without the write.
func RenderPhase(s *sim.Simulation, names ...string) (string, error) {
	if len(names) < 2 || len(names) > 3 {
		return "", fmt.Errorf("%w, got %d", ErrPhaseArgs, len(names))
	}
	series := make([][]float64, len(names))
	for i, name := range names {
		v, err := s.Series(name)
		if err != nil {
			return "", err
		}
		series[i] = v
	}

	width, height := s.PlotSize()
	if len(names) == 3 {
		cam := viz.NewCamera()
		cam.RotateX(-0.4)
		cam.RotateY(0.6)
		return viz.Render3DTrajectory(series[0], series[1], series[2],
			[3]string{names[0], names[1], names[2]}, width, height, cam), nil
	}

	chart := viz.NewChart(width, height)
	chart.Title = fmt.Sprintf("%s vs %s", names[1], names[0])
	chart.XLabel = names[0]
	chart.YLabel = names[1]
	chart.Line("trajectory", series[0], series[1])
	if len(series[0]) > 0 {
		chart.Points("start", series[0][:1], series[1][:1])
	}
	return chart.Render(), nil
}

// Point is a position in a two-variable projection of phase space.
type Point struct{ X, Y float64 }

// PoincareSection records (x, y) from the last run each time cross rises
// through threshold, interpolating between output samples.
func PoincareSection(s *sim.Simulation, cross string, threshold float64, x, y string) ([]Point, error) {
	c, err := s.Series(cross)
	if err != nil {
		return nil, err
	}
	xs, err := s.Series(x)
	if err != nil {
		return nil, err
	}
	ys, err := s.Series(y)
	if err != nil {
		return nil, err
	}

	var points []Point
	for i := 1; i < len(c); i++ {
		prev, curr := c[i-1], c[i]
		if !(prev < threshold && curr >= threshold) {
			continue
		}
		frac := (threshold - prev) / (curr - prev)
		if math.IsNaN(frac) || math.IsInf(frac, 0) {
			frac = 0.5
		}
		points = append(points, Point{
			X: xs[i-1] + frac*(xs[i]-xs[i-1]),
			Y: ys[i-1] + frac*(ys[i]-ys[i-1]),
		})
	}
	return points, nil
}

// RenderPoincare draws a section as a scatter plot.
func RenderPoincare(points []Point, xLabel, yLabel string, width, height int) string {
	if len(points) == 0 {
		return "No crossings detected\n"
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	chart := viz.NewChart(width, height)
	chart.Title = "Poincaré section"
	chart.XLabel, chart.YLabel = xLabel, yLabel
	chart.Points("crossings", xs, ys)
	return chart.Render()
}
