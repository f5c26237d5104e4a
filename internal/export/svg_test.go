package export

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/san-kum/dynfit/internal/sim"
	"github.com/san-kum/dynfit/internal/viz"
)

func TestCanvasToSVG(t *testing.T) {
	c := viz.NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)

	out := CanvasToSVG(c, 2, viz.ThemeMinimal)
	if got := strings.Count(out, "<circle"); got != 2 {
		t.Errorf("expected 2 dots, got %d", got)
	}
	if !strings.Contains(out, `width="8" height="8"`) {
		t.Errorf("unexpected size in %q", out[:120])
	}
	if CanvasToSVG(nil, 1, viz.ThemeMinimal) != "" {
		t.Error("nil canvas should give empty output")
	}
}

func TestTrajectoryToSVG(t *testing.T) {
	out, err := TrajectoryToSVG([]Point{{0, 0}, {1, 1}, {2, 0}}, 100, 50, "#ff0000")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `stroke="#ff0000"`) {
		t.Error("stroke colour missing")
	}
	if strings.Count(out, "L") != 2 {
		t.Errorf("expected 2 line segments in %q", out)
	}

	if _, err := TrajectoryToSVG([]Point{{0, 0}}, 10, 10, "#fff"); !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("got %v, want ErrTooFewPoints", err)
	}
}

func TestSimulationToSVG(t *testing.T) {
	s := sim.New()
	s.SetOutput(io.Discard)
	if err := s.Add("x' = -x", []float64{1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("y' = x", []float64{0}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddData([]float64{0, 1}, map[string][]float64{"x": {1, 0.4}}); err != nil {
		t.Fatal(err)
	}

	if _, err := SimulationToSVG(s, nil, 200, 100, viz.ThemeOcean); !errors.Is(err, sim.ErrNotRun) {
		t.Errorf("got %v, want ErrNotRun", err)
	}

	if err := s.Run(context.Background(), 0, 2, sim.WithIterations(20)); err != nil {
		t.Fatal(err)
	}
	out, err := SimulationToSVG(s, nil, 200, 100, viz.ThemeOcean)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(out, "<path"); got != 2 {
		t.Errorf("expected 2 paths, got %d", got)
	}
	if got := strings.Count(out, "<circle"); got != 2 {
		t.Errorf("expected 2 data markers, got %d", got)
	}
	if !strings.Contains(out, ">y</text>") {
		t.Error("legend missing y")
	}

	if _, err := SimulationToSVG(s, []string{"z"}, 200, 100, viz.ThemeOcean); !errors.Is(err, sim.ErrUnknownVariable) {
		t.Errorf("got %v, want ErrUnknownVariable", err)
	}
}
