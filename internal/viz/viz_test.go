package viz

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestCanvasSet(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(10, 10)

	if c.Grid[0][0] != brailleBlank|0x1 {
		t.Errorf("cell 0 = %U, want %U", c.Grid[0][0], rune(brailleBlank|0x1))
	}
	if c.Grid[0][1] != brailleBlank|0x80 {
		t.Errorf("cell 1 = %U, want %U", c.Grid[0][1], rune(brailleBlank|0x80))
	}
}

func TestCanvasDrawLine(t *testing.T) {
	c := NewCanvas(4, 1)
	c.DrawLine(0, 0, 7, 0)
	for col := 0; col < 4; col++ {
		if !c.Lit(0, col) {
			t.Errorf("column %d not lit by horizontal line", col)
		}
	}

	far := NewCanvas(4, 1)
	far.DrawLine(0, 0, math.MaxInt32, 0)
	if !far.Lit(0, 0) {
		t.Error("line towards a far endpoint should still start on the canvas")
	}
}

func TestChartRender(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{0, 1, 4, 9}
	ch := NewChart(20, 6)
	ch.Title = "growth"
	ch.XLabel = "t"
	ch.Line("pop", x, y).Points("pop data", x, y)

	out := ch.Render()
	for _, want := range []string{"growth", "pop", "pop data", "9", "0"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestChartBounds(t *testing.T) {
	tests := []struct {
		name       string
		x, y       []float64
		xmin, xmax float64
	}{
		{"normal", []float64{1, 2, 3}, []float64{5, 6, 7}, 1, 3},
		{"ignores nan", []float64{1, math.NaN(), 3}, []float64{5, 6, math.Inf(1)}, 1, 1.5},
		{"empty", nil, nil, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewChart(20, 5).Line("s", tt.x, tt.y)
			xmin, xmax, ymin, ymax := ch.Bounds()
			if xmin > tt.xmin || xmax < tt.xmax {
				t.Errorf("x bounds [%g, %g] do not cover [%g, %g]", xmin, xmax, tt.xmin, tt.xmax)
			}
			if !(ymax > ymin) {
				t.Errorf("degenerate y bounds [%g, %g]", ymin, ymax)
			}
		})
	}
}

func TestChartArrowsExtendBounds(t *testing.T) {
	ch := NewChart(20, 5).Arrows("field", []float64{0}, []float64{0}, []float64{2}, []float64{3})
	_, xmax, _, ymax := ch.Bounds()
	if xmax < 2 || ymax < 3 {
		t.Errorf("bounds (%g, %g) exclude arrow heads", xmax, ymax)
	}
}

func TestHistogram(t *testing.T) {
	counts := Histogram([]float64{0, 0.1, 0.5, 0.9, 1, 2, math.NaN()}, 2, 0, 1)
	if counts[0] != 2 || counts[1] != 3 {
		t.Errorf("counts = %v, want [2 3]", counts)
	}
}

func TestHistogramPlotOverlay(t *testing.T) {
	samples := []float64{1, 2, 2, 3, 3, 3, 4, 4, 5}
	out := HistogramPlot(samples, 10, 5, "a", func(float64) float64 { return 0.1 })
	if !strings.Contains(out, "a") {
		t.Errorf("caption missing:\n%s", out)
	}
	if HistogramPlot(nil, 10, 5, "", nil) != "" {
		t.Error("empty samples should render nothing")
	}
}

func TestSeriesPlot(t *testing.T) {
	xs := make([]float64, 500)
	for i := range xs {
		xs[i] = math.Sin(float64(i) / 50)
	}
	out := SeriesPlot([][]float64{xs, {math.NaN()}}, 60, 8, "sin")
	if out == "" || !strings.Contains(out, "sin") {
		t.Errorf("unexpected plot:\n%s", out)
	}
}

func TestSparkline(t *testing.T) {
	s := Sparkline([]float64{0, 1, 2, 3, 4, 5, 6, 7}, 8)
	if []rune(s)[0] != '▁' || []rune(s)[7] != '█' {
		t.Errorf("sparkline = %q", s)
	}
}

func TestTrajectoryWireframe(t *testing.T) {
	w := TrajectoryWireframe([]float64{0, 1, math.NaN(), 2}, []float64{0, 1, 1, 2}, []float64{0, 1, 1, 2})
	// point, edge, (break), point
	if w.Len() != 3 {
		t.Errorf("edges = %d, want 3", w.Len())
	}
	for _, e := range w.Edges {
		for _, v := range []float64{e.Start.X, e.Start.Y, e.Start.Z, e.End.X, e.End.Y, e.End.Z} {
			if v < -1 || v > 1 {
				t.Fatalf("point outside unit cube: %+v", e)
			}
		}
	}
}

func TestRender3DTrajectory(t *testing.T) {
	n := 200
	xs, ys, zs := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := range xs {
		a := float64(i) / 10
		xs[i], ys[i], zs[i] = math.Cos(a), math.Sin(a), a
	}
	out := Render3DTrajectory(xs, ys, zs, [3]string{"x", "y", "z"}, 30, 10, nil)
	if !strings.Contains(out, "z: z") {
		t.Errorf("axis labels missing:\n%s", out)
	}
}

func TestFitProgressUpdate(t *testing.T) {
	cancelled := false
	fp := NewFitProgress("fit", func() { cancelled = true })

	next, _ := fp.Update(ProgressMsg{Chain: 0, Iter: 50, Total: 100, Burn: 25, Acceptance: 0.3})
	fp = next.(FitProgress)
	if !strings.Contains(fp.View(), "chain 0") {
		t.Errorf("view missing chain line:\n%s", fp.View())
	}

	next, cmd := fp.Update(DoneMsg{Err: errors.New("boom")})
	fp = next.(FitProgress)
	if cmd == nil || fp.Err() == nil {
		t.Error("DoneMsg should quit and keep the error")
	}
	if cancelled {
		t.Error("DoneMsg should not cancel")
	}
}
