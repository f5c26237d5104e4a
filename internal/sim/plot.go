package sim

import (
	"fmt"

	"github.com/san-kum/dynfit/internal/equation"
	"github.com/san-kum/dynfit/internal/viz"
)

func (s *Simulation) wantsPlot() bool {
	for _, v := range s.vars {
		if v.plot {
			return true
		}
	}
	for _, d := range s.data {
		if d.Plot {
			return true
		}
	}
	return false
}

// Plot draws the plotted variables of the last run against time, with any
// data for them overlaid as markers. Without plot flags every state
// variable is drawn.
func (s *Simulation) Plot() error {
	r, err := s.requireResults()
	if err != nil {
		return err
	}

	names := s.plotted()
	chart := viz.NewChart(s.width, s.height)
	chart.XLabel = "t"
	for _, name := range names {
		ys, ok := r.Series(name)
		if !ok {
			continue
		}
		chart.Line(name, r.T, ys)
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	for _, d := range s.data {
		if d.Plot || want[d.Name] {
			chart.Points(d.Name+" data", d.T, d.Values)
		}
	}

	_, err = fmt.Fprint(s.out, chart.Render())
	return err
}

func (s *Simulation) plotted() []string {
	var names []string
	for _, v := range s.vars {
		if v.plot {
			names = append(names, v.eq.Name)
		}
	}
	if len(names) > 0 {
		return names
	}
	for _, v := range s.vars {
		if v.eq.Kind != equation.Auxiliary {
			names = append(names, v.eq.Name)
		}
	}
	return names
}
