package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/sim"
	"github.com/san-kum/dynfit/internal/viz"
)

// BifurcationPoint holds the distinct long-run values of a state for one
// parameter value.
type BifurcationPoint struct {
	Param  float64
	Values []float64
}

// BifurcationOptions controls each run of a sweep.
type BifurcationOptions struct {
	LyapunovOptions
	// Record is the time recorded after the transient, 50 by default.
	Record float64
	// Resolution quantises recorded values when removing duplicates.
	Resolution float64
}

// Bifurcation sweeps param over values, integrating a private copy of the
// system from its initial state for each value. After the transient, the
// local maxima of state are recorded (or every iterate for difference
// systems); a system that settles records its final value.
func Bifurcation(ctx context.Context, s *sim.Simulation, param string, values []float64, state string, opts BifurcationOptions) ([]BifurcationPoint, error) {
	o := opts.LyapunovOptions.withDefaults()
	if o.Transient <= 0 {
		o.Transient = 100
	}
	record := opts.Record
	if record <= 0 {
		record = 50
	}
	res := opts.Resolution
	if res <= 0 {
		res = 1e-3
	}
	if _, ok := s.Param(param); !ok {
		return nil, fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, param)
	}
	idx := -1
	for i, name := range s.StateNames() {
		if name == state {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", sim.ErrUnknownVariable, state)
	}
	discrete := s.IsDiscrete()

	results := make([]BifurcationPoint, len(values))
	errs := make([]error, len(values))
	dynamo.ParallelFor(len(values), 4, func(start, end int) {
		step, sys, x0, dt, err := stepper(s, o)
		if err != nil {
			for i := start; i < end; i++ {
				errs[i] = err
			}
			return
		}
		tunable := sys.(dynamo.Configurable)
		for i := start; i < end; i++ {
			if err := tunable.SetParam(param, values[i]); err != nil {
				errs[i] = err
				continue
			}
			results[i], errs[i] = sweepOne(ctx, step, x0, dt, idx, values[i], o.Transient, record, res, discrete)
		}
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return results, nil
}

func sweepOne(ctx context.Context, step stepFunc, x0 dynamo.State, dt float64, idx int, param, transient, record, res float64, discrete bool) (BifurcationPoint, error) {
	p := BifurcationPoint{Param: param}
	x, t, err := settle(ctx, step, x0, dt, transient)
	if err != nil {
		return p, err
	}

	seen := make(map[int64]bool)
	add := func(v float64) {
		key := int64(math.Round(v / res))
		if !seen[key] {
			seen[key] = true
			p.Values = append(p.Values, v)
		}
	}

	prev2, prev := math.NaN(), x[idx]
	for end := t + record; t < end; {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		x = step(x, t)
		t += dt
		if !x.IsValid() {
			return p, &dynamo.SimulationError{Time: t, State: x, Wrapped: dynamo.ErrInvalidState}
		}
		curr := x[idx]
		switch {
		case discrete:
			add(curr)
		case prev > prev2 && prev > curr:
			add(prev)
		}
		prev2, prev = prev, curr
	}
	if len(p.Values) == 0 {
		add(x[idx])
	}
	return p, nil
}

// RenderBifurcation scatters every recorded value against its parameter.
func RenderBifurcation(points []BifurcationPoint, param, state string, width, height int) string {
	var xs, ys []float64
	for _, p := range points {
		for _, v := range p.Values {
			xs = append(xs, p.Param)
			ys = append(ys, v)
		}
	}
	if len(xs) == 0 {
		return ""
	}
	chart := viz.NewChart(width, height)
	chart.Title = fmt.Sprintf("bifurcation of %s in %s", state, param)
	chart.XLabel, chart.YLabel = param, state
	chart.Points(state, xs, ys)
	return chart.Render()
}
