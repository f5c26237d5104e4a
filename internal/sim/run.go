package sim

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/integrators"
)

// DefaultIterations is the number of output points when a run names none.
const DefaultIterations = 1000

type RunOption func(*runConfig)

type runConfig struct {
	iterations int
	times      []float64
	method     string
	cfg        dynamo.Config
}

func defaultRunConfig() runConfig {
	return runConfig{
		iterations: DefaultIterations,
		method:     integrators.Default,
		cfg:        dynamo.DefaultConfig(),
	}
}

// WithIterations sets the number of evenly spaced output points, endpoints
// included.
func WithIterations(n int) RunOption {
	return func(c *runConfig) { c.iterations = n }
}

// WithTimes replaces the output grid. Times must be non-decreasing and lie
// within the run bounds.
func WithTimes(ts []float64) RunOption {
	return func(c *runConfig) { c.times = append([]float64(nil), ts...) }
}

func WithMethod(name string) RunOption {
	return func(c *runConfig) { c.method = name }
}

func WithConfig(cfg dynamo.Config) RunOption {
	return func(c *runConfig) { c.cfg = cfg }
}

// Run integrates the system from start to end and keeps the trajectory.
// If any variable was added with WithPlot the result is plotted to the
// output writer unless NoPlots is set.
func (s *Simulation) Run(ctx context.Context, start, end float64, opts ...RunOption) error {
	res, err := s.simulate(ctx, start, end, opts...)
	if err != nil {
		return err
	}
	s.results = res
	s.start, s.end = start, end

	if !s.NoPlots && s.wantsPlot() {
		return s.Plot()
	}
	return nil
}

// simulate integrates without touching stored results.
func (s *Simulation) simulate(ctx context.Context, start, end float64, opts ...RunOption) (*Results, error) {
	rc := defaultRunConfig()
	for _, opt := range opts {
		opt(&rc)
	}

	cs, err := s.compile()
	if err != nil {
		return nil, err
	}

	x0 := make(dynamo.State, cs.StateDim())
	for i, name := range cs.stateNames {
		x0[i] = s.initial[name]
	}
	if rc.cfg.ValidateState && !x0.IsValid() {
		return nil, &dynamo.SimulationError{Time: start, State: x0, Wrapped: dynamo.ErrInvalidState}
	}

	var (
		grid   []float64
		states []dynamo.State
	)
	if cs.discrete {
		grid, err = unitGrid(start, end)
		if err != nil {
			return nil, err
		}
		states, err = iterateMap(ctx, cs, x0, grid, rc.cfg)
	} else {
		grid, err = outputGrid(start, end, rc)
		if err != nil {
			return nil, err
		}
		states, err = integrate(ctx, cs, x0, grid, rc)
	}
	if err != nil {
		return nil, err
	}

	return collect(cs, grid, states)
}

func outputGrid(start, end float64, rc runConfig) ([]float64, error) {
	if math.IsNaN(start) || math.IsNaN(end) || end <= start {
		return nil, fmt.Errorf("%w: [%g, %g]", ErrInvalidRange, start, end)
	}
	if len(rc.times) > 0 {
		if !sort.Float64sAreSorted(rc.times) {
			return nil, fmt.Errorf("%w: output times not sorted", ErrInvalidRange)
		}
		if rc.times[0] < start || rc.times[len(rc.times)-1] > end {
			return nil, fmt.Errorf("%w: output times outside [%g, %g]", ErrInvalidRange, start, end)
		}
		grid := rc.times
		if grid[0] > start {
			grid = append([]float64{start}, grid...)
		}
		return grid, nil
	}
	if rc.iterations < 2 {
		return nil, fmt.Errorf("%w: need at least 2 output points, got %d", ErrInvalidRange, rc.iterations)
	}
	return Linspace(start, end, rc.iterations), nil
}

func unitGrid(start, end float64) ([]float64, error) {
	if math.IsNaN(start) || math.IsNaN(end) || end < start+1 {
		return nil, fmt.Errorf("%w: difference system needs end >= start+1, got [%g, %g]", ErrInvalidRange, start, end)
	}
	n := int(math.Floor(end-start)) + 1
	grid := make([]float64, n)
	for i := range grid {
		grid[i] = start + float64(i)
	}
	return grid, nil
}

// Linspace returns n evenly spaced values from a to b inclusive.
func Linspace(a, b float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{a}
	}
	out := make([]float64, n)
	step := (b - a) / float64(n-1)
	for i := range out {
		out[i] = a + float64(i)*step
	}
	out[n-1] = b
	return out
}

func integrate(ctx context.Context, cs *compiledSystem, x0 dynamo.State, grid []float64, rc runConfig) ([]dynamo.State, error) {
	integ, err := integrators.New(rc.method)
	if err != nil {
		return nil, err
	}
	if ai, ok := integ.(dynamo.AdaptiveIntegrator); ok {
		return integrateAdaptive(ctx, cs, ai, x0, grid, rc.cfg)
	}
	return integrateFixed(ctx, cs, integ, x0, grid, rc.cfg)
}

func integrateAdaptive(ctx context.Context, cs *compiledSystem, ai dynamo.AdaptiveIntegrator, x0 dynamo.State, grid []float64, cfg dynamo.Config) ([]dynamo.State, error) {
	out := make([]dynamo.State, len(grid))
	x := x0.Clone()
	out[0] = x.Clone()
	t := grid[0]
	step := 0

	h := firstSpacing(grid)
	if cfg.MaxDt > 0 && h > cfg.MaxDt {
		h = cfg.MaxDt
	}

	for i := 1; i < len(grid); i++ {
		target := grid[i]
		for t < target {
			select {
			case <-ctx.Done():
				return nil, canceled(ctx, step, t, x)
			default:
			}

			hTry, last := h, false
			if t+hTry >= target {
				hTry, last = target-t, true
			}

			next, hNext, accepted := ai.StepAdaptive(cs, x, t, hTry, cfg.Tolerance)
			if cs.err != nil {
				return nil, invalid(step, t, x, cs.err)
			}
			if cfg.MaxDt > 0 && hNext > cfg.MaxDt {
				hNext = cfg.MaxDt
			}
			if !accepted {
				h = hNext
				if h < cfg.MinDt {
					return nil, &dynamo.SimulationError{Step: step, Time: t, State: x.Clone(), Wrapped: dynamo.ErrStepTooSmall}
				}
				continue
			}
			if cfg.ValidateState && !next.IsValid() {
				return nil, invalid(step, t+hTry, next, nil)
			}

			x = next
			step++
			if last {
				t = target
			} else {
				t += hTry
				h = hNext
			}
		}
		out[i] = x.Clone()
	}
	return out, nil
}

func integrateFixed(ctx context.Context, cs *compiledSystem, integ dynamo.Integrator, x0 dynamo.State, grid []float64, cfg dynamo.Config) ([]dynamo.State, error) {
	dt := cfg.Dt
	if dt <= 0 {
		dt = dynamo.DefaultConfig().Dt
	}

	out := make([]dynamo.State, len(grid))
	x := x0.Clone()
	out[0] = x.Clone()
	step := 0

	for i := 1; i < len(grid); i++ {
		t0, t1 := grid[i-1], grid[i]
		if t1 > t0 {
			n := int(math.Ceil((t1 - t0) / dt))
			h := (t1 - t0) / float64(n)
			for k := 0; k < n; k++ {
				select {
				case <-ctx.Done():
					return nil, canceled(ctx, step, t0+float64(k)*h, x)
				default:
				}
				t := t0 + float64(k)*h
				x = integ.Step(cs, x, t, h)
				if cs.err != nil {
					return nil, invalid(step, t, x, cs.err)
				}
				if cfg.ValidateState && !x.IsValid() {
					return nil, invalid(step, t+h, x, nil)
				}
				step++
			}
		}
		out[i] = x.Clone()
	}
	return out, nil
}

// iterateMap advances a difference system once per grid point.
func iterateMap(ctx context.Context, cs *compiledSystem, x0 dynamo.State, grid []float64, cfg dynamo.Config) ([]dynamo.State, error) {
	out := make([]dynamo.State, len(grid))
	x := x0.Clone()
	out[0] = x.Clone()
	for i := 1; i < len(grid); i++ {
		select {
		case <-ctx.Done():
			return nil, canceled(ctx, i-1, grid[i-1], x)
		default:
		}
		x = cs.Derive(x, grid[i-1])
		if cs.err != nil {
			return nil, invalid(i-1, grid[i-1], x, cs.err)
		}
		if cfg.ValidateState && !x.IsValid() {
			return nil, invalid(i, grid[i], x, nil)
		}
		out[i] = x.Clone()
	}
	return out, nil
}

func collect(cs *compiledSystem, grid []float64, states []dynamo.State) (*Results, error) {
	aux := cs.auxNames()
	res := &Results{
		T:      append([]float64(nil), grid...),
		Names:  append(append([]string(nil), cs.stateNames...), aux...),
		Values: make(map[string][]float64, len(cs.stateNames)+len(aux)),
	}
	for i, name := range cs.stateNames {
		col := make([]float64, len(states))
		for k, x := range states {
			col[k] = x[i]
		}
		res.Values[name] = col
	}
	if len(aux) == 0 {
		return res, nil
	}
	for _, name := range aux {
		res.Values[name] = make([]float64, len(states))
	}
	for k, x := range states {
		vals, err := cs.Aux(x, grid[k])
		if err != nil {
			return nil, invalid(k, grid[k], x, err)
		}
		for name, v := range vals {
			res.Values[name][k] = v
		}
	}
	return res, nil
}

func firstSpacing(grid []float64) float64 {
	for i := 1; i < len(grid); i++ {
		if d := grid[i] - grid[i-1]; d > 0 {
			return d
		}
	}
	return dynamo.DefaultConfig().Dt
}

func canceled(ctx context.Context, step int, t float64, x dynamo.State) error {
	return &dynamo.SimulationError{
		Step:    step,
		Time:    t,
		State:   x.Clone(),
		Wrapped: fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err()),
	}
}

func invalid(step int, t float64, x dynamo.State, cause error) error {
	wrapped := dynamo.ErrInvalidState
	if cause != nil {
		wrapped = fmt.Errorf("%w: %w", dynamo.ErrInvalidState, cause)
	}
	return &dynamo.SimulationError{Step: step, Time: t, State: x.Clone(), Wrapped: wrapped}
}
