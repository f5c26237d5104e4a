package sim

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Dataset is one observed series of a variable.
type Dataset struct {
	Name   string
	T      []float64
	Values []float64
	Plot   bool
}

// AddData attaches observations sampled at times t. Every series must have
// the same length as t, and t must be non-decreasing. Names are resolved
// against the system when the data is used.
func (s *Simulation) AddData(t []float64, data map[string][]float64, opts ...VarOption) error {
	if len(t) == 0 {
		return fmt.Errorf("%w: no time points", ErrInvalidData)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: no series", ErrInvalidData)
	}
	for i, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: t[%d] is not finite", ErrInvalidData, i)
		}
		if i > 0 && v < t[i-1] {
			return fmt.Errorf("%w: times decrease at index %d", ErrInvalidData, i)
		}
	}

	o := varOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	names := make([]string, 0, len(data))
	for name, values := range data {
		if len(values) != len(t) {
			return fmt.Errorf("%w: %s has %d values for %d times", ErrInvalidData, name, len(values), len(t))
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s.data = append(s.data, &Dataset{
			Name:   name,
			T:      append([]float64(nil), t...),
			Values: append([]float64(nil), data[name]...),
			Plot:   o.plot,
		})
	}
	return nil
}

func (s *Simulation) Data() []*Dataset { return s.data }

// DataFor returns every dataset observing the named variable.
func (s *Simulation) DataFor(name string) []*Dataset {
	var out []*Dataset
	for _, d := range s.data {
		if d.Name == name {
			out = append(out, d)
		}
	}
	return out
}

// DataVariables lists the distinct observed variable names in order of
// first attachment.
func (s *Simulation) DataVariables() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range s.data {
		if !seen[d.Name] {
			seen[d.Name] = true
			out = append(out, d.Name)
		}
	}
	return out
}

// DataStart returns the earliest observation time.
func (s *Simulation) DataStart() (float64, bool) {
	if len(s.data) == 0 {
		return 0, false
	}
	min := math.Inf(1)
	for _, d := range s.data {
		min = math.Min(min, d.T[0])
	}
	return min, true
}

func (s *Simulation) DataEnd() (float64, bool) {
	if len(s.data) == 0 {
		return 0, false
	}
	max := math.Inf(-1)
	for _, d := range s.data {
		max = math.Max(max, d.T[len(d.T)-1])
	}
	return max, true
}

// Predict integrates from start through the last observation and returns
// the model value at each observation, one slice per dataset in Data order.
// Stored results are left untouched.
func (s *Simulation) Predict(ctx context.Context, start float64, opts ...RunOption) ([][]float64, error) {
	if len(s.data) == 0 {
		return nil, fmt.Errorf("%w: no data attached", ErrInvalidData)
	}

	discrete := s.IsDiscrete()
	seen := make(map[float64]bool)
	grid := []float64{start}
	seen[start] = true
	for _, d := range s.data {
		for _, t := range d.T {
			if t < start {
				return nil, fmt.Errorf("%w: observation at t=%g before start %g", ErrInvalidData, t, start)
			}
			if discrete && t-start != math.Trunc(t-start) {
				return nil, fmt.Errorf("%w: %s observed at t=%g, difference system steps from %g in whole units", ErrInvalidData, d.Name, t, start)
			}
			if !seen[t] {
				seen[t] = true
				grid = append(grid, t)
			}
		}
	}
	sort.Float64s(grid)
	end := grid[len(grid)-1]
	if end <= start {
		end = start + 1
		grid = append(grid, end)
	}

	opts = append(opts, WithTimes(grid))
	res, err := s.simulate(ctx, start, end, opts...)
	if err != nil {
		return nil, err
	}
	return predictions(res, s.data)
}

// Residuals returns observed minus modelled values for each dataset,
// using the stored trajectory.
func (s *Simulation) Residuals() ([][]float64, error) {
	r, err := s.requireResults()
	if err != nil {
		return nil, err
	}
	pred, err := predictions(r, s.data)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(s.data))
	for i, d := range s.data {
		out[i] = make([]float64, len(d.Values))
		for k, v := range d.Values {
			out[i][k] = v - pred[i][k]
		}
	}
	return out, nil
}

// SSE is the sum of squared residuals over all datasets.
func (s *Simulation) SSE() (float64, error) {
	res, err := s.Residuals()
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, r := range res {
		for _, v := range r {
			sum += v * v
		}
	}
	return sum, nil
}

func predictions(r *Results, data []*Dataset) ([][]float64, error) {
	out := make([][]float64, len(data))
	for i, d := range data {
		ys, ok := r.Values[d.Name]
		if !ok {
			return nil, fmt.Errorf("%w: data for %s", ErrUnknownVariable, d.Name)
		}
		out[i] = make([]float64, len(d.T))
		for k, t := range d.T {
			v, err := interpolate(r.T, ys, t)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", d.Name, err)
			}
			out[i][k] = v
		}
	}
	return out, nil
}
