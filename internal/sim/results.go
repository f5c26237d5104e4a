package sim

import (
	"fmt"
	"sort"
)

// Results holds the trajectory of one run: every state and auxiliary sampled
// on the output grid.
type Results struct {
	T      []float64
	Names  []string
	Values map[string][]float64
}

func (r *Results) clone() *Results {
	c := &Results{
		T:      append([]float64(nil), r.T...),
		Names:  append([]string(nil), r.Names...),
		Values: make(map[string][]float64, len(r.Values)),
	}
	for k, v := range r.Values {
		c.Values[k] = append([]float64(nil), v...)
	}
	return c
}

func (r *Results) Series(name string) ([]float64, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Final returns the last value of every series.
func (r *Results) Final() map[string]float64 {
	out := make(map[string]float64, len(r.Values))
	for k, v := range r.Values {
		if len(v) > 0 {
			out[k] = v[len(v)-1]
		}
	}
	return out
}

func interpolate(ts, ys []float64, t float64) (float64, error) {
	n := len(ts)
	if n == 0 {
		return 0, ErrNotRun
	}
	const eps = 1e-9
	if t < ts[0]-eps || t > ts[n-1]+eps {
		return 0, fmt.Errorf("%w: t=%g outside [%g, %g]", ErrInvalidRange, t, ts[0], ts[n-1])
	}
	i := sort.SearchFloat64s(ts, t)
	switch {
	case i <= 0:
		return ys[0], nil
	case i >= n:
		return ys[n-1], nil
	}
	if ts[i] == t {
		return ys[i], nil
	}
	t0, t1 := ts[i-1], ts[i]
	if t1 == t0 {
		return ys[i], nil
	}
	w := (t - t0) / (t1 - t0)
	return ys[i-1] + w*(ys[i]-ys[i-1]), nil
}

func (s *Simulation) requireResults() (*Results, error) {
	if s.results == nil {
		return nil, ErrNotRun
	}
	return s.results, nil
}

// T returns the output time grid of the last run.
func (s *Simulation) T() []float64 {
	if s.results == nil {
		return nil
	}
	return s.results.T
}

// Series returns the trajectory of a state or auxiliary from the last run.
func (s *Simulation) Series(name string) ([]float64, error) {
	r, err := s.requireResults()
	if err != nil {
		return nil, err
	}
	if name == "t" {
		return r.T, nil
	}
	v, ok := r.Series(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return v, nil
}

// Names lists the series recorded by the last run.
func (s *Simulation) Names() []string {
	if s.results == nil {
		return nil
	}
	return s.results.Names
}

func (s *Simulation) Results() *Results { return s.results }

// Span reports the bounds of the last run.
func (s *Simulation) Span() (start, end float64, ok bool) {
	return s.start, s.end, s.results != nil
}
