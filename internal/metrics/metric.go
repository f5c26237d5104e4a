// Package metrics tracks sampler behaviour and computes convergence
// diagnostics for MCMC traces.
package metrics

import "math"

// Metric observes one proposal at a time.
type Metric interface {
	Name() string
	Observe(value float64, accepted bool)
	Value() float64
	Reset()
}

// AcceptanceRate is the fraction of observed proposals that were accepted.
type AcceptanceRate struct {
	name     string
	accepted int
	samples  int
}

func NewAcceptanceRate() *AcceptanceRate {
	return &AcceptanceRate{name: "acceptance_rate"}
}

func (a *AcceptanceRate) Name() string { return a.name }

func (a *AcceptanceRate) Observe(_ float64, accepted bool) {
	if accepted {
		a.accepted++
	}
	a.samples++
}

func (a *AcceptanceRate) Value() float64 {
	if a.samples == 0 {
		return 0
	}
	return float64(a.accepted) / float64(a.samples)
}

func (a *AcceptanceRate) Counts() (accepted, total int) { return a.accepted, a.samples }

func (a *AcceptanceRate) Reset() {
	a.accepted = 0
	a.samples = 0
}

// FailureRate is the fraction of proposals whose log-posterior was not
// finite, typically because the simulation diverged.
type FailureRate struct {
	name     string
	failures int
	samples  int
}

func NewFailureRate() *FailureRate {
	return &FailureRate{name: "failure_rate"}
}

func (f *FailureRate) Name() string { return f.name }

func (f *FailureRate) Observe(logp float64, _ bool) {
	f.samples++
	if math.IsNaN(logp) || math.IsInf(logp, 0) {
		f.failures++
	}
}

func (f *FailureRate) Value() float64 {
	if f.samples == 0 {
		return 0
	}
	return float64(f.failures) / float64(f.samples)
}

func (f *FailureRate) Reset() {
	f.failures = 0
	f.samples = 0
}

// RunningMean keeps a numerically stable mean and variance (Welford).
type RunningMean struct {
	name string
	n    int
	mean float64
	m2   float64
}

func NewRunningMean(name string) *RunningMean {
	return &RunningMean{name: name}
}

func (r *RunningMean) Name() string { return r.name }

func (r *RunningMean) Observe(v float64, _ bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	r.n++
	d := v - r.mean
	r.mean += d / float64(r.n)
	r.m2 += d * (v - r.mean)
}

func (r *RunningMean) Value() float64 { return r.mean }

// Variance is the unbiased sample variance.
func (r *RunningMean) Variance() float64 {
	if r.n < 2 {
		return 0
	}
	return r.m2 / float64(r.n-1)
}

func (r *RunningMean) Count() int { return r.n }

func (r *RunningMean) Reset() {
	r.n = 0
	r.mean = 0
	r.m2 = 0
}
