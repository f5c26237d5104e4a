package dynamo

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// System is a first-order ODE system dx/dt = f(x, t).
type System interface {
	Derive(x State, t float64) State
	StateDim() int
}

// Configurable is implemented by systems with named, adjustable parameters.
type Configurable interface {
	Params() map[string]float64
	SetParam(name string, value float64) error
}

type Integrator interface {
	Step(sys System, x State, t float64, dt float64) State
}

// AdaptiveIntegrator takes a trial step of size dt and reports whether the
// local error estimate was within tol. dtNext is the proposed next step
// whether or not the trial was accepted.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(sys System, x State, t, dt, tol float64) (next State, dtNext float64, accepted bool)
}

type Config struct {
	// Dt is the step for fixed-step integrators. Adaptive integrators start
	// from the output spacing and ignore it.
	Dt float64
	// MaxDt caps adaptive steps; zero leaves them unbounded.
	MaxDt         float64
	MinDt         float64
	Tolerance     float64
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		MaxDt:         0,
		MinDt:         1e-10,
		Tolerance:     1e-6,
		ValidateState: true,
	}
}
