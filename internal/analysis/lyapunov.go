package analysis

import (
	"context"
	"math"

	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/integrators"
	"github.com/san-kum/dynfit/internal/sim"
)

// LyapunovOptions controls the separation run. Zero fields take defaults.
type LyapunovOptions struct {
	// Method is the fixed-step integrator, rk4 by default.
	Method string
	// Dt is the step; difference systems always use 1.
	Dt float64
	// Transient is integrated before separation is measured.
	Transient float64
	// Duration of the measured run, 100 by default.
	Duration     float64
	Perturbation float64
}

func (o LyapunovOptions) withDefaults() LyapunovOptions {
	if o.Method == "" {
		o.Method = "rk4"
	}
	if o.Dt <= 0 {
		o.Dt = 0.01
	}
	if o.Duration <= 0 {
		o.Duration = 100
	}
	if o.Perturbation <= 0 {
		o.Perturbation = 1e-8
	}
	return o
}

type stepFunc func(x dynamo.State, t float64) dynamo.State

// stepper advances a private copy of the system by dt. The returned
// State is the model's initial state.
func stepper(s *sim.Simulation, o LyapunovOptions) (stepFunc, dynamo.System, dynamo.State, float64, error) {
	sys, x0, _, err := s.System()
	if err != nil {
		return nil, nil, nil, 0, err
	}
	if s.IsDiscrete() {
		return sys.Derive, sys, x0, 1, nil
	}
	integ, err := integrators.New(o.Method)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	dt := o.Dt
	return func(x dynamo.State, t float64) dynamo.State {
		return integ.Step(sys, x, t, dt)
	}, sys, x0, dt, nil
}

// LyapunovExponent estimates the largest Lyapunov exponent from the
// initial state of s by following a nearby trajectory and renormalising
// their separation after every step. A positive value indicates chaos.
//
//	λ ≈ (1/T) Σ ln(|δx(t)| / |δx(0)|)
func LyapunovExponent(ctx context.Context, s *sim.Simulation, opts LyapunovOptions) (float64, error) {
	o := opts.withDefaults()
	step, _, x0, dt, err := stepper(s, o)
	if err != nil {
		return 0, err
	}
	if len(x0) == 0 {
		return 0, nil
	}

	x, t, err := settle(ctx, step, x0, dt, o.Transient)
	if err != nil {
		return 0, err
	}
	dir := make(dynamo.State, len(x))
	for i := range dir {
		dir[i] = 1 / math.Sqrt(float64(len(x)))
	}
	return separationRate(ctx, step, x, dir, t, dt, o)
}

// LyapunovSpectrum measures the separation rate of a perturbation along
// each state direction in turn. The largest entry approximates the largest
// exponent; the others are only exact for systems whose directions do not
// mix.
func LyapunovSpectrum(ctx context.Context, s *sim.Simulation, opts LyapunovOptions) ([]float64, error) {
	o := opts.withDefaults()
	step, _, x0, dt, err := stepper(s, o)
	if err != nil {
		return nil, err
	}
	x, t, err := settle(ctx, step, x0, dt, o.Transient)
	if err != nil {
		return nil, err
	}

	spectrum := make([]float64, len(x))
	for i := range spectrum {
		dir := make(dynamo.State, len(x))
		dir[i] = 1
		if spectrum[i], err = separationRate(ctx, step, x, dir, t, dt, o); err != nil {
			return nil, err
		}
	}
	return spectrum, nil
}

func settle(ctx context.Context, step stepFunc, x0 dynamo.State, dt, transient float64) (dynamo.State, float64, error) {
	x := x0.Clone()
	t := 0.0
	for n := 0; t < transient; n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}
		x = step(x, t)
		t += dt
		if !x.IsValid() {
			return nil, 0, &dynamo.SimulationError{Step: n, Time: t, State: x, Wrapped: dynamo.ErrInvalidState}
		}
	}
	return x, t, nil
}

func separationRate(ctx context.Context, step stepFunc, x0, dir dynamo.State, t0, dt float64, o LyapunovOptions) (float64, error) {
	d0 := o.Perturbation
	x := x0.Clone()
	xp := x0.Add(dir.Scale(d0))
	t := t0

	sumLog := 0.0
	count := 0
	steps := int(math.Ceil(o.Duration / dt))
	for n := 0; n < steps; n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		x = step(x, t)
		xp = step(xp, t)
		t += dt
		if !x.IsValid() || !xp.IsValid() {
			return 0, &dynamo.SimulationError{Step: n, Time: t, State: x, Wrapped: dynamo.ErrInvalidState}
		}

		sep := xp.Sub(x).Norm()
		if sep > 0 {
			sumLog += math.Log(sep / d0)
			count++
			xp = x.Add(xp.Sub(x).Scale(d0 / sep))
		}
	}

	if count == 0 {
		return 0, nil
	}
	return sumLog / (float64(count) * dt), nil
}
