// Package dynamo provides core simulation primitives for dynamical systems.
//
// The package defines the fundamental interfaces and types for numerical
// simulation of ordinary differential equations (ODEs):
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Integrator]: fixed-step numerical integrator
//   - [AdaptiveIntegrator]: integrator with embedded error control
//   - [Configurable]: systems whose named parameters can be changed
//
// # Example
//
//	sys, x0, _, _ := s.System()
//	integ := integrators.NewRK4()
//	x := integ.Step(sys, x0, 0, 0.01)
//
// # Thread Safety
//
// Systems compiled from equation strings keep an evaluation scratch space
// and are NOT safe for concurrent use. Clone the owning simulation for
// parallel work.
package dynamo
