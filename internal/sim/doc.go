// Package sim provides the Simulation type: a dynamical system assembled
// from equation strings or stock-flow declarations, integrated numerically
// over a time grid.
//
// A typical session mirrors a notebook:
//
//	s := sim.New()
//	s.Add("x'' = -k*x/m - b*x'", []float64{10, 0}, sim.WithPlot())
//	s.Params(map[string]float64{"k": 1, "m": 1, "b": 0.5})
//	err := s.Run(ctx, 0, 20)
//	xs, _ := s.Series("x")
//
// Higher-order equations are reduced to a chain of first-order states named
// x, x_p, x_pp, ... and every state, auxiliary and the time axis are
// available after a run through [Simulation.T] and [Simulation.Series].
//
// A Simulation is not safe for concurrent use; [Simulation.Clone] produces an
// independent copy for each goroutine.
package sim
