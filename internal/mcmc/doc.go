// Package mcmc fits the parameters and initial values of a sim.Simulation
// to its attached data with adaptive random-walk Metropolis sampling.
//
//	model, err := mcmc.New(s, map[string]mcmc.Prior{
//		"a":         {Low: -10, High: 10},
//		"initial_h": {Low: 0, High: 4},
//	})
//	err = model.Fit(ctx, 25000)
//	a, _ := model.Value("a")
//
// Each data variable v gets a Gaussian likelihood with its own noise scale
// v_sigma, sampled alongside the named priors. After Fit the posterior mean
// of every parameter is written back into the simulation.
package mcmc
