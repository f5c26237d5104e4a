package mcmc

import "errors"

var (
	// ErrUnknownParameter indicates a prior on a name the simulation does not define.
	ErrUnknownParameter = errors.New("mcmc: unknown parameter")

	// ErrInvalidPrior indicates bounds that are not finite with Low < High.
	ErrInvalidPrior = errors.New("mcmc: invalid prior bounds")

	// ErrNoData indicates a simulation without observations to fit.
	ErrNoData = errors.New("mcmc: simulation has no data")

	// ErrNotFitted indicates results requested before Fit completed.
	ErrNotFitted = errors.New("mcmc: model has not been fitted")

	// ErrNoValidStart indicates no starting point with finite posterior was found.
	ErrNoValidStart = errors.New("mcmc: no starting point with finite posterior")

	// ErrUnknownVariable indicates a Variable lookup for a name the model does not track.
	ErrUnknownVariable = errors.New("mcmc: unknown variable")
)
