package analysis

import "errors"

var (
	ErrNoRange     = errors.New("analysis: vector field needs one or two ranges")
	ErrEmptyRange  = errors.New("analysis: range has no values")
	ErrPhaseArgs   = errors.New("analysis: phase plot needs two or three variables")
	ErrNotUniform  = errors.New("analysis: series is not uniformly sampled")
	ErrShortSeries = errors.New("analysis: series too short")
)
