package sim

import "errors"

var (
	// ErrDuplicateVariable indicates a variable registered twice.
	ErrDuplicateVariable = errors.New("sim: variable already defined")

	// ErrUnknownVariable indicates a reference to a variable that was never added.
	ErrUnknownVariable = errors.New("sim: unknown variable")

	// ErrNotStock indicates a flow attached to a variable that is not a stock.
	ErrNotStock = errors.New("sim: variable is not a stock")

	// ErrInitialValues indicates an initial-condition list of the wrong length.
	ErrInitialValues = errors.New("sim: initial values do not match equation order")

	// ErrNameConflict indicates a parameter, state or auxiliary sharing a name.
	ErrNameConflict = errors.New("sim: name used by more than one definition")

	// ErrMixedSystem indicates difference and differential equations in one system.
	ErrMixedSystem = errors.New("sim: cannot mix difference and differential equations")

	// ErrEmptySystem indicates a run with no state variables.
	ErrEmptySystem = errors.New("sim: no state variables defined")

	// ErrCyclicDefinition indicates auxiliaries that depend on each other.
	ErrCyclicDefinition = errors.New("sim: cyclic auxiliary definitions")

	// ErrInvalidRange indicates a bad time span or output grid.
	ErrInvalidRange = errors.New("sim: invalid time range")

	// ErrInvalidData indicates malformed observed data.
	ErrInvalidData = errors.New("sim: invalid data")

	// ErrNotRun indicates results requested before a successful run.
	ErrNotRun = errors.New("sim: simulation has not been run")
)
