package equation

import "errors"

var (
	// ErrSyntax indicates an equation or expression that cannot be parsed.
	ErrSyntax = errors.New("equation: syntax error")

	// ErrReservedName indicates a variable named like time or a built-in function.
	ErrReservedName = errors.New("equation: reserved name")

	// ErrUnknownDerivative indicates x' on a right-hand side where x has no such derivative state.
	ErrUnknownDerivative = errors.New("equation: derivative of non-state or beyond equation order")

	// ErrUndefinedName indicates an identifier with no binding at compile time.
	ErrUndefinedName = errors.New("equation: undefined name")
)
