// Package equation parses and compiles the equation strings used to
// describe dynamical systems.
//
// Four equation forms are recognised:
//
//	x' = rhs        first-order differential equation
//	x'' = rhs       higher-order differential equation (one prime per order)
//	x[t+1] = rhs    difference equation
//	y = rhs         auxiliary definition, evaluated before derivatives
//
// Right-hand sides are arithmetic expressions over state names, parameters,
// auxiliaries and the time variable t. Derivatives of higher-order states may
// appear on the right as x', which [RewriteDerivatives] turns into the
// derivative state name x_p (x'' becomes x_pp, and so on).
//
// Expressions are compiled with expr-lang into reusable programs; an [Env]
// holds the variable bindings and a VM for repeated evaluation.
package equation
