package equation

import (
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

type Program struct {
	Source string
	prog   *vm.Program
}

type mathFunc struct {
	arity int
	fn    func(args []float64) float64
}

// Functions available to every expression in addition to expr-lang's
// own builtins (abs, min, max, floor, ceil, round).
var functions = map[string]mathFunc{
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"asin":  unary(math.Asin),
	"acos":  unary(math.Acos),
	"atan":  unary(math.Atan),
	"sinh":  unary(math.Sinh),
	"cosh":  unary(math.Cosh),
	"tanh":  unary(math.Tanh),
	"exp":   unary(math.Exp),
	"log":   unary(math.Log),
	"log10": unary(math.Log10),
	"sqrt":  unary(math.Sqrt),
	"atan2": {2, func(a []float64) float64 { return math.Atan2(a[0], a[1]) }},
	"pow":   {2, func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
	"step": {1, func(a []float64) float64 {
		if a[0] >= 0 {
			return 1
		}
		return 0
	}},
	"pulse": {3, func(a []float64) float64 {
		if a[0] >= a[1] && a[0] < a[1]+a[2] {
			return 1
		}
		return 0
	}},
}

// builtins shadowed by expr-lang itself; variables may not use these names.
var exprBuiltins = []string{"abs", "min", "max", "floor", "ceil", "round", "int", "float", "len"}

func unary(f func(float64) float64) mathFunc {
	return mathFunc{1, func(a []float64) float64 { return f(a[0]) }}
}

// IsFunction reports whether name is callable inside expressions.
func IsFunction(name string) bool {
	if _, ok := functions[name]; ok {
		return true
	}
	for _, b := range exprBuiltins {
		if b == name {
			return true
		}
	}
	return false
}

func functionOptions() []expr.Option {
	opts := make([]expr.Option, 0, len(functions))
	for name, f := range functions {
		name, f := name, f
		opts = append(opts, expr.Function(name, func(params ...any) (any, error) {
			if len(params) != f.arity {
				return nil, fmt.Errorf("%s expects %d argument(s), got %d", name, f.arity, len(params))
			}
			args := make([]float64, len(params))
			for i, p := range params {
				v, err := toFloat(p)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
				args[i] = v
			}
			return f.fn(args), nil
		}))
	}
	return opts
}

// Compile builds a program for an expression in which exactly the given
// names (plus t) are defined. Derivative references must already be rewritten.
func Compile(src string, names []string) (*Program, error) {
	env := make(map[string]any, len(names)+1)
	env[TimeName] = 0.0
	for _, n := range names {
		env[n] = 0.0
	}

	opts := append([]expr.Option{expr.Env(env), expr.AsFloat64()}, functionOptions()...)
	prog, err := expr.Compile(src, opts...)
	if err != nil {
		if strings.Contains(err.Error(), "unknown name") {
			return nil, fmt.Errorf("%w: %v", ErrUndefinedName, err)
		}
		return nil, fmt.Errorf("%w: %q: %v", ErrSyntax, src, err)
	}
	return &Program{Source: src, prog: prog}, nil
}

// Env binds values to names for evaluating compiled programs. It reuses a
// single VM and is not safe for concurrent use.
type Env struct {
	vars    map[string]any
	machine vm.VM
}

func NewEnv(names []string) *Env {
	vars := make(map[string]any, len(names)+1)
	vars[TimeName] = 0.0
	for _, n := range names {
		vars[n] = 0.0
	}
	return &Env{vars: vars}
}

func (e *Env) Set(name string, v float64) {
	e.vars[name] = v
}

func (e *Env) Get(name string) (float64, bool) {
	v, ok := e.vars[name]
	if !ok {
		return 0, false
	}
	f, err := toFloat(v)
	return f, err == nil
}

func (e *Env) Eval(p *Program) (float64, error) {
	out, err := e.machine.Run(p.prog, e.vars)
	if err != nil {
		return math.NaN(), fmt.Errorf("evaluating %q: %w", p.Source, err)
	}
	return toFloat(out)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return math.NaN(), fmt.Errorf("non-numeric value %v (%T)", v, v)
	}
}
