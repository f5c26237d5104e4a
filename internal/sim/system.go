package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/equation"
)

// derivTerm is the right-hand side of one state. For the lower links of a
// higher-order chain (x' = x_p) it is a direct copy of another state.
type derivTerm struct {
	chain int
	prog  *equation.Program
}

type auxDef struct {
	name string
	prog *equation.Program
}

// compiledSystem is the first-order form of a Simulation. Derive on a
// difference system returns the next state instead of a rate.
type compiledSystem struct {
	stateNames []string
	stateIndex map[string]int
	terms      []derivTerm
	aux        []auxDef
	params     map[string]float64
	env        *equation.Env
	discrete   bool

	// err holds the first evaluation failure; Derive reports it as NaN.
	err error
}

var (
	_ dynamo.System       = (*compiledSystem)(nil)
	_ dynamo.Configurable = (*compiledSystem)(nil)
)

func (s *Simulation) compile() (*compiledSystem, error) {
	if s.compiled != nil {
		s.compiled.err = nil
		return s.compiled, nil
	}
	if len(s.vars) == 0 {
		return nil, ErrEmptySystem
	}

	var hasDiff, hasDiscrete bool
	orders := make(map[string]int)
	for _, v := range s.vars {
		switch v.eq.Kind {
		case equation.Differential:
			hasDiff = true
			orders[v.eq.Name] = v.eq.Order
		case equation.Difference:
			hasDiscrete = true
		}
	}
	if hasDiff && hasDiscrete {
		return nil, ErrMixedSystem
	}
	if !hasDiff && !hasDiscrete {
		return nil, ErrEmptySystem
	}

	cs := &compiledSystem{
		stateIndex: make(map[string]int),
		params:     make(map[string]float64, len(s.params)),
		discrete:   hasDiscrete,
	}
	for k, v := range s.params {
		cs.params[k] = v
	}

	owner := make(map[string]string)
	claim := func(name, by string) error {
		if prev, ok := owner[name]; ok {
			return fmt.Errorf("%w: %s (%s and %s)", ErrNameConflict, name, prev, by)
		}
		owner[name] = by
		return nil
	}
	for name := range s.params {
		if err := claim(name, "parameter"); err != nil {
			return nil, err
		}
	}
	for _, v := range s.vars {
		for _, st := range v.states() {
			if err := claim(st, "state of "+v.eq.Name); err != nil {
				return nil, err
			}
			cs.stateIndex[st] = len(cs.stateNames)
			cs.stateNames = append(cs.stateNames, st)
		}
		if v.eq.Kind == equation.Auxiliary {
			if err := claim(v.eq.Name, "auxiliary"); err != nil {
				return nil, err
			}
		}
	}

	names := make([]string, 0, len(owner))
	for name := range owner {
		names = append(names, name)
	}
	sort.Strings(names)

	compileRHS := func(v *variable) (*equation.Program, error) {
		rhs, err := equation.RewriteDerivatives(v.rhs(), orders)
		if err != nil {
			return nil, err
		}
		prog, err := equation.Compile(rhs, names)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", v.eq.Name, err)
		}
		return prog, nil
	}

	cs.terms = make([]derivTerm, len(cs.stateNames))
	auxRHS := make(map[string]*equation.Program)
	var auxOrder []string
	for _, v := range s.vars {
		prog, err := compileRHS(v)
		if err != nil {
			return nil, err
		}
		switch v.eq.Kind {
		case equation.Auxiliary:
			auxRHS[v.eq.Name] = prog
			auxOrder = append(auxOrder, v.eq.Name)
		default:
			chain := v.states()
			for k := 0; k < len(chain)-1; k++ {
				cs.terms[cs.stateIndex[chain[k]]] = derivTerm{chain: cs.stateIndex[chain[k+1]]}
			}
			cs.terms[cs.stateIndex[chain[len(chain)-1]]] = derivTerm{chain: -1, prog: prog}
		}
	}

	sorted, err := sortAuxiliaries(auxOrder, auxRHS)
	if err != nil {
		return nil, err
	}
	for _, name := range sorted {
		cs.aux = append(cs.aux, auxDef{name: name, prog: auxRHS[name]})
	}

	cs.env = equation.NewEnv(names)
	for k, v := range cs.params {
		cs.env.Set(k, v)
	}

	s.compiled = cs
	return cs, nil
}

// sortAuxiliaries orders auxiliaries so that each is evaluated after the
// auxiliaries it references.
func sortAuxiliaries(order []string, progs map[string]*equation.Program) ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	mark := make(map[string]int, len(order))
	out := make([]string, 0, len(order))

	var visit func(name string) error
	visit = func(name string) error {
		switch mark[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %s", ErrCyclicDefinition, name)
		}
		mark[name] = visiting
		for _, dep := range equation.Identifiers(progs[name].Source) {
			if _, isAux := progs[dep]; isAux {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		mark[name] = done
		out = append(out, name)
		return nil
	}

	for _, name := range order {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *compiledSystem) StateDim() int { return len(c.stateNames) }

func (c *compiledSystem) bind(x dynamo.State, t float64) error {
	c.env.Set(equation.TimeName, t)
	for i, name := range c.stateNames {
		c.env.Set(name, x[i])
	}
	for _, a := range c.aux {
		v, err := c.env.Eval(a.prog)
		if err != nil {
			return err
		}
		c.env.Set(a.name, v)
	}
	return nil
}

func (c *compiledSystem) Derive(x dynamo.State, t float64) dynamo.State {
	dx := make(dynamo.State, len(c.stateNames))
	if len(x) != len(c.stateNames) {
		c.fail(dynamo.ErrDimensionMismatch)
		return fillNaN(dx)
	}
	if err := c.bind(x, t); err != nil {
		c.fail(err)
		return fillNaN(dx)
	}
	for i, term := range c.terms {
		if term.prog == nil {
			dx[i] = x[term.chain]
			continue
		}
		v, err := c.env.Eval(term.prog)
		if err != nil {
			c.fail(err)
			return fillNaN(dx)
		}
		dx[i] = v
	}
	return dx
}

// Aux evaluates every auxiliary at a state, keyed by name.
func (c *compiledSystem) Aux(x dynamo.State, t float64) (map[string]float64, error) {
	if err := c.bind(x, t); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(c.aux))
	for _, a := range c.aux {
		v, _ := c.env.Get(a.name)
		out[a.name] = v
	}
	return out, nil
}

func (c *compiledSystem) auxNames() []string {
	names := make([]string, len(c.aux))
	for i, a := range c.aux {
		names[i] = a.name
	}
	return names
}

func (c *compiledSystem) Params() map[string]float64 {
	out := make(map[string]float64, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

func (c *compiledSystem) SetParam(name string, value float64) error {
	if _, ok := c.params[name]; !ok {
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	c.params[name] = value
	c.env.Set(name, value)
	return nil
}

func (c *compiledSystem) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func fillNaN(s dynamo.State) dynamo.State {
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
