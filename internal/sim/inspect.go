package sim

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/equation"
)

// System compiles an independent first-order copy of the model along with
// its initial state and state names. The returned system also implements
// dynamo.Configurable; changing its parameters does not affect s.
func (s *Simulation) System() (dynamo.System, dynamo.State, []string, error) {
	cs, err := s.Clone().compile()
	if err != nil {
		return nil, nil, nil, err
	}
	x0 := make(dynamo.State, cs.StateDim())
	for i, name := range cs.stateNames {
		x0[i] = s.initial[name]
	}
	return cs, x0, append([]string(nil), cs.stateNames...), nil
}

// IsDiscrete reports whether the model is a difference system.
func (s *Simulation) IsDiscrete() bool {
	for _, v := range s.vars {
		if v.eq.Kind == equation.Difference {
			return true
		}
	}
	return false
}

// Derivatives evaluates the rate of every state at a point. States missing
// from values take their initial value.
func (s *Simulation) Derivatives(values map[string]float64, t float64) (map[string]float64, error) {
	cs, err := s.compile()
	if err != nil {
		return nil, err
	}
	x := make(dynamo.State, cs.StateDim())
	for i, name := range cs.stateNames {
		if v, ok := values[name]; ok {
			x[i] = v
		} else {
			x[i] = s.initial[name]
		}
	}
	for name := range values {
		if _, ok := cs.stateIndex[name]; !ok {
			return nil, fmt.Errorf("%w: %s is not a state", ErrUnknownVariable, name)
		}
	}

	dx := cs.Derive(x, t)
	if cs.err != nil {
		return nil, cs.err
	}
	out := make(map[string]float64, len(dx))
	for i, name := range cs.stateNames {
		out[name] = dx[i]
	}
	return out, nil
}

// Equations renders the model as first-order equations followed by its
// parameters and initial values.
func (s *Simulation) Equations() string {
	orders := map[string]int{}
	for _, v := range s.vars {
		if v.eq.Kind == equation.Differential {
			orders[v.eq.Name] = v.eq.Order
		}
	}
	rhsOf := func(v *variable) string {
		rhs := v.rhs()
		if rewritten, err := equation.RewriteDerivatives(rhs, orders); err == nil {
			rhs = rewritten
		}
		return rhs
	}

	var b strings.Builder
	for _, v := range s.vars {
		switch v.eq.Kind {
		case equation.Auxiliary:
			fmt.Fprintf(&b, "%s = %s\n", v.eq.Name, rhsOf(v))
		case equation.Difference:
			fmt.Fprintf(&b, "%s[t+1] = %s\n", v.eq.Name, rhsOf(v))
		default:
			chain := v.states()
			for k := 0; k < len(chain)-1; k++ {
				fmt.Fprintf(&b, "%s' = %s\n", chain[k], chain[k+1])
			}
			fmt.Fprintf(&b, "%s' = %s\n", chain[len(chain)-1], rhsOf(v))
		}
	}

	if len(s.params) > 0 {
		b.WriteString("params:\n")
		for _, name := range s.ParamNames() {
			fmt.Fprintf(&b, "\t%s = %s\n", name, formatValue(s.params[name]))
		}
	}

	states := s.StateNames()
	if len(states) > 0 {
		b.WriteString("initial values:\n")
		for _, name := range states {
			fmt.Fprintf(&b, "\t%s = %s\n", name, formatValue(s.initial[name]))
		}
	}
	return b.String()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Snapshot returns every parameter and initial value keyed the way
// SetValue accepts them.
func (s *Simulation) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(s.params)+len(s.initial))
	for k, v := range s.params {
		out[k] = v
	}
	for k, v := range s.initial {
		out[InitialPrefix+k] = v
	}
	return out
}

// ValueNames lists the names accepted by SetValue, parameters first.
func (s *Simulation) ValueNames() []string {
	names := s.ParamNames()
	states := make([]string, 0, len(s.initial))
	for k := range s.initial {
		states = append(states, InitialPrefix+k)
	}
	sort.Strings(states)
	return append(names, states...)
}
