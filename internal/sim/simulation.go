package sim

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/san-kum/dynfit/internal/equation"
)

// InitialPrefix marks a name as the initial value of a state, e.g. initial_h.
const InitialPrefix = "initial_"

const (
	DefaultPlotWidth  = 72
	DefaultPlotHeight = 16
)

type VarOption func(*varOptions)

type varOptions struct {
	plot bool
}

// WithPlot marks a variable or data set for plotting after each run.
func WithPlot() VarOption {
	return func(o *varOptions) { o.plot = true }
}

// WithPlotFlag sets plotting from a boolean, as read from model files.
func WithPlotFlag(on bool) VarOption {
	return func(o *varOptions) { o.plot = on }
}

type variable struct {
	eq       equation.Equation
	stock    bool
	inflows  []string
	outflows []string
	plot     bool
}

func (v *variable) rhs() string {
	if !v.stock {
		return v.eq.RHS
	}
	return flowRHS(v.inflows, v.outflows)
}

func (v *variable) states() []string {
	switch v.eq.Kind {
	case equation.Differential:
		return equation.StateNames(v.eq.Name, v.eq.Order)
	case equation.Difference:
		return []string{v.eq.Name}
	default:
		return nil
	}
}

type Simulation struct {
	// NoPlots suppresses plot output, e.g. while drawing many posterior samples.
	NoPlots bool

	vars    []*variable
	byName  map[string]*variable
	params  map[string]float64
	initial map[string]float64
	data    []*Dataset

	out           io.Writer
	width, height int

	results    *Results
	start, end float64

	compiled *compiledSystem
}

func New() *Simulation {
	return &Simulation{
		byName:  make(map[string]*variable),
		params:  make(map[string]float64),
		initial: make(map[string]float64),
		out:     os.Stdout,
		width:   DefaultPlotWidth,
		height:  DefaultPlotHeight,
	}
}

// SetOutput redirects plots. A nil writer discards them.
func (s *Simulation) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	s.out = w
}

func (s *Simulation) Output() io.Writer { return s.out }

func (s *Simulation) SetPlotSize(width, height int) {
	if width > 10 {
		s.width = width
	}
	if height > 4 {
		s.height = height
	}
}

func (s *Simulation) PlotSize() (int, int) { return s.width, s.height }

// Add registers one equation. For an n-th order differential equation,
// initial holds the value followed by its first n-1 derivatives. Difference
// equations take one initial value and auxiliaries take none.
func (s *Simulation) Add(src string, initial []float64, opts ...VarOption) error {
	eq, err := equation.Parse(src)
	if err != nil {
		return err
	}

	want := eq.Order
	if len(initial) != want {
		return fmt.Errorf("%w: %s needs %d value(s), got %d", ErrInitialValues, eq.Name, want, len(initial))
	}

	v := &variable{eq: eq}
	if err := s.register(v, opts); err != nil {
		return err
	}
	for k, name := range v.states() {
		s.initial[name] = initial[k]
	}
	return nil
}

// Stock declares a first-order state whose rate is the sum of its inflows
// minus the sum of its outflows.
func (s *Simulation) Stock(name string, initial float64, opts ...VarOption) error {
	if err := equation.CheckName(name); err != nil {
		return err
	}
	v := &variable{
		eq:    equation.Equation{Name: name, Kind: equation.Differential, Order: 1},
		stock: true,
	}
	if err := s.register(v, opts); err != nil {
		return err
	}
	s.initial[name] = initial
	return nil
}

func (s *Simulation) Inflow(name, expr string) error {
	v, err := s.stock(name, expr)
	if err != nil {
		return err
	}
	v.inflows = append(v.inflows, strings.TrimSpace(expr))
	s.compiled = nil
	return nil
}

func (s *Simulation) Outflow(name, expr string) error {
	v, err := s.stock(name, expr)
	if err != nil {
		return err
	}
	v.outflows = append(v.outflows, strings.TrimSpace(expr))
	s.compiled = nil
	return nil
}

func (s *Simulation) stock(name, expr string) (*variable, error) {
	v, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	if !v.stock {
		return nil, fmt.Errorf("%w: %s", ErrNotStock, name)
	}
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("%w: empty flow for %s", equation.ErrSyntax, name)
	}
	return v, nil
}

func (s *Simulation) register(v *variable, opts []VarOption) error {
	if _, exists := s.byName[v.eq.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateVariable, v.eq.Name)
	}
	if _, exists := s.params[v.eq.Name]; exists {
		return fmt.Errorf("%w: %s is a parameter", ErrNameConflict, v.eq.Name)
	}

	o := varOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	v.plot = o.plot

	s.vars = append(s.vars, v)
	s.byName[v.eq.Name] = v
	s.compiled = nil
	return nil
}

// Params binds named constants used inside equations. Values for existing
// names are replaced.
func (s *Simulation) Params(p map[string]float64) error {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.SetParam(name, p[name]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulation) SetParam(name string, value float64) error {
	if _, ok := s.params[name]; ok {
		s.params[name] = value
		if s.compiled != nil {
			return s.compiled.SetParam(name, value)
		}
		return nil
	}
	if err := equation.CheckName(name); err != nil {
		return err
	}
	if _, ok := s.byName[name]; ok {
		return fmt.Errorf("%w: %s is a variable", ErrNameConflict, name)
	}
	s.params[name] = value
	s.compiled = nil
	return nil
}

func (s *Simulation) Param(name string) (float64, bool) {
	v, ok := s.params[name]
	return v, ok
}

func (s *Simulation) ParamNames() []string {
	names := make([]string, 0, len(s.params))
	for name := range s.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetInitial sets the initial value of a state, including derivative states
// such as x_p.
func (s *Simulation) SetInitial(state string, value float64) error {
	if _, ok := s.initial[state]; !ok {
		return fmt.Errorf("%w: no state %s", ErrUnknownVariable, state)
	}
	s.initial[state] = value
	return nil
}

func (s *Simulation) Initial(state string) (float64, bool) {
	v, ok := s.initial[state]
	return v, ok
}

// SetValue assigns a parameter or, for names with InitialPrefix, an
// initial value.
func (s *Simulation) SetValue(name string, value float64) error {
	if state, ok := strings.CutPrefix(name, InitialPrefix); ok {
		if _, isState := s.initial[state]; isState {
			return s.SetInitial(state, value)
		}
	}
	if _, ok := s.params[name]; !ok {
		return fmt.Errorf("%w: no parameter %s", ErrUnknownVariable, name)
	}
	return s.SetParam(name, value)
}

func (s *Simulation) Value(name string) (float64, bool) {
	if state, ok := strings.CutPrefix(name, InitialPrefix); ok {
		if v, isState := s.initial[state]; isState {
			return v, true
		}
	}
	return s.Param(name)
}

// StateNames lists every integrated state in declaration order.
func (s *Simulation) StateNames() []string {
	var names []string
	for _, v := range s.vars {
		names = append(names, v.states()...)
	}
	return names
}

// Variables lists declared variable names (not derivative states) in order.
func (s *Simulation) Variables() []string {
	names := make([]string, 0, len(s.vars))
	for _, v := range s.vars {
		names = append(names, v.eq.Name)
	}
	return names
}

// Clone returns an independent copy of definitions, data and results.
func (s *Simulation) Clone() *Simulation {
	c := New()
	c.NoPlots = s.NoPlots
	c.out = s.out
	c.width, c.height = s.width, s.height
	c.start, c.end = s.start, s.end

	for _, v := range s.vars {
		cv := *v
		cv.inflows = append([]string(nil), v.inflows...)
		cv.outflows = append([]string(nil), v.outflows...)
		c.vars = append(c.vars, &cv)
		c.byName[cv.eq.Name] = &cv
	}
	for k, v := range s.params {
		c.params[k] = v
	}
	for k, v := range s.initial {
		c.initial[k] = v
	}
	for _, d := range s.data {
		cd := *d
		cd.T = append([]float64(nil), d.T...)
		cd.Values = append([]float64(nil), d.Values...)
		c.data = append(c.data, &cd)
	}
	if s.results != nil {
		c.results = s.results.clone()
	}
	return c
}

func flowRHS(inflows, outflows []string) string {
	if len(inflows) == 0 && len(outflows) == 0 {
		return "0"
	}
	var b strings.Builder
	for i, f := range inflows {
		if i > 0 {
			b.WriteString(" + ")
		}
		b.WriteString(wrapTerm(f))
	}
	for i, f := range outflows {
		if i == 0 && len(inflows) == 0 {
			b.WriteString("-")
		} else {
			b.WriteString(" - ")
		}
		b.WriteString(wrapTerm(f))
	}
	return b.String()
}

// plainProduct matches terms built only from names, numbers, calls and
// * / ^, which bind tighter than a leading minus or a following +.
var plainProduct = regexp.MustCompile(`^[A-Za-z0-9_.*/^() ]+$`)

func wrapTerm(expr string) string {
	expr = strings.TrimSpace(expr)
	if plainProduct.MatchString(expr) && balanced(expr) {
		return expr
	}
	return "(" + expr + ")"
}

// balanced reports whether the parentheses in expr pair up.
func balanced(expr string) bool {
	depth := 0
	for _, r := range expr {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
