package equation

import (
	"fmt"
	"regexp"
	"strings"
)

type Kind int

const (
	Differential Kind = iota
	Difference
	Auxiliary
)

func (k Kind) String() string {
	switch k {
	case Differential:
		return "differential"
	case Difference:
		return "difference"
	case Auxiliary:
		return "auxiliary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TimeName is the identifier bound to the current time in every expression.
const TimeName = "t"

type Equation struct {
	Name  string
	Kind  Kind
	Order int
	RHS   string
}

var (
	identRe      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	derivLHSRe   = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)('+)$`)
	differenceRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[t\+1\]$`)
)

// Parse splits an equation string into its left-hand side form and the
// right-hand side expression. The right-hand side is returned trimmed but
// otherwise untouched.
func Parse(src string) (Equation, error) {
	idx := assignIndex(src)
	if idx < 0 {
		return Equation{}, fmt.Errorf("%w: missing '=' in %q", ErrSyntax, src)
	}

	lhs := strings.Join(strings.Fields(src[:idx]), "")
	rhs := strings.TrimSpace(src[idx+1:])
	if rhs == "" {
		return Equation{}, fmt.Errorf("%w: empty right-hand side in %q", ErrSyntax, src)
	}

	var eq Equation
	switch {
	case derivLHSRe.MatchString(lhs):
		m := derivLHSRe.FindStringSubmatch(lhs)
		eq = Equation{Name: m[1], Kind: Differential, Order: len(m[2]), RHS: rhs}
	case differenceRe.MatchString(lhs):
		m := differenceRe.FindStringSubmatch(lhs)
		eq = Equation{Name: m[1], Kind: Difference, Order: 1, RHS: rhs}
	case identRe.MatchString(lhs):
		eq = Equation{Name: lhs, Kind: Auxiliary, RHS: rhs}
	default:
		return Equation{}, fmt.Errorf("%w: unrecognised left-hand side %q", ErrSyntax, lhs)
	}

	if err := CheckName(eq.Name); err != nil {
		return Equation{}, err
	}
	return eq, nil
}

// CheckName rejects names that collide with time or built-in functions.
func CheckName(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("%w: invalid name %q", ErrSyntax, name)
	}
	if name == TimeName {
		return fmt.Errorf("%w: %q is the time variable", ErrReservedName, name)
	}
	if IsFunction(name) {
		return fmt.Errorf("%w: %q is a built-in function", ErrReservedName, name)
	}
	return nil
}

// assignIndex finds the single '=' that separates the sides, skipping
// comparison operators.
func assignIndex(src string) int {
	for i := 0; i < len(src); i++ {
		if src[i] != '=' {
			continue
		}
		if i+1 < len(src) && src[i+1] == '=' {
			i++
			continue
		}
		if i > 0 && strings.ContainsRune("<>!=", rune(src[i-1])) {
			continue
		}
		return i
	}
	return -1
}

// DerivativeName names the k-th derivative state of x: x, x_p, x_pp, ...
func DerivativeName(name string, k int) string {
	if k <= 0 {
		return name
	}
	return name + "_" + strings.Repeat("p", k)
}

// StateNames lists the first-order chain for an n-th order variable.
func StateNames(name string, order int) []string {
	if order < 1 {
		order = 1
	}
	names := make([]string, order)
	for k := 0; k < order; k++ {
		names[k] = DerivativeName(name, k)
	}
	return names
}

// RewriteDerivatives replaces x', x'', ... in an expression with derivative
// state names. orders maps every differential variable to its order; a
// reference x^(k) is valid only when k < order.
func RewriteDerivatives(rhs string, orders map[string]int) (string, error) {
	var b strings.Builder
	b.Grow(len(rhs) + 8)

	for i := 0; i < len(rhs); {
		c := rhs[i]
		switch {
		case isIdentStart(c):
			j := i + 1
			for j < len(rhs) && isIdentPart(rhs[j]) {
				j++
			}
			ident := rhs[i:j]
			k := j
			for k < len(rhs) && rhs[k] == '\'' {
				k++
			}
			primes := k - j
			if primes == 0 {
				b.WriteString(ident)
			} else {
				order, ok := orders[ident]
				if !ok || primes >= order {
					return "", fmt.Errorf("%w: %s%s in %q", ErrUnknownDerivative, ident, strings.Repeat("'", primes), rhs)
				}
				b.WriteString(DerivativeName(ident, primes))
			}
			i = k
		case isDigit(c) || (c == '.' && i+1 < len(rhs) && isDigit(rhs[i+1])):
			j := scanNumber(rhs, i)
			b.WriteString(rhs[i:j])
			i = j
		case c == '\'':
			return "", fmt.Errorf("%w: stray prime at offset %d in %q", ErrSyntax, i, rhs)
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// Identifiers returns the distinct identifiers referenced by an expression,
// with primes stripped, in order of first appearance.
func Identifiers(rhs string) []string {
	seen := make(map[string]bool)
	var out []string
	for i := 0; i < len(rhs); {
		c := rhs[i]
		switch {
		case isIdentStart(c):
			j := i + 1
			for j < len(rhs) && isIdentPart(rhs[j]) {
				j++
			}
			ident := rhs[i:j]
			if !seen[ident] {
				seen[ident] = true
				out = append(out, ident)
			}
			i = j
		case isDigit(c) || c == '.':
			i = scanNumber(rhs, i)
		default:
			i++
		}
	}
	return out
}

func scanNumber(s string, i int) int {
	j := i
	for j < len(s) && (isDigit(s[j]) || s[j] == '.') {
		j++
	}
	if j < len(s) && (s[j] == 'e' || s[j] == 'E') {
		k := j + 1
		if k < len(s) && (s[k] == '+' || s[k] == '-') {
			k++
		}
		if k < len(s) && isDigit(s[k]) {
			for k < len(s) && isDigit(s[k]) {
				k++
			}
			j = k
		}
	}
	return j
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
