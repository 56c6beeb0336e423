// Package phaseplane turns user-supplied ODE strings into a validated
// system of first-order equations and computes the qualitative structure
// needed for phase-plane analysis: a compiled right-hand-side evaluator,
// the symbolic Jacobian, fixed points (exact and Newton-refined), and
// numerically integrated trajectories.
//
// The symbolic layer is deterministic: parsing and simplifying the same
// input always yields a structurally identical expression, with exact
// rational arithmetic (math/big.Rat) for literals.
package phaseplane

import (
	"math"
	"math/big"
	"sort"
	"strings"
)

// ============================================================
// Expr — immutable symbolic tree
// ============================================================

// Expr is one node of a symbolic expression tree. Implementations are
// immutable; Simplify, Sub and Diff return new trees.
type Expr interface {
	Simplify() Expr
	String() string
	Sub(varName string, value Expr) Expr
	Diff(varName string) Expr
	Eval() (*Num, bool)
	Equal(other Expr) bool
}

// ============================================================
// Num — exact rational literal
// ============================================================

type Num struct{ val *big.Rat }

func N(n int64) *Num { return &Num{val: new(big.Rat).SetInt64(n)} }
func F(p, q int64) *Num {
	if q == 0 {
		panic("phaseplane: denominator is zero")
	}
	return &Num{val: new(big.Rat).SetFrac(big.NewInt(p), big.NewInt(q))}
}
func NFloat(f float64) *Num { return &Num{val: new(big.Rat).SetFloat64(f)} }

func (n *Num) Simplify() Expr        { return n }
func (n *Num) Sub(string, Expr) Expr { return n }
func (n *Num) Diff(string) Expr      { return N(0) }
func (n *Num) Eval() (*Num, bool)    { return n, true }
func (n *Num) Equal(other Expr) bool { o, ok := other.(*Num); return ok && n.val.Cmp(o.val) == 0 }
func (n *Num) Float64() float64      { f, _ := n.val.Float64(); return f }
func (n *Num) IsZero() bool          { return n.val.Sign() == 0 }
func (n *Num) IsOne() bool           { return n.val.Cmp(ratOne) == 0 }
func (n *Num) IsNegOne() bool        { return n.val.Cmp(ratNegOne) == 0 }
func (n *Num) IsInteger() bool       { return n.val.IsInt() }

var (
	ratOne    = new(big.Rat).SetInt64(1)
	ratNegOne = new(big.Rat).SetInt64(-1)
)

func (n *Num) String() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	return n.val.RatString()
}

func numAdd(a, b *Num) *Num { return &Num{val: new(big.Rat).Add(a.val, b.val)} }
func numMul(a, b *Num) *Num { return &Num{val: new(big.Rat).Mul(a.val, b.val)} }
func numNeg(a *Num) *Num    { return &Num{val: new(big.Rat).Neg(a.val)} }
func numRecip(a *Num) *Num {
	if a.IsZero() {
		panic("phaseplane: division by zero")
	}
	return &Num{val: new(big.Rat).Inv(a.val)}
}
func numDiv(a, b *Num) *Num { return numMul(a, numRecip(b)) }

// ============================================================
// Sym — named variable
// ============================================================

type Sym struct{ name string }

func S(name string) *Sym         { return &Sym{name: name} }
func (s *Sym) Simplify() Expr    { return s }
func (s *Sym) String() string    { return s.name }
func (s *Sym) Name() string      { return s.name }
func (s *Sym) Eval() (*Num, bool) { return nil, false }
func (s *Sym) Equal(other Expr) bool {
	o, ok := other.(*Sym)
	return ok && s.name == o.name
}
func (s *Sym) Sub(varName string, value Expr) Expr {
	if s.name == varName {
		return value
	}
	return s
}
func (s *Sym) Diff(varName string) Expr {
	if s.name == varName {
		return N(1)
	}
	return N(0)
}

// ============================================================
// Add — sum of terms
// ============================================================

type Add struct{ terms []Expr }

func AddOf(terms ...Expr) Expr { return (&Add{terms: terms}).Simplify() }

func (a *Add) Simplify() Expr {
	flat := make([]Expr, 0, len(a.terms))
	for _, t := range a.terms {
		s := t.Simplify()
		if inner, ok := s.(*Add); ok {
			flat = append(flat, inner.terms...)
		} else {
			flat = append(flat, s)
		}
	}
	numAccum := N(0)
	symCoeffs := map[string]*Num{}
	symOrder := []string{}
	others := []Expr{}
	for _, t := range flat {
		switch v := t.(type) {
		case *Num:
			numAccum = numAdd(numAccum, v)
		case *Sym:
			if _, seen := symCoeffs[v.name]; !seen {
				symOrder = append(symOrder, v.name)
				symCoeffs[v.name] = N(0)
			}
			symCoeffs[v.name] = numAdd(symCoeffs[v.name], N(1))
		default:
			others = append(others, t)
		}
	}
	result := []Expr{}
	sort.Strings(symOrder)
	for _, name := range symOrder {
		coeff := symCoeffs[name]
		if coeff.IsZero() {
			continue
		}
		if coeff.IsOne() {
			result = append(result, S(name))
		} else {
			result = append(result, MulOf(coeff, S(name)))
		}
	}
	result = append(result, others...)
	if !numAccum.IsZero() {
		result = append(result, numAccum)
	}
	if len(result) == 0 {
		return N(0)
	}
	if len(result) == 1 {
		return result[0]
	}
	return &Add{terms: result}
}

func (a *Add) String() string {
	if len(a.terms) == 0 {
		return "0"
	}
	parts := make([]string, len(a.terms))
	for i, t := range a.terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " + ")
}

func (a *Add) Sub(varName string, value Expr) Expr {
	newTerms := make([]Expr, len(a.terms))
	for i, t := range a.terms {
		newTerms[i] = t.Sub(varName, value)
	}
	return AddOf(newTerms...)
}

func (a *Add) Diff(varName string) Expr {
	dTerms := make([]Expr, len(a.terms))
	for i, t := range a.terms {
		dTerms[i] = t.Diff(varName)
	}
	return AddOf(dTerms...)
}

func (a *Add) Eval() (*Num, bool) {
	acc := N(0)
	for _, t := range a.terms {
		v, ok := t.Eval()
		if !ok {
			return nil, false
		}
		acc = numAdd(acc, v)
	}
	return acc, true
}

func (a *Add) Equal(other Expr) bool {
	o, ok := other.(*Add)
	if !ok || len(a.terms) != len(o.terms) {
		return false
	}
	for i := range a.terms {
		if !a.terms[i].Equal(o.terms[i]) {
			return false
		}
	}
	return true
}

func (a *Add) Terms() []Expr { return a.terms }

// ============================================================
// Mul — product of factors
// ============================================================

type Mul struct{ factors []Expr }

func MulOf(factors ...Expr) Expr { return (&Mul{factors: factors}).Simplify() }

func (m *Mul) Simplify() Expr {
	flat := make([]Expr, 0, len(m.factors))
	for _, f := range m.factors {
		s := f.Simplify()
		if inner, ok := s.(*Mul); ok {
			flat = append(flat, inner.factors...)
		} else {
			flat = append(flat, s)
		}
	}
	coeff := N(1)
	others := []Expr{}
	for _, f := range flat {
		if v, ok := f.(*Num); ok {
			coeff = numMul(coeff, v)
		} else {
			others = append(others, f)
		}
	}
	if coeff.IsZero() {
		return N(0)
	}
	if len(others) == 0 {
		return coeff
	}

	// Deterministic factor order keyed on the rendered form.
	type keyed struct {
		e   Expr
		key string
	}
	ks := make([]keyed, len(others))
	for i, e := range others {
		ks[i] = keyed{e: e, key: e.String()}
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i].key < ks[j].key })
	for i := range ks {
		others[i] = ks[i].e
	}

	if coeff.IsOne() {
		if len(others) == 1 {
			return others[0]
		}
		return &Mul{factors: others}
	}
	return &Mul{factors: append([]Expr{coeff}, others...)}
}

func (m *Mul) String() string {
	if len(m.factors) == 0 {
		return "1"
	}
	parts := make([]string, len(m.factors))
	for i, f := range m.factors {
		if _, isAdd := f.(*Add); isAdd {
			parts[i] = "(" + f.String() + ")"
		} else {
			parts[i] = f.String()
		}
	}
	return strings.Join(parts, "*")
}

func (m *Mul) Sub(varName string, value Expr) Expr {
	newFactors := make([]Expr, len(m.factors))
	for i, f := range m.factors {
		newFactors[i] = f.Sub(varName, value)
	}
	return MulOf(newFactors...)
}

// Diff applies the product rule across all factors.
func (m *Mul) Diff(varName string) Expr {
	terms := make([]Expr, len(m.factors))
	for i, fi := range m.factors {
		dfi := fi.Diff(varName)
		others := make([]Expr, 0, len(m.factors)-1)
		for j, fj := range m.factors {
			if j != i {
				others = append(others, fj)
			}
		}
		if len(others) == 0 {
			terms[i] = dfi
		} else {
			terms[i] = MulOf(append([]Expr{dfi}, others...)...)
		}
	}
	return AddOf(terms...)
}

func (m *Mul) Eval() (*Num, bool) {
	acc := N(1)
	for _, f := range m.factors {
		v, ok := f.Eval()
		if !ok {
			return nil, false
		}
		acc = numMul(acc, v)
	}
	return acc, true
}

func (m *Mul) Equal(other Expr) bool {
	o, ok := other.(*Mul)
	if !ok || len(m.factors) != len(o.factors) {
		return false
	}
	for i := range m.factors {
		if !m.factors[i].Equal(o.factors[i]) {
			return false
		}
	}
	return true
}

func (m *Mul) Factors() []Expr { return m.factors }

// ============================================================
// Pow — base^exponent
// ============================================================

type Pow struct{ base, exp Expr }

func PowOf(base, exp Expr) Expr { return (&Pow{base: base, exp: exp}).Simplify() }

func (p *Pow) Simplify() Expr {
	base := p.base.Simplify()
	exp := p.exp.Simplify()

	if en, ok := exp.(*Num); ok {
		if en.IsZero() {
			return N(1)
		}
		if en.IsOne() {
			return base
		}
	}

	if bn, ok := base.(*Num); ok {
		if bn.IsZero() {
			if en, ok2 := exp.(*Num); ok2 && (en.IsZero() || en.val.Sign() < 0) {
				// 0^0 and 0^negative stay unevaluated.
				return &Pow{base: base, exp: exp}
			}
			return N(0)
		}
		if bn.IsOne() {
			return N(1)
		}
		if en, ok2 := exp.(*Num); ok2 && en.IsInteger() {
			e := en.val.Num().Int64()
			if e >= -20 && e <= 20 {
				result := N(1)
				for i := int64(0); i < absInt64(e); i++ {
					result = numMul(result, bn)
				}
				if e < 0 {
					return numRecip(result)
				}
				return result
			}
		}
	}
	if inner, ok := base.(*Pow); ok {
		return PowOf(inner.base, MulOf(inner.exp, exp).Simplify())
	}
	return &Pow{base: base, exp: exp}
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func (p *Pow) String() string {
	baseStr := p.base.String()
	_, baseIsAdd := p.base.(*Add)
	_, baseIsMul := p.base.(*Mul)
	if baseIsAdd || baseIsMul {
		baseStr = "(" + baseStr + ")"
	}
	return baseStr + "^" + p.exp.String()
}

func (p *Pow) Sub(varName string, value Expr) Expr {
	return PowOf(p.base.Sub(varName, value), p.exp.Sub(varName, value))
}

func (p *Pow) Diff(varName string) Expr {
	du := p.base.Diff(varName)
	dv := p.exp.Diff(varName)
	if _, expIsNum := p.exp.(*Num); expIsNum {
		// Power rule: d(u^n) = n*u^(n-1)*du.
		return MulOf(p.exp, PowOf(p.base, AddOf(p.exp, N(-1))), du)
	}
	if _, baseIsNum := p.base.(*Num); baseIsNum {
		// d(a^v) = a^v * ln(a) * dv.
		return MulOf(PowOf(p.base, p.exp), Call1("ln", p.base), dv)
	}
	// General case: u^v * (dv*ln(u) + v*du/u).
	logTerm := MulOf(dv, Call1("ln", p.base))
	divTerm := MulOf(p.exp, du, PowOf(p.base, N(-1)))
	return MulOf(PowOf(p.base, p.exp), AddOf(logTerm, divTerm))
}

func (p *Pow) Eval() (*Num, bool) {
	b, ok1 := p.base.Eval()
	e, ok2 := p.exp.Eval()
	if !ok1 || !ok2 {
		return nil, false
	}
	pf := math.Pow(b.Float64(), e.Float64())
	if math.IsNaN(pf) || math.IsInf(pf, 0) {
		return nil, false
	}
	return NFloat(pf), true
}

func (p *Pow) Equal(other Expr) bool {
	o, ok := other.(*Pow)
	return ok && p.base.Equal(o.base) && p.exp.Equal(o.exp)
}

func (p *Pow) Base() Expr     { return p.base }
func (p *Pow) Exponent() Expr { return p.exp }

// ============================================================
// Call — named single-argument function application
// ============================================================

type Call struct {
	name string
	arg  Expr
}

// unaryFuncs maps recognized function names to float64 evaluation.
// "sqrt" and "log" are parser-level aliases (Pow(·, 1/2), ln).
var unaryFuncs = map[string]func(float64) float64{
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"asin": math.Asin,
	"acos": math.Acos,
	"atan": math.Atan,
	"sinh": math.Sinh,
	"cosh": math.Cosh,
	"tanh": math.Tanh,
	"exp":  math.Exp,
	"ln":   math.Log,
	"abs":  math.Abs,
}

// Call1 builds and simplifies a function application node.
func Call1(name string, arg Expr) Expr { return (&Call{name: name, arg: arg}).Simplify() }

func (c *Call) Simplify() Expr {
	arg := c.arg.Simplify()
	if n, ok := arg.(*Num); ok {
		switch c.name {
		case "sin":
			if n.IsZero() {
				return N(0)
			}
		case "cos":
			if n.IsZero() {
				return N(1)
			}
		case "exp":
			if n.IsZero() {
				return N(1)
			}
		case "ln":
			if n.IsOne() {
				return N(0)
			}
		case "abs":
			if n.val.Sign() >= 0 {
				return n
			}
			return numNeg(n)
		}
	}
	if inner, ok := arg.(*Call); ok {
		if c.name == "ln" && inner.name == "exp" {
			return inner.arg
		}
		if c.name == "exp" && inner.name == "ln" {
			return inner.arg
		}
	}
	return &Call{name: c.name, arg: arg}
}

func (c *Call) String() string { return c.name + "(" + c.arg.String() + ")" }

func (c *Call) Sub(varName string, value Expr) Expr {
	return Call1(c.name, c.arg.Sub(varName, value))
}

func (c *Call) Diff(varName string) Expr {
	du := c.arg.Diff(varName)
	var outer Expr
	switch c.name {
	case "sin":
		outer = Call1("cos", c.arg)
	case "cos":
		outer = MulOf(N(-1), Call1("sin", c.arg))
	case "tan":
		outer = AddOf(N(1), PowOf(Call1("tan", c.arg), N(2)))
	case "exp":
		outer = Call1("exp", c.arg)
	case "ln":
		outer = PowOf(c.arg, N(-1))
	case "asin":
		outer = PowOf(AddOf(N(1), MulOf(N(-1), PowOf(c.arg, N(2)))), F(-1, 2))
	case "acos":
		outer = MulOf(N(-1), PowOf(AddOf(N(1), MulOf(N(-1), PowOf(c.arg, N(2)))), F(-1, 2)))
	case "atan":
		outer = PowOf(AddOf(N(1), PowOf(c.arg, N(2))), N(-1))
	case "sinh":
		outer = Call1("cosh", c.arg)
	case "cosh":
		outer = Call1("sinh", c.arg)
	case "tanh":
		outer = AddOf(N(1), MulOf(N(-1), PowOf(Call1("tanh", c.arg), N(2))))
	case "abs":
		// d|u|/dx = sign(u)*du; not differentiable at 0, left as |u|/u.
		outer = MulOf(Call1("abs", c.arg), PowOf(c.arg, N(-1)))
	default:
		outer = Call1("D["+c.name+"]", c.arg)
	}
	return MulOf(outer, du).Simplify()
}

func (c *Call) Eval() (*Num, bool) {
	n, ok := c.arg.Eval()
	if !ok {
		return nil, false
	}
	fn, known := unaryFuncs[c.name]
	if !known {
		return nil, false
	}
	v := fn(n.Float64())
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, false
	}
	return NFloat(v), true
}

func (c *Call) Equal(other Expr) bool {
	o, ok := other.(*Call)
	return ok && c.name == o.name && c.arg.Equal(o.arg)
}

func (c *Call) FuncName() string { return c.name }
func (c *Call) Arg() Expr        { return c.arg }

// ============================================================
// Helpers over whole trees
// ============================================================

// Diff differentiates and simplifies in one step.
func Diff(expr Expr, varName string) Expr { return expr.Diff(varName).Simplify() }

// Sub substitutes and simplifies in one step.
func Sub(expr Expr, varName string, value Expr) Expr {
	return expr.Sub(varName, value).Simplify()
}

// FreeSymbols returns the set of variable names appearing in e.
func FreeSymbols(e Expr) map[string]struct{} {
	out := map[string]struct{}{}
	collectSymbols(e, out)
	return out
}

func collectSymbols(e Expr, out map[string]struct{}) {
	switch v := e.(type) {
	case *Sym:
		out[v.name] = struct{}{}
	case *Add:
		for _, t := range v.terms {
			collectSymbols(t, out)
		}
	case *Mul:
		for _, f := range v.factors {
			collectSymbols(f, out)
		}
	case *Pow:
		collectSymbols(v.base, out)
		collectSymbols(v.exp, out)
	case *Call:
		collectSymbols(v.arg, out)
	}
}

// Expand distributes products over sums and unrolls small positive
// integer powers of sums, leaving a flat sum of monomials. Factors
// that cannot be expanded (function calls, symbolic powers) pass
// through as opaque units.
func Expand(e Expr) Expr {
	switch v := e.(type) {
	case *Add:
		terms := make([]Expr, len(v.terms))
		for i, t := range v.terms {
			terms[i] = Expand(t)
		}
		return AddOf(terms...)
	case *Mul:
		terms := []Expr{N(1)}
		for _, f := range v.factors {
			ef := Expand(f)
			var fTerms []Expr
			if a, ok := ef.(*Add); ok {
				fTerms = a.terms
			} else {
				fTerms = []Expr{ef}
			}
			next := make([]Expr, 0, len(terms)*len(fTerms))
			for _, t := range terms {
				for _, ft := range fTerms {
					next = append(next, MulOf(t, ft))
				}
			}
			terms = next
		}
		return AddOf(terms...)
	case *Pow:
		base := Expand(v.base)
		if _, isAdd := base.(*Add); isAdd {
			if n, ok := v.exp.(*Num); ok && n.IsInteger() {
				k := n.val.Num().Int64()
				if k >= 2 && k <= 10 {
					result := base
					for i := int64(1); i < k; i++ {
						result = Expand(MulOf(result, base))
					}
					return result
				}
			}
		}
		return PowOf(base, v.exp)
	}
	return e
}

// Degree returns the polynomial degree of e in varName, or -1 when e is
// not polynomial in varName (the variable appears inside a function
// call, an exponent, or a non-integer power).
func Degree(e Expr, varName string) int {
	switch v := e.(type) {
	case *Num:
		return 0
	case *Sym:
		if v.name == varName {
			return 1
		}
		return 0
	case *Pow:
		if _, inExp := FreeSymbols(v.exp)[varName]; inExp {
			return -1
		}
		baseDeg := Degree(v.base, varName)
		if baseDeg < 0 {
			return -1
		}
		if baseDeg == 0 {
			return 0
		}
		n, ok := v.exp.(*Num)
		if !ok || !n.IsInteger() || n.val.Num().Sign() < 0 {
			return -1
		}
		return baseDeg * int(n.val.Num().Int64())
	case *Add:
		maxDeg := 0
		for _, t := range v.terms {
			d := Degree(t, varName)
			if d < 0 {
				return -1
			}
			if d > maxDeg {
				maxDeg = d
			}
		}
		return maxDeg
	case *Mul:
		total := 0
		for _, f := range v.factors {
			d := Degree(f, varName)
			if d < 0 {
				return -1
			}
			total += d
		}
		return total
	case *Call:
		if _, inArg := FreeSymbols(v.arg)[varName]; inArg {
			return -1
		}
		return 0
	}
	return -1
}

// PolyCoeffs extracts coefficients by degree for an expression that is
// polynomial in varName. Coefficients may still contain other symbols.
func PolyCoeffs(e Expr, varName string) (map[int]Expr, bool) {
	if Degree(e, varName) < 0 {
		return nil, false
	}
	out := map[int]Expr{}
	if !extractCoeffs(Expand(e.Simplify()).Simplify(), varName, out) {
		return nil, false
	}
	return out, true
}

func extractCoeffs(e Expr, varName string, out map[int]Expr) bool {
	switch v := e.(type) {
	case *Num:
		addCoeff(out, 0, v)
	case *Sym:
		if v.name == varName {
			addCoeff(out, 1, N(1))
		} else {
			addCoeff(out, 0, v)
		}
	case *Pow:
		d := Degree(v, varName)
		if d < 0 {
			return false
		}
		if d == 0 {
			addCoeff(out, 0, v)
		} else {
			if !isPurePower(v, varName) {
				return false
			}
			addCoeff(out, d, N(1))
		}
	case *Mul:
		deg := 0
		coeffFactors := []Expr{}
		for _, f := range v.factors {
			d := Degree(f, varName)
			if d < 0 {
				return false
			}
			if d > 0 {
				if !isPurePower(f, varName) {
					return false
				}
				deg += d
			} else {
				coeffFactors = append(coeffFactors, f)
			}
		}
		switch len(coeffFactors) {
		case 0:
			addCoeff(out, deg, N(1))
		case 1:
			addCoeff(out, deg, coeffFactors[0])
		default:
			addCoeff(out, deg, MulOf(coeffFactors...))
		}
	case *Add:
		for _, t := range v.terms {
			if !extractCoeffs(t, varName, out) {
				return false
			}
		}
	default:
		return false
	}
	return true
}

// isPurePower reports whether e is varName or varName raised to a
// positive integer, i.e. a bare monomial power with unit coefficient.
func isPurePower(e Expr, varName string) bool {
	switch v := e.(type) {
	case *Sym:
		return v.name == varName
	case *Pow:
		b, ok := v.base.(*Sym)
		if !ok || b.name != varName {
			return false
		}
		n, ok := v.exp.(*Num)
		return ok && n.IsInteger() && n.val.Sign() > 0
	}
	return false
}

func addCoeff(out map[int]Expr, deg int, val Expr) {
	if existing, ok := out[deg]; ok {
		out[deg] = AddOf(existing, val).Simplify()
	} else {
		out[deg] = val.Simplify()
	}
}
