package phaseplane_test

import (
	"math"
	"testing"

	"phaseplane"
)

// ============================================================
// Num tests
// ============================================================

func TestNum_Integer(t *testing.T) {
	n := phaseplane.N(42)
	if n.String() != "42" {
		t.Errorf("want 42, got %s", n.String())
	}
}

func TestNum_Rational(t *testing.T) {
	n := phaseplane.F(1, 3)
	if n.String() != "1/3" {
		t.Errorf("want 1/3, got %s", n.String())
	}
}

func TestNum_Diff_IsZero(t *testing.T) {
	result := phaseplane.Diff(phaseplane.N(5), "x")
	if result.String() != "0" {
		t.Errorf("d/dx(5) should be 0, got %s", result.String())
	}
}

// ============================================================
// Sym tests
// ============================================================

func TestSym_Sub_Match(t *testing.T) {
	x := phaseplane.S("x")
	result := phaseplane.Sub(x, "x", phaseplane.N(3))
	if result.String() != "3" {
		t.Errorf("want 3, got %s", result.String())
	}
}

func TestSym_Diff_Self(t *testing.T) {
	result := phaseplane.Diff(phaseplane.S("x"), "x")
	if result.String() != "1" {
		t.Errorf("dx/dx should be 1, got %s", result.String())
	}
}

func TestSym_Diff_Other(t *testing.T) {
	result := phaseplane.Diff(phaseplane.S("y"), "x")
	if result.String() != "0" {
		t.Errorf("dy/dx should be 0, got %s", result.String())
	}
}

// ============================================================
// Add tests
// ============================================================

func TestAdd_LikeTerms(t *testing.T) {
	e := phaseplane.AddOf(phaseplane.S("x"), phaseplane.S("x"), phaseplane.S("x"))
	if e.String() != "3*x" {
		t.Errorf("want 3*x, got %s", e.String())
	}
}

func TestAdd_CollapseToZero(t *testing.T) {
	e := phaseplane.AddOf(phaseplane.S("x"), phaseplane.MulOf(phaseplane.N(-1), phaseplane.S("x")))
	if e.String() != "0" {
		t.Errorf("x - x should be 0, got %s", e.String())
	}
}

// ============================================================
// Mul tests
// ============================================================

func TestMul_ZeroCollapse(t *testing.T) {
	e := phaseplane.MulOf(phaseplane.N(0), phaseplane.S("x"), phaseplane.S("y"))
	if e.String() != "0" {
		t.Errorf("0*x*y should be 0, got %s", e.String())
	}
}

func TestMul_ProductRule(t *testing.T) {
	// d(x*sin(x))/dx = sin(x) + x*cos(x)
	e := phaseplane.MulOf(phaseplane.S("x"), phaseplane.Call1("sin", phaseplane.S("x")))
	d := phaseplane.Diff(e, "x")
	at2 := phaseplane.Sub(d, "x", phaseplane.NFloat(2))
	n, ok := at2.Eval()
	if !ok {
		t.Fatalf("derivative should evaluate at x=2")
	}
	want := math.Sin(2) + 2*math.Cos(2)
	if math.Abs(n.Float64()-want) > 1e-9 {
		t.Errorf("want %v, got %v", want, n.Float64())
	}
}

// ============================================================
// Pow tests
// ============================================================

func TestPow_ZeroExp(t *testing.T) {
	e := phaseplane.PowOf(phaseplane.S("x"), phaseplane.N(0))
	if e.String() != "1" {
		t.Errorf("x^0 should be 1, got %s", e.String())
	}
}

func TestPow_Diff_PowerRule(t *testing.T) {
	// d(x^3)/dx = 3*x^2
	e := phaseplane.PowOf(phaseplane.S("x"), phaseplane.N(3))
	d := phaseplane.Diff(e, "x")
	if d.String() != "3*x^2" {
		t.Errorf("want 3*x^2, got %s", d.String())
	}
}

func TestPow_ChainRule(t *testing.T) {
	// d(sin(x)^2)/dx = 2*sin(x)*cos(x); check numerically at x=1.
	e := phaseplane.PowOf(phaseplane.Call1("sin", phaseplane.S("x")), phaseplane.N(2))
	d := phaseplane.Diff(e, "x")
	n, ok := phaseplane.Sub(d, "x", phaseplane.N(1)).Eval()
	if !ok {
		t.Fatalf("derivative should evaluate at x=1")
	}
	want := 2 * math.Sin(1) * math.Cos(1)
	if math.Abs(n.Float64()-want) > 1e-9 {
		t.Errorf("want %v, got %v", want, n.Float64())
	}
}

// ============================================================
// Call tests
// ============================================================

func TestCall_Sin_Diff(t *testing.T) {
	d := phaseplane.Diff(phaseplane.Call1("sin", phaseplane.S("x")), "x")
	if d.String() != "cos(x)" {
		t.Errorf("want cos(x), got %s", d.String())
	}
}

func TestCall_Exp_Diff(t *testing.T) {
	d := phaseplane.Diff(phaseplane.Call1("exp", phaseplane.S("x")), "x")
	if d.String() != "exp(x)" {
		t.Errorf("want exp(x), got %s", d.String())
	}
}

func TestCall_LnExp_Collapses(t *testing.T) {
	e := phaseplane.Call1("ln", phaseplane.Call1("exp", phaseplane.S("x")))
	if e.String() != "x" {
		t.Errorf("ln(exp(x)) should be x, got %s", e.String())
	}
}

// ============================================================
// FreeSymbols / Degree tests
// ============================================================

func TestFreeSymbols(t *testing.T) {
	e, err := phaseplane.Parse("a*x + b*sin(y)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	syms := phaseplane.FreeSymbols(e)
	for _, name := range []string{"a", "b", "x", "y"} {
		if _, ok := syms[name]; !ok {
			t.Errorf("missing symbol %s", name)
		}
	}
	if len(syms) != 4 {
		t.Errorf("want 4 symbols, got %d", len(syms))
	}
}

func TestDegree_Polynomial(t *testing.T) {
	e, err := phaseplane.Parse("x^3 + 2x - 7")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d := phaseplane.Degree(e, "x"); d != 3 {
		t.Errorf("want degree 3, got %d", d)
	}
}

func TestDegree_NonPolynomial(t *testing.T) {
	e, err := phaseplane.Parse("sin(x)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d := phaseplane.Degree(e, "x"); d != -1 {
		t.Errorf("sin(x) should have degree -1 in x, got %d", d)
	}
}

func TestPolyCoeffs(t *testing.T) {
	e, err := phaseplane.Parse("2x^2 - 3x + 5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	coeffs, ok := phaseplane.PolyCoeffs(e, "x")
	if !ok {
		t.Fatalf("should be polynomial in x")
	}
	want := map[int]string{0: "5", 1: "-3", 2: "2"}
	for deg, w := range want {
		if got := coeffs[deg].String(); got != w {
			t.Errorf("coeff[%d]: want %s, got %s", deg, w, got)
		}
	}
}

// ============================================================
// Determinism
// ============================================================

func TestSimplify_Deterministic(t *testing.T) {
	a, err := phaseplane.Parse("y*x + x*y + 3 - 1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b, err := phaseplane.Parse("x*y + y*x + 2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.String() != b.String() {
		t.Errorf("equivalent inputs should render identically: %s vs %s", a, b)
	}
}
