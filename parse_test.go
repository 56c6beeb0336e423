package phaseplane_test

import (
	"errors"
	"math"
	"testing"

	"phaseplane"
)

func mustParse(t *testing.T, text string) phaseplane.Expr {
	t.Helper()
	e, err := phaseplane.Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q): %v", text, err)
	}
	return e
}

func evalAt(t *testing.T, e phaseplane.Expr, binds map[string]float64) float64 {
	t.Helper()
	for name, v := range binds {
		e = phaseplane.Sub(e, name, phaseplane.NFloat(v))
	}
	n, ok := e.Eval()
	if !ok {
		t.Fatalf("%s should evaluate with %v", e, binds)
	}
	return n.Float64()
}

// ============================================================
// Basic forms
// ============================================================

func TestParse_Number(t *testing.T) {
	e := mustParse(t, "3.5")
	if got := evalAt(t, e, nil); got != 3.5 {
		t.Errorf("want 3.5, got %v", got)
	}
}

func TestParse_Precedence(t *testing.T) {
	e := mustParse(t, "2 + 3*4")
	if got := evalAt(t, e, nil); got != 14 {
		t.Errorf("want 14, got %v", got)
	}
}

func TestParse_Division(t *testing.T) {
	e := mustParse(t, "x/4")
	if got := evalAt(t, e, map[string]float64{"x": 10}); got != 2.5 {
		t.Errorf("want 2.5, got %v", got)
	}
}

func TestParse_Parens(t *testing.T) {
	e := mustParse(t, "(2 + 3)*4")
	if got := evalAt(t, e, nil); got != 20 {
		t.Errorf("want 20, got %v", got)
	}
}

// ============================================================
// Exponentiation
// ============================================================

func TestParse_CaretRightAssoc(t *testing.T) {
	// 2^3^2 = 2^(3^2) = 512
	e := mustParse(t, "2^3^2")
	if got := evalAt(t, e, nil); got != 512 {
		t.Errorf("want 512, got %v", got)
	}
}

func TestParse_UnaryMinusBindsLooserThanCaret(t *testing.T) {
	// -x^2 is -(x^2)
	e := mustParse(t, "-x^2")
	if got := evalAt(t, e, map[string]float64{"x": 3}); got != -9 {
		t.Errorf("want -9, got %v", got)
	}
}

func TestParse_NegativeExponent(t *testing.T) {
	e := mustParse(t, "2^-2")
	if got := evalAt(t, e, nil); got != 0.25 {
		t.Errorf("want 0.25, got %v", got)
	}
}

// ============================================================
// Implicit multiplication
// ============================================================

func TestParse_ImplicitNumberVariable(t *testing.T) {
	e := mustParse(t, "2x")
	if got := evalAt(t, e, map[string]float64{"x": 5}); got != 10 {
		t.Errorf("want 10, got %v", got)
	}
}

func TestParse_ImplicitWithPower(t *testing.T) {
	// 2x^2 is 2*(x^2), not (2x)^2
	e := mustParse(t, "2x^2")
	if got := evalAt(t, e, map[string]float64{"x": 3}); got != 18 {
		t.Errorf("want 18, got %v", got)
	}
}

func TestParse_ImplicitVariableParen(t *testing.T) {
	e := mustParse(t, "x(y + 1)")
	if got := evalAt(t, e, map[string]float64{"x": 2, "y": 3}); got != 8 {
		t.Errorf("want 8, got %v", got)
	}
}

func TestParse_MultiLetterSplits(t *testing.T) {
	// "bcy" reads as b*c*y
	e := mustParse(t, "bcy")
	syms := phaseplane.FreeSymbols(e)
	for _, name := range []string{"b", "c", "y"} {
		if _, ok := syms[name]; !ok {
			t.Errorf("missing symbol %s", name)
		}
	}
	got := evalAt(t, e, map[string]float64{"b": 2, "c": 3, "y": 4})
	if got != 24 {
		t.Errorf("want 24, got %v", got)
	}
}

// ============================================================
// Functions
// ============================================================

func TestParse_Function(t *testing.T) {
	e := mustParse(t, "sin(x)")
	got := evalAt(t, e, map[string]float64{"x": math.Pi / 2})
	if math.Abs(got-1) > 1e-12 {
		t.Errorf("want 1, got %v", got)
	}
}

func TestParse_SqrtDesugarsToPow(t *testing.T) {
	e := mustParse(t, "sqrt(x)")
	if got := evalAt(t, e, map[string]float64{"x": 9}); math.Abs(got-3) > 1e-12 {
		t.Errorf("want 3, got %v", got)
	}
	if _, isPow := e.(*phaseplane.Pow); !isPow {
		t.Errorf("sqrt should parse to a power node, got %T", e)
	}
}

func TestParse_LogAliasesLn(t *testing.T) {
	a := mustParse(t, "log(x)")
	b := mustParse(t, "ln(x)")
	if a.String() != b.String() {
		t.Errorf("log and ln should agree: %s vs %s", a, b)
	}
}

func TestParse_AsinIsNotImplicitProduct(t *testing.T) {
	// "asin(x)" is the arcsine, not a*sin(x).
	e := mustParse(t, "asin(x)")
	syms := phaseplane.FreeSymbols(e)
	if _, hasA := syms["a"]; hasA {
		t.Errorf("asin(x) should not contain symbol a")
	}
	got := evalAt(t, e, map[string]float64{"x": 1})
	if math.Abs(got-math.Pi/2) > 1e-12 {
		t.Errorf("want pi/2, got %v", got)
	}
}

// ============================================================
// Errors
// ============================================================

func TestParse_UnknownFunction(t *testing.T) {
	_, err := phaseplane.Parse("foo(x)")
	var ufe *phaseplane.UnknownFunctionError
	if !errors.As(err, &ufe) {
		t.Fatalf("want UnknownFunctionError, got %v", err)
	}
	if ufe.Name != "foo" {
		t.Errorf("want name foo, got %s", ufe.Name)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, bad := range []string{"", "x +", "(x", "x))", "1 + * 2", "3..5", "x $ y"} {
		_, err := phaseplane.Parse(bad)
		var pe *phaseplane.ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q): want ParseError, got %v", bad, err)
		}
	}
}

func TestParse_Deterministic(t *testing.T) {
	a := mustParse(t, "ax - y + b(x^2 - y^2) + axy")
	b := mustParse(t, "ax - y + b(x^2 - y^2) + axy")
	if !a.Equal(b) {
		t.Errorf("same input should parse to structurally equal trees")
	}
}
