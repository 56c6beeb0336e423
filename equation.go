package phaseplane

import (
	"fmt"
	"sort"
)

// DifferentialEquation is one first-order ODE d<depvar>/dt = f(t, r; params).
// The right-hand side is parsed once and compiled to a Program; free
// symbols that are neither phase coordinates nor the independent
// variable t become parameters. A parameter has no value until SetParam
// binds one, and evaluating with any parameter still unset fails.
type DifferentialEquation struct {
	depVar      string
	phaseCoords []string
	exprText    string

	expr       Expr
	paramNames []string
	paramVals  []float64
	paramSet   []bool
	prog       *Program
}

// NewDifferentialEquation parses exprStr as the right-hand side of
// d<depVar>/dt over the given phase coordinates.
func NewDifferentialEquation(depVar string, phaseCoords []string, exprStr string) (*DifferentialEquation, error) {
	expr, err := Parse(exprStr)
	if err != nil {
		return nil, err
	}
	coords := append([]string(nil), phaseCoords...)

	isCoord := map[string]bool{"t": true}
	for _, c := range coords {
		isCoord[c] = true
	}
	var params []string
	for name := range FreeSymbols(expr) {
		if !isCoord[name] {
			params = append(params, name)
		}
	}
	sort.Strings(params)

	slots := make([]string, 0, 1+len(coords)+len(params))
	slots = append(slots, "t")
	slots = append(slots, coords...)
	slots = append(slots, params...)
	prog, err := Compile(expr, slots)
	if err != nil {
		return nil, err
	}
	return &DifferentialEquation{
		depVar:      depVar,
		phaseCoords: coords,
		exprText:    exprStr,
		expr:        expr,
		paramNames:  params,
		paramVals:   make([]float64, len(params)),
		paramSet:    make([]bool, len(params)),
		prog:        prog,
	}, nil
}

// DepVar returns the dependent variable name.
func (d *DifferentialEquation) DepVar() string { return d.depVar }

// Expr returns the parsed right-hand side with parameters still symbolic.
func (d *DifferentialEquation) Expr() Expr { return d.expr }

// Params returns the parameter names in sorted order.
func (d *DifferentialEquation) Params() []string {
	return append([]string(nil), d.paramNames...)
}

// ParamValue returns the value bound to name, or ok=false when name is
// not a parameter or no value has been bound yet.
func (d *DifferentialEquation) ParamValue(name string) (float64, bool) {
	for i, p := range d.paramNames {
		if p == name {
			return d.paramVals[i], d.paramSet[i]
		}
	}
	return 0, false
}

// SetParam binds a value to a parameter. Names the equation does not
// use are ignored, so a system can broadcast its parameter map to
// every member equation.
func (d *DifferentialEquation) SetParam(name string, value float64) {
	for i, p := range d.paramNames {
		if p == name {
			d.paramVals[i] = value
			d.paramSet[i] = true
			return
		}
	}
}

// SubstitutedExpr returns the right-hand side with every bound
// parameter replaced by its numeric value. Unset parameters stay
// symbolic.
func (d *DifferentialEquation) SubstitutedExpr() Expr {
	e := d.expr
	for i, p := range d.paramNames {
		if d.paramSet[i] {
			e = Sub(e, p, NFloat(d.paramVals[i]))
		}
	}
	return e
}

// EvalRHS evaluates the right-hand side at time t and phase point r.
// A one-dimensional system passes r of length 1. Every parameter must
// have been bound with SetParam first.
func (d *DifferentialEquation) EvalRHS(t float64, r []float64) (float64, error) {
	if len(r) != len(d.phaseCoords) {
		return 0, &DimensionError{Want: len(d.phaseCoords), Got: len(r)}
	}
	for i, p := range d.paramNames {
		if !d.paramSet[i] {
			return 0, &EvalError{Reason: fmt.Sprintf("unset parameter %s", p)}
		}
	}
	vals := make([]float64, 0, 1+len(r)+len(d.paramVals))
	vals = append(vals, t)
	vals = append(vals, r...)
	vals = append(vals, d.paramVals...)
	return d.prog.Eval(vals)
}

func (d *DifferentialEquation) String() string {
	return fmt.Sprintf("d%s/dt = %s", d.depVar, d.expr)
}
