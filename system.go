package phaseplane

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/mat"
)

// System is a validated autonomous-or-driven system of first-order
// ODEs dr/dt = f(t, r) over named phase coordinates. Construction
// parses and validates everything; a *System with a nil error is fully
// usable and immutable. To change equations or parameter values, build
// a new System.
type System struct {
	coords []string
	eqns   []*DifferentialEquation
	params map[string]float64

	rhsProgs []*Program
	jacExprs [][]Expr
	jacProgs [][]*Program

	maxStep     float64
	solveBudget time.Duration

	fixedPoints [][]float64
	fpComputed  bool
}

// Option adjusts solver limits at construction.
type Option func(*System)

// WithMaxStep overrides the integrator's maximum step size.
func WithMaxStep(h float64) Option {
	return func(s *System) {
		if h > 0 {
			s.maxStep = h
		}
	}
}

// WithSolveBudget overrides the wall-clock budget for fixed-point
// searching.
func WithSolveBudget(d time.Duration) Option {
	return func(s *System) {
		if d > 0 {
			s.solveBudget = d
		}
	}
}

const (
	defaultMaxStep     = 0.02
	defaultSolveBudget = 5 * time.Second
)

// NewSystem builds a system from one right-hand-side expression per
// phase coordinate. All parse and validation failures across the whole
// input are joined into a single error and nothing is constructed.
func NewSystem(coords []string, exprs []string, params map[string]any, opts ...Option) (*System, error) {
	if len(coords) == 0 {
		return nil, fmt.Errorf("system needs at least one phase coordinate")
	}
	if len(coords) != len(exprs) {
		return nil, &DimensionError{Want: len(coords), Got: len(exprs)}
	}
	seen := map[string]bool{}
	for _, c := range coords {
		if !isSingleLetter(c) || c == "t" {
			return nil, fmt.Errorf("phase coordinate %q: must be a single letter other than t", c)
		}
		if seen[c] {
			return nil, fmt.Errorf("phase coordinate %q repeated", c)
		}
		seen[c] = true
	}

	var parseErrs []error
	eqns := make([]*DifferentialEquation, len(coords))
	for i, ex := range exprs {
		eq, err := NewDifferentialEquation(coords[i], coords, ex)
		if err != nil {
			parseErrs = append(parseErrs, err)
			continue
		}
		eqns[i] = eq
	}
	if len(parseErrs) > 0 {
		return nil, errors.Join(parseErrs...)
	}

	resolved, err := validateParams(eqns, params)
	if err != nil {
		return nil, err
	}
	for _, eq := range eqns {
		for name, v := range resolved {
			eq.SetParam(name, v)
		}
	}

	s := &System{
		coords:      append([]string(nil), coords...),
		eqns:        eqns,
		params:      resolved,
		maxStep:     defaultMaxStep,
		solveBudget: defaultSolveBudget,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Parameters are substituted numerically first; then each RHS and
	// each Jacobian entry compiles over the slots [t, coords...].
	slots := append([]string{"t"}, coords...)
	s.rhsProgs = make([]*Program, len(eqns))
	s.jacExprs = make([][]Expr, len(eqns))
	s.jacProgs = make([][]*Program, len(eqns))
	for i, eq := range eqns {
		sub := eq.SubstitutedExpr()
		prog, err := Compile(sub, slots)
		if err != nil {
			return nil, err
		}
		s.rhsProgs[i] = prog
		s.jacExprs[i] = make([]Expr, len(coords))
		s.jacProgs[i] = make([]*Program, len(coords))
		for j, c := range coords {
			dij := Diff(sub, c)
			s.jacExprs[i][j] = dij
			jp, err := Compile(dij, slots)
			if err != nil {
				return nil, err
			}
			s.jacProgs[i][j] = jp
		}
	}
	return s, nil
}

// Coords returns the phase coordinate names in order.
func (s *System) Coords() []string { return append([]string(nil), s.coords...) }

// Dim returns the system dimension.
func (s *System) Dim() int { return len(s.coords) }

// Params returns a copy of the bound parameter values.
func (s *System) Params() map[string]float64 {
	out := make(map[string]float64, len(s.params))
	for k, v := range s.params {
		out[k] = v
	}
	return out
}

// Equations returns the member equations in coordinate order.
func (s *System) Equations() []*DifferentialEquation {
	return append([]*DifferentialEquation(nil), s.eqns...)
}

// Jacobian returns the symbolic Jacobian, entry [i][j] = ∂f_i/∂coord_j
// with parameter values substituted.
func (s *System) Jacobian() [][]Expr {
	out := make([][]Expr, len(s.jacExprs))
	for i, row := range s.jacExprs {
		out[i] = append([]Expr(nil), row...)
	}
	return out
}

func (s *System) checkDim(r []float64) error {
	if len(r) != len(s.coords) {
		return &DimensionError{Want: len(s.coords), Got: len(r)}
	}
	return nil
}

// PhasespaceEval evaluates the velocity field at one phase point,
// returning one component per coordinate.
func (s *System) PhasespaceEval(t float64, r []float64) ([]float64, error) {
	if err := s.checkDim(r); err != nil {
		return nil, err
	}
	vals := make([]float64, 0, 1+len(r))
	vals = append(vals, t)
	vals = append(vals, r...)
	out := make([]float64, len(s.rhsProgs))
	for i, prog := range s.rhsProgs {
		v, err := prog.Eval(vals)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// EvalGrid evaluates the velocity field over a flattened mesh.
// mesh[j][k] is the j-th coordinate of the k-th point; the result has
// the same layout, one row per equation. Points where evaluation is
// undefined yield NaN rather than an error, so a quiver or contour
// grid can straddle singularities.
func (s *System) EvalGrid(t float64, mesh [][]float64) ([][]float64, error) {
	if len(mesh) != len(s.coords) {
		return nil, &DimensionError{Want: len(s.coords), Got: len(mesh)}
	}
	npts := 0
	if len(mesh) > 0 {
		npts = len(mesh[0])
		for _, row := range mesh {
			if len(row) != npts {
				return nil, fmt.Errorf("ragged mesh: row lengths differ")
			}
		}
	}
	out := make([][]float64, len(s.rhsProgs))
	for i := range out {
		out[i] = make([]float64, npts)
	}
	vals := make([]float64, 1+len(s.coords))
	vals[0] = t
	for k := 0; k < npts; k++ {
		for j := range s.coords {
			vals[1+j] = mesh[j][k]
		}
		for i, prog := range s.rhsProgs {
			v, err := prog.Eval(vals)
			if err != nil {
				v = math.NaN()
			}
			out[i][k] = v
		}
	}
	return out, nil
}

// rhs evaluates the field into dy, for the integrator hot loop.
func (s *System) rhs(t float64, y, dy []float64) error {
	vals := make([]float64, 0, 1+len(y))
	vals = append(vals, t)
	vals = append(vals, y...)
	for i, prog := range s.rhsProgs {
		v, err := prog.Eval(vals)
		if err != nil {
			return err
		}
		dy[i] = v
	}
	return nil
}

// JacobianAt evaluates the Jacobian numerically at a phase point
// (autonomous evaluation, t = 0).
func (s *System) JacobianAt(point []float64) (*mat.Dense, error) {
	if err := s.checkDim(point); err != nil {
		return nil, err
	}
	return s.jacAt(0, point)
}

// Eigenmode is one eigenvalue of the Jacobian with its algebraic
// multiplicity and a representative right eigenvector.
type Eigenmode struct {
	Value        complex128
	Multiplicity int
	Vector       []complex128
}

// Eigenvects computes the eigenvalue/multiplicity/eigenvector triples
// of the Jacobian at a phase point, for linear stability analysis.
func (s *System) Eigenvects(point []float64) ([]Eigenmode, error) {
	jm, err := s.JacobianAt(point)
	if err != nil {
		return nil, err
	}
	var eig mat.Eigen
	if ok := eig.Factorize(jm, mat.EigenRight); !ok {
		return nil, fmt.Errorf("eigendecomposition failed at %v", point)
	}
	vals := eig.Values(nil)
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	n := len(vals)
	used := make([]bool, n)
	var modes []Eigenmode
	const eigTol = 1e-9
	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}
		mode := Eigenmode{Value: vals[i], Multiplicity: 1}
		mode.Vector = make([]complex128, n)
		for r := 0; r < n; r++ {
			mode.Vector[r] = vecs.At(r, i)
		}
		used[i] = true
		for j := i + 1; j < n; j++ {
			if !used[j] && cmplx.Abs(vals[j]-vals[i]) < eigTol {
				used[j] = true
				mode.Multiplicity++
			}
		}
		modes = append(modes, mode)
	}
	return modes, nil
}

func (s *System) String() string {
	out := ""
	for i, eq := range s.eqns {
		if i > 0 {
			out += "\n"
		}
		out += eq.String()
	}
	return out
}
