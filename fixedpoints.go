package phaseplane

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Fixed points are equilibria of the autonomous field f(r) = 0,
// evaluated at t = 0. CalcFixedPoints dispatches on structure: affine
// systems solve exactly by LU, a univariate polynomial (including a
// two-dimensional system reduced by substitution) solves by
// Durand-Kerner root iteration, and everything else falls back to a
// Newton search from a seed grid. Complex roots are discarded when
// their imaginary part exceeds imagTol, and every surviving point is
// rounded per component to three decimals and deduplicated.

const (
	imagTol     = 1e-6
	residTol    = 1e-8
	roundScale  = 1000.0
	newtonIters = 50
)

func round3(v float64) float64 {
	r := math.Round(v*roundScale) / roundScale
	if r == 0 {
		return 0 // normalize -0
	}
	return r
}

func pointKey(p []float64) string {
	key := ""
	for _, v := range p {
		key += fmt.Sprintf("%.3f;", v)
	}
	return key
}

// CalcFixedPoints computes the set of real fixed points, rounded to
// three decimals. The result is cached; repeat calls return the cache.
func (s *System) CalcFixedPoints() ([][]float64, error) {
	if s.fpComputed {
		return copyPoints(s.fixedPoints), nil
	}
	deadline := time.Now().Add(s.solveBudget)

	var pts [][]float64
	var err error
	switch {
	case s.isAffine():
		pts, err = s.affineFixedPoints()
		if err != nil {
			// Singular linear part: fall through to the seeded search.
			pts, err = s.newtonGridSearch(deadline)
		}
	case len(s.coords) == 1:
		pts, err = s.univariateFixedPoints(deadline)
	case len(s.coords) == 2:
		pts, err = s.planarFixedPoints(deadline)
	default:
		pts, err = s.newtonGridSearch(deadline)
	}
	if err != nil {
		return nil, err
	}
	// Merge rather than replace: points already added by FindFixedPoint
	// stay in the set.
	s.fixedPoints = dedupPoints(append(s.fixedPoints, pts...))
	s.fpComputed = true
	return copyPoints(s.fixedPoints), nil
}

// FixedPoints returns the cached set without recomputing.
func (s *System) FixedPoints() [][]float64 { return copyPoints(s.fixedPoints) }

// FindFixedPoint runs Newton iteration from a user-supplied seed for a
// fixed number of steps and returns the rounded result, adding it to
// the cached set. There is no convergence check; fifty steps either
// land on a root or produce a point the caller can inspect.
func (s *System) FindFixedPoint(seed []float64) ([]float64, error) {
	if err := s.checkDim(seed); err != nil {
		return nil, err
	}
	pt, err := s.newtonIterate(seed, newtonIters)
	if err != nil {
		return nil, err
	}
	rounded := make([]float64, len(pt))
	for i, v := range pt {
		rounded[i] = round3(v)
	}
	s.fixedPoints = dedupPoints(append(s.fixedPoints, rounded))
	return rounded, nil
}

// newtonIterate takes exactly iters Newton steps from seed.
func (s *System) newtonIterate(seed []float64, iters int) ([]float64, error) {
	n := len(s.coords)
	x := append([]float64(nil), seed...)
	f := make([]float64, n)
	for iter := 0; iter < iters; iter++ {
		if err := s.rhs(0, x, f); err != nil {
			return nil, err
		}
		j, err := s.jacAt(0, x)
		if err != nil {
			return nil, err
		}
		neg := make([]float64, n)
		for i := range f {
			neg[i] = -f[i]
		}
		var dx mat.VecDense
		if err := dx.SolveVec(j, mat.NewVecDense(n, neg)); err != nil {
			return nil, &SingularJacobianError{Point: append([]float64(nil), x...), Iteration: iter}
		}
		for i := 0; i < n; i++ {
			x[i] += dx.AtVec(i)
			if math.IsNaN(x[i]) || math.IsInf(x[i], 0) {
				return nil, &EvalError{Reason: fmt.Sprintf("newton iterate diverged from %v", seed)}
			}
		}
	}
	return x, nil
}

// ============================================================
// Affine systems: solve A x = -b exactly
// ============================================================

// isAffine reports whether every Jacobian entry is constant, which
// means every right-hand side is affine in the coordinates.
func (s *System) isAffine() bool {
	for _, row := range s.jacExprs {
		for _, e := range row {
			if _, ok := e.Eval(); !ok {
				return false
			}
		}
	}
	return true
}

func (s *System) affineFixedPoints() ([][]float64, error) {
	n := len(s.coords)
	a := mat.NewDense(n, n, nil)
	for i, row := range s.jacExprs {
		for j, e := range row {
			v, _ := e.Eval()
			a.Set(i, j, v.Float64())
		}
	}
	origin := make([]float64, n)
	b := make([]float64, n)
	if err := s.rhs(0, origin, b); err != nil {
		return nil, err
	}
	for i := range b {
		b[i] = -b[i]
	}
	var x mat.VecDense
	if err := x.SolveVec(a, mat.NewVecDense(n, b)); err != nil {
		return nil, fmt.Errorf("linear part is singular: %w", err)
	}
	pt := make([]float64, n)
	for i := 0; i < n; i++ {
		pt[i] = round3(x.AtVec(i))
	}
	return [][]float64{pt}, nil
}

// ============================================================
// Univariate polynomials: Durand-Kerner
// ============================================================

// numericPolyCoeffs extracts ascending float coefficients of e as a
// polynomial in varName, or ok=false when e is not such a polynomial.
func numericPolyCoeffs(e Expr, varName string) ([]float64, bool) {
	byDeg, ok := PolyCoeffs(e, varName)
	if !ok {
		return nil, false
	}
	maxDeg := 0
	for d := range byDeg {
		if d > maxDeg {
			maxDeg = d
		}
	}
	out := make([]float64, maxDeg+1)
	for d, c := range byDeg {
		n, ok := c.Eval()
		if !ok {
			return nil, false
		}
		out[d] = n.Float64()
	}
	return out, true
}

// polyRoots finds all complex roots of the polynomial with ascending
// coefficients coeffs by Durand-Kerner iteration.
func polyRoots(coeffs []float64) ([]complex128, error) {
	// Strip trailing zero coefficients down to the true degree.
	deg := len(coeffs) - 1
	for deg > 0 && coeffs[deg] == 0 {
		deg--
	}
	if deg == 0 {
		return nil, nil // constant: no roots (or everywhere-zero, handled upstream)
	}
	lead := coeffs[deg]
	monic := make([]complex128, deg+1)
	for i := 0; i <= deg; i++ {
		monic[i] = complex(coeffs[i]/lead, 0)
	}

	evalPoly := func(z complex128) complex128 {
		acc := complex128(1) // monic leading term
		for i := deg - 1; i >= 0; i-- {
			acc = acc*z + monic[i]
		}
		return acc
	}

	roots := make([]complex128, deg)
	seed := complex(0.4, 0.9)
	roots[0] = seed
	for i := 1; i < deg; i++ {
		roots[i] = roots[i-1] * seed
	}
	next := make([]complex128, deg)
	for iter := 0; iter < 500; iter++ {
		maxDelta := 0.0
		for i := 0; i < deg; i++ {
			denom := complex128(1)
			for j := 0; j < deg; j++ {
				if j != i {
					denom *= roots[i] - roots[j]
				}
			}
			if denom == 0 {
				denom = complex(1e-30, 0)
			}
			next[i] = roots[i] - evalPoly(roots[i])/denom
			if d := cmplx.Abs(next[i] - roots[i]); d > maxDelta {
				maxDelta = d
			}
		}
		copy(roots, next)
		if maxDelta < 1e-14 {
			return roots, nil
		}
	}
	// Accept whatever the iteration settled on if residuals are small.
	for _, r := range roots {
		if cmplx.Abs(evalPoly(r)) > 1e-6 {
			return nil, fmt.Errorf("polynomial root iteration did not converge")
		}
	}
	return roots, nil
}

// realRoots filters roots to those with negligible imaginary part.
func realRoots(roots []complex128) []float64 {
	var out []float64
	for _, r := range roots {
		if math.Abs(imag(r)) <= imagTol {
			out = append(out, real(r))
		}
	}
	sort.Float64s(out)
	return out
}

func (s *System) univariateFixedPoints(deadline time.Time) ([][]float64, error) {
	x := s.coords[0]
	f := s.eqns[0].SubstitutedExpr()
	coeffs, isPoly := numericPolyCoeffs(f, x)
	if !isPoly {
		return s.newtonGridSearch(deadline)
	}
	roots, err := polyRoots(coeffs)
	if err != nil {
		return s.newtonGridSearch(deadline)
	}
	var pts [][]float64
	for _, r := range realRoots(roots) {
		pts = append(pts, []float64{round3(r)})
	}
	return pts, nil
}

// ============================================================
// Planar systems: substitution reduction
// ============================================================

// planarFixedPoints tries to reduce a two-dimensional system to one
// univariate polynomial. When some f_i is degree one in a coordinate u
// (f_i = c1*u + c0 with c1, c0 free of u), substituting u = -c0/c1
// into the other equation and clearing the c1 denominators leaves a
// polynomial in the remaining coordinate.
func (s *System) planarFixedPoints(deadline time.Time) ([][]float64, error) {
	f := []Expr{s.eqns[0].SubstitutedExpr(), s.eqns[1].SubstitutedExpr()}
	var all [][]float64
	reduced := false
	// Union every elimination order: solving one equation for one
	// coordinate drops the branch where its leading coefficient
	// vanishes, and a different order recovers it.
	for ei := 0; ei < 2; ei++ {
		for ci := 0; ci < 2; ci++ {
			pts, ok, err := s.reduceAndSolve(f[ei], f[1-ei], s.coords[ci], s.coords[1-ci], ci)
			if err != nil {
				return nil, err
			}
			if ok {
				reduced = true
				all = append(all, pts...)
			}
		}
	}
	if reduced {
		return all, nil
	}
	return s.newtonGridSearch(deadline)
}

// reduceAndSolve solves the pair (fa, fb) by eliminating coordinate u
// from fa. uIdx is u's position in the coordinate order, so results
// can be assembled in order.
func (s *System) reduceAndSolve(fa, fb Expr, u, v string, uIdx int) ([][]float64, bool, error) {
	if Degree(fa, u) != 1 {
		return nil, false, nil
	}
	byDeg, ok := PolyCoeffs(fa, u)
	if !ok {
		return nil, false, nil
	}
	c1 := byDeg[1]
	c0 := byDeg[0]
	if c0 == nil {
		c0 = N(0)
	}

	degB := Degree(fb, u)
	if degB < 0 {
		return nil, false, nil
	}
	bByDeg, ok := PolyCoeffs(fb, u)
	if !ok {
		return nil, false, nil
	}
	// h(v) = sum_k b_k * (-c0)^k * c1^(degB-k); same roots as fb with
	// u = -c0/c1 wherever c1 != 0.
	var terms []Expr
	for k := 0; k <= degB; k++ {
		bk := bByDeg[k]
		if bk == nil {
			continue
		}
		term := MulOf(bk, PowOf(MulOf(N(-1), c0), N(int64(k))), PowOf(c1, N(int64(degB-k))))
		terms = append(terms, term)
	}
	h := AddOf(terms...).Simplify()

	coeffs, isPoly := numericPolyCoeffs(h, v)
	if !isPoly {
		return nil, false, nil
	}
	allZero := true
	for _, c := range coeffs {
		if c != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		// fb vanishes identically on the fa nullcline: a continuum,
		// not isolated points. Let the numeric search report samples.
		return nil, false, nil
	}
	roots, err := polyRoots(coeffs)
	if err != nil {
		return nil, false, nil
	}

	var pts [][]float64
	for _, vVal := range realRoots(roots) {
		c1v, ok1 := Sub(c1, v, NFloat(vVal)).Eval()
		c0v, ok0 := Sub(c0, v, NFloat(vVal)).Eval()
		if !ok1 || !ok0 {
			continue
		}
		den := c1v.Float64()
		if math.Abs(den) < 1e-12 {
			continue // spurious root introduced by clearing denominators
		}
		uVal := -c0v.Float64() / den
		pt := make([]float64, 2)
		pt[uIdx] = round3(uVal)
		pt[1-uIdx] = round3(vVal)
		if s.isFixedPoint(pt) {
			pts = append(pts, pt)
		}
	}
	return pts, true, nil
}

// isFixedPoint checks the residual of the unrounded field at pt.
func (s *System) isFixedPoint(pt []float64) bool {
	f := make([]float64, len(pt))
	if err := s.rhs(0, pt, f); err != nil {
		return false
	}
	for _, v := range f {
		if math.Abs(v) > 1e-3 {
			return false
		}
	}
	return true
}

// ============================================================
// Seeded Newton search
// ============================================================

// newtonGridSearch runs Newton iteration from a lattice of seeds over
// [-10, 10] per coordinate and keeps converged, deduplicated roots.
func (s *System) newtonGridSearch(deadline time.Time) ([][]float64, error) {
	n := len(s.coords)
	seedVals := []float64{0, -1, 1, -3, 3, -5, 5, -10, 10}

	var pts [][]float64
	seed := make([]float64, n)
	total := 1
	for i := 0; i < n; i++ {
		total *= len(seedVals)
	}
	for idx := 0; idx < total; idx++ {
		if time.Now().After(deadline) {
			return nil, ErrSolveBudget
		}
		rem := idx
		for i := 0; i < n; i++ {
			seed[i] = seedVals[rem%len(seedVals)]
			rem /= len(seedVals)
		}
		x, err := s.newtonIterate(seed, newtonIters)
		if err != nil {
			continue // singular or diverging seed, try the next one
		}
		f := make([]float64, n)
		if err := s.rhs(0, x, f); err != nil {
			continue
		}
		resid := 0.0
		for _, v := range f {
			resid += v * v
		}
		if math.Sqrt(resid) > residTol {
			continue
		}
		pt := make([]float64, n)
		for i, v := range x {
			pt[i] = round3(v)
		}
		pts = append(pts, pt)
	}
	return dedupPoints(pts), nil
}

// ============================================================
// Set helpers
// ============================================================

func dedupPoints(pts [][]float64) [][]float64 {
	seen := map[string]bool{}
	var out [][]float64
	for _, p := range pts {
		k := pointKey(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		for c := range out[i] {
			if out[i][c] != out[j][c] {
				return out[i][c] < out[j][c]
			}
		}
		return false
	})
	return out
}

func copyPoints(pts [][]float64) [][]float64 {
	out := make([][]float64, len(pts))
	for i, p := range pts {
		out[i] = append([]float64(nil), p...)
	}
	return out
}
