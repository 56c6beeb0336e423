package phaseplane

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Solution is the sampled result of one integration. A failed
// integration is a value, not an error: Success is false and Message
// says why, with T/Y holding whatever was accepted before the failure.
type Solution struct {
	Success bool
	Message string
	Method  string
	T       []float64
	Y       [][]float64 // Y[k] is the state at T[k]
	Steps   int
	Rejects int
}

// Component extracts one coordinate's series, index-aligned with T.
func (s *Solution) Component(i int) []float64 {
	out := make([]float64, len(s.Y))
	for k, y := range s.Y {
		out[k] = y[i]
	}
	return out
}

// Last returns the final accepted state, or nil when nothing was
// accepted.
func (s *Solution) Last() []float64 {
	if len(s.Y) == 0 {
		return nil
	}
	return s.Y[len(s.Y)-1]
}

// ============================================================
// Embedded Runge-Kutta tableaus
// ============================================================

type tableau struct {
	name  string
	order int // order of the propagating solution
	c     []float64
	a     [][]float64
	b     []float64
	bhat  []float64 // embedded lower-order weights; nil means fixed step
}

// Dormand–Prince 5(4), the default.
var rk45 = &tableau{
	name:  "rk45",
	order: 5,
	c:     []float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1},
	a: [][]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	},
	b:    []float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84, 0},
	bhat: []float64{5179.0 / 57600, 0, 7571.0 / 16695, 393.0 / 640, -92097.0 / 339200, 187.0 / 2100, 1.0 / 40},
}

// Bogacki–Shampine 3(2).
var bs32 = &tableau{
	name:  "bs32",
	order: 3,
	c:     []float64{0, 1.0 / 2, 3.0 / 4, 1},
	a: [][]float64{
		{},
		{1.0 / 2},
		{0, 3.0 / 4},
		{2.0 / 9, 1.0 / 3, 4.0 / 9},
	},
	b:    []float64{2.0 / 9, 1.0 / 3, 4.0 / 9, 0},
	bhat: []float64{7.0 / 24, 1.0 / 4, 1.0 / 3, 1.0 / 8},
}

// Classic fourth-order, fixed step.
var rk4 = &tableau{
	name:  "rk4",
	order: 4,
	c:     []float64{0, 1.0 / 2, 1.0 / 2, 1},
	a: [][]float64{
		{},
		{1.0 / 2},
		{0, 1.0 / 2},
		{0, 0, 1},
	},
	b: []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
}

const (
	solveRTol    = 1e-6
	solveATol    = 1e-9
	maxSolveSteps = 200000
	minStepFrac  = 1e-12
)

// Solve integrates the system from r0 over tspan. The span may run
// backward (tspan[1] < tspan[0]). Methods: "auto" (default), "rk45",
// "bs32", "rk4", "ieuler". "auto" runs Dormand–Prince and falls back
// to implicit Euler when the step controller collapses, which is the
// usual stiffness signature.
func (s *System) Solve(tspan [2]float64, r0 []float64, method string) *Solution {
	if err := s.checkDim(r0); err != nil {
		return &Solution{Message: err.Error(), Method: method}
	}
	switch method {
	case "", "auto":
		sol := s.solveRK(tspan, r0, rk45)
		sol.Method = "auto"
		if !sol.Success && sol.Message == stepUnderflowMsg {
			stiff := s.solveImplicitEuler(tspan, r0)
			stiff.Method = "auto"
			return stiff
		}
		return sol
	case "rk45":
		return s.solveRK(tspan, r0, rk45)
	case "bs32":
		return s.solveRK(tspan, r0, bs32)
	case "rk4":
		return s.solveRK(tspan, r0, rk4)
	case "ieuler":
		return s.solveImplicitEuler(tspan, r0)
	}
	return &Solution{Message: fmt.Sprintf("unknown method %q", method), Method: method}
}

const stepUnderflowMsg = "step size underflow"

func (s *System) solveRK(tspan [2]float64, r0 []float64, tab *tableau) *Solution {
	n := len(r0)
	sol := &Solution{Method: tab.name}
	t0, t1 := tspan[0], tspan[1]
	dir := 1.0
	if t1 < t0 {
		dir = -1.0
	}
	span := math.Abs(t1 - t0)

	t := t0
	y := append([]float64(nil), r0...)
	sol.T = append(sol.T, t)
	sol.Y = append(sol.Y, append([]float64(nil), y...))
	if span == 0 {
		sol.Success = true
		return sol
	}

	stages := len(tab.b)
	k := make([][]float64, stages)
	for i := range k {
		k[i] = make([]float64, n)
	}
	ys := make([]float64, n)
	yNext := make([]float64, n)
	yHat := make([]float64, n)

	h := math.Min(s.maxStep, span)
	minStep := span * minStepFrac

	for sol.Steps+sol.Rejects < maxSolveSteps {
		remaining := math.Abs(t1 - t)
		if remaining <= minStep {
			sol.Success = true
			return sol
		}
		if h > remaining {
			h = remaining
		}
		hd := dir * h

		stageErr := func() error {
			for i := 0; i < stages; i++ {
				copy(ys, y)
				for j := 0; j < i; j++ {
					if tab.a[i][j] != 0 {
						floats.AddScaledTo(ys, ys, hd*tab.a[i][j], k[j])
					}
				}
				if err := s.rhs(t+hd*tab.c[i], ys, k[i]); err != nil {
					return err
				}
			}
			return nil
		}()
		if stageErr != nil {
			sol.Message = stageErr.Error()
			return sol
		}

		copy(yNext, y)
		for i := 0; i < stages; i++ {
			if tab.b[i] != 0 {
				floats.AddScaledTo(yNext, yNext, hd*tab.b[i], k[i])
			}
		}

		if tab.bhat == nil {
			// Fixed-step method: accept unconditionally.
			t += hd
			copy(y, yNext)
			sol.Steps++
			sol.T = append(sol.T, t)
			sol.Y = append(sol.Y, append([]float64(nil), y...))
			continue
		}

		copy(yHat, y)
		for i := 0; i < stages; i++ {
			if tab.bhat[i] != 0 {
				floats.AddScaledTo(yHat, yHat, hd*tab.bhat[i], k[i])
			}
		}

		// Weighted RMS error of the embedded pair.
		errNorm := 0.0
		for i := 0; i < n; i++ {
			sc := solveATol + solveRTol*math.Max(math.Abs(y[i]), math.Abs(yNext[i]))
			d := (yNext[i] - yHat[i]) / sc
			errNorm += d * d
		}
		errNorm = math.Sqrt(errNorm / float64(n))

		if errNorm <= 1 {
			t += hd
			copy(y, yNext)
			sol.Steps++
			sol.T = append(sol.T, t)
			sol.Y = append(sol.Y, append([]float64(nil), y...))
		} else {
			sol.Rejects++
		}

		factor := 5.0
		if errNorm > 0 {
			factor = 0.9 * math.Pow(1/errNorm, 1/float64(tab.order+1))
		}
		factor = math.Min(math.Max(factor, 0.2), 5.0)
		h = math.Min(h*factor, s.maxStep)
		if h < minStep {
			sol.Message = stepUnderflowMsg
			return sol
		}
	}
	sol.Message = fmt.Sprintf("step limit reached (%d)", maxSolveSteps)
	return sol
}

// solveImplicitEuler takes fixed backward-Euler steps, solving each
// stage equation y' = y + h f(t', y') by Newton with the symbolic
// Jacobian: (I - h J) dy = y + h f(t', y') - y'.
func (s *System) solveImplicitEuler(tspan [2]float64, r0 []float64) *Solution {
	n := len(r0)
	sol := &Solution{Method: "ieuler"}
	t0, t1 := tspan[0], tspan[1]
	dir := 1.0
	if t1 < t0 {
		dir = -1.0
	}
	span := math.Abs(t1 - t0)

	t := t0
	y := append([]float64(nil), r0...)
	sol.T = append(sol.T, t)
	sol.Y = append(sol.Y, append([]float64(nil), y...))
	if span == 0 {
		sol.Success = true
		return sol
	}

	f := make([]float64, n)
	g := make([]float64, n)
	yNew := make([]float64, n)
	ident := identity(n)
	minStep := span * minStepFrac

	h := s.maxStep
	for sol.Steps < maxSolveSteps {
		remaining := math.Abs(t1 - t)
		if remaining <= minStep {
			sol.Success = true
			return sol
		}
		hd := dir * math.Min(h, remaining)
		tNew := t + hd

		copy(yNew, y)
		converged := false
		for iter := 0; iter < 25; iter++ {
			if err := s.rhs(tNew, yNew, f); err != nil {
				sol.Message = err.Error()
				return sol
			}
			// g = y + h f(tNew, yNew) - yNew
			gNorm := 0.0
			for i := 0; i < n; i++ {
				g[i] = y[i] + hd*f[i] - yNew[i]
				gNorm += g[i] * g[i]
			}
			if math.Sqrt(gNorm) < 1e-12 {
				converged = true
				break
			}
			jf, err := s.jacAt(tNew, yNew)
			if err != nil {
				sol.Message = err.Error()
				return sol
			}
			var jg mat.Dense
			jg.Scale(-hd, jf)
			jg.Add(&jg, ident)
			var dy mat.VecDense
			if err := dy.SolveVec(&jg, mat.NewVecDense(n, append([]float64(nil), g...))); err != nil {
				se := &SingularJacobianError{Point: append([]float64(nil), yNew...), Iteration: iter}
				sol.Message = se.Error()
				return sol
			}
			for i := 0; i < n; i++ {
				yNew[i] += dy.AtVec(i)
			}
		}
		if !converged {
			sol.Message = "implicit step did not converge"
			return sol
		}
		t = tNew
		copy(y, yNew)
		sol.Steps++
		sol.T = append(sol.T, t)
		sol.Y = append(sol.Y, append([]float64(nil), y...))
	}
	sol.Message = fmt.Sprintf("step limit reached (%d)", maxSolveSteps)
	return sol
}

// jacAt evaluates the compiled Jacobian at (t, point).
func (s *System) jacAt(t float64, point []float64) (*mat.Dense, error) {
	n := len(s.coords)
	vals := make([]float64, 0, 1+n)
	vals = append(vals, t)
	vals = append(vals, point...)
	j := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			v, err := s.jacProgs[i][k].Eval(vals)
			if err != nil {
				return nil, err
			}
			j.Set(i, k, v)
		}
	}
	return j, nil
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
