package phaseplane

import "math"

// Trajectory is the orbit through one phase point: the forward and
// backward solutions from the same start, kept separately so a plot
// can draw both arcs and a failure in one direction does not discard
// the other.
type Trajectory struct {
	Start    []float64
	Forward  *Solution
	Backward *Solution
}

// ComputeTrajectory integrates from start over (0, fwLimit) forward
// and (0, -|bwLimit|) backward using the default solver method.
func ComputeTrajectory(sys *System, start []float64, fwLimit, bwLimit float64) *Trajectory {
	return &Trajectory{
		Start:    append([]float64(nil), start...),
		Forward:  sys.Solve([2]float64{0, math.Abs(fwLimit)}, start, "auto"),
		Backward: sys.Solve([2]float64{0, -math.Abs(bwLimit)}, start, "auto"),
	}
}

// OK reports whether both arcs integrated successfully.
func (tr *Trajectory) OK() bool {
	return tr.Forward.Success && tr.Backward.Success
}
