package phaseplane

import (
	"fmt"
	"sort"
	"strings"
)

// ParseError reports a malformed expression string.
type ParseError struct {
	Input  string
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s at position %d", e.Input, e.Reason, e.Pos)
}

// UnknownFunctionError reports a call to a function name that is not in
// the recognized set (sin, cos, tan, asin, acos, atan, sinh, cosh, tanh,
// exp, ln, log, sqrt, abs).
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q", e.Name)
}

// ParameterTypeError reports a parameter whose supplied value is not
// numeric.
type ParameterTypeError struct {
	Name  string
	Value any
}

func (e *ParameterTypeError) Error() string {
	return fmt.Sprintf("parameter %q: value %v (%T) is not numeric", e.Name, e.Value, e.Value)
}

// ParameterValidityKind distinguishes the structural parameter checks.
type ParameterValidityKind int

const (
	// ParamBadLabel flags a parameter whose name is not a single letter.
	ParamBadLabel ParameterValidityKind = iota
	// ParamUndefined flags a symbol used in an equation with no supplied value.
	ParamUndefined
	// ParamUnused flags a supplied parameter no equation references.
	ParamUnused
)

func (k ParameterValidityKind) String() string {
	switch k {
	case ParamBadLabel:
		return "invalid label"
	case ParamUndefined:
		return "undefined"
	case ParamUnused:
		return "unused"
	}
	return "unknown"
}

// ParameterValidityError reports every parameter that fails one
// structural check. Names is sorted and complete for the check.
type ParameterValidityError struct {
	Kind  ParameterValidityKind
	Names []string
}

func (e *ParameterValidityError) Error() string {
	names := append([]string(nil), e.Names...)
	sort.Strings(names)
	return fmt.Sprintf("%s parameter(s): %s", e.Kind, strings.Join(names, ", "))
}

// EvalError reports a right-hand side that produced a non-finite value.
type EvalError struct {
	Reason string
}

func (e *EvalError) Error() string { return "evaluate: " + e.Reason }

// SingularJacobianError reports a Newton iteration that hit a Jacobian
// it could not invert.
type SingularJacobianError struct {
	Point     []float64
	Iteration int
}

func (e *SingularJacobianError) Error() string {
	return fmt.Sprintf("singular jacobian at %v (iteration %d)", e.Point, e.Iteration)
}

// DimensionError reports a state or span whose length does not match
// the system dimension.
type DimensionError struct {
	Want, Got int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// ErrSolveBudget is returned when exact fixed-point solving exceeds its
// time budget and the caller should fall back to numeric root-finding.
var ErrSolveBudget = fmt.Errorf("symbolic solve budget exceeded")
