package phaseplane

import (
	"errors"
	"sort"
	"strconv"
	"unicode"
)

// toFloat converts any supported numeric value to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func isSingleLetter(name string) bool {
	runes := []rune(name)
	return len(runes) == 1 && unicode.IsLetter(runes[0])
}

// validateParams runs every structural check over the full parameter
// map before any value is bound, and reports all offenders at once.
// The checks, in order: values must be numeric, names must be single
// letters, every symbol the equations use must have a value, and every
// supplied value must be used by some equation.
func validateParams(eqns []*DifferentialEquation, params map[string]any) (map[string]float64, error) {
	var errs []error

	resolved := make(map[string]float64, len(params))
	var badLabel []string
	for name, raw := range params {
		// Label and type checks are independent: a bad name with a bad
		// value shows up in both offender lists.
		if !isSingleLetter(name) {
			badLabel = append(badLabel, name)
		}
		v, ok := toFloat(raw)
		if !ok {
			errs = append(errs, &ParameterTypeError{Name: name, Value: raw})
			continue
		}
		resolved[name] = v
	}
	if len(badLabel) > 0 {
		sort.Strings(badLabel)
		errs = append(errs, &ParameterValidityError{Kind: ParamBadLabel, Names: badLabel})
	}

	// Symbols the system actually needs, across all equations.
	needed := map[string]bool{}
	for _, eq := range eqns {
		for _, p := range eq.Params() {
			needed[p] = true
		}
	}

	var undefined []string
	for name := range needed {
		if _, ok := params[name]; !ok {
			undefined = append(undefined, name)
		}
	}
	if len(undefined) > 0 {
		sort.Strings(undefined)
		errs = append(errs, &ParameterValidityError{Kind: ParamUndefined, Names: undefined})
	}

	var unused []string
	for name := range params {
		if !needed[name] {
			unused = append(unused, name)
		}
	}
	if len(unused) > 0 {
		sort.Strings(unused)
		errs = append(errs, &ParameterValidityError{Kind: ParamUnused, Names: unused})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return resolved, nil
}
