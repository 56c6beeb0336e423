package main

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"phaseplane"
)

var showCmd = &cobra.Command{
	Use:   "show [preset]",
	Short: "Print a system's equations, fixed points and stability",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShow,
}

func init() {
	addSystemFlags(showCmd)
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	sys, preset, err := resolveSystem(cmd, args)
	if err != nil {
		return err
	}
	if preset != nil {
		fmt.Printf("%s\n\n", preset.Name)
	}
	fmt.Println(sys)
	if params := sys.Params(); len(params) > 0 {
		var parts []string
		for _, name := range sortedKeys(params) {
			parts = append(parts, fmt.Sprintf("%s=%g", name, params[name]))
		}
		fmt.Printf("parameters: %s\n", strings.Join(parts, ", "))
	}

	pts, err := sys.CalcFixedPoints()
	if err != nil {
		return fmt.Errorf("fixed points: %w", err)
	}
	if len(pts) == 0 {
		fmt.Println("\nno real fixed points")
		return nil
	}
	fmt.Println("\nfixed points:")
	for _, pt := range pts {
		modes, err := sys.Eigenvects(pt)
		if err != nil {
			fmt.Printf("  %s  (eigenstructure unavailable: %v)\n", fmtPoint(pt), err)
			continue
		}
		fmt.Printf("  %s  %s\n", fmtPoint(pt), classify(modes))
		for _, m := range modes {
			fmt.Printf("    λ = %s  (multiplicity %d)\n", fmtComplex(m.Value), m.Multiplicity)
		}
	}
	return nil
}

// classify names the linearization type from the Jacobian eigenvalues.
func classify(modes []phaseplane.Eigenmode) string {
	const tol = 1e-9
	neg, pos, zero := 0, 0, 0
	oscillatory := false
	for _, m := range modes {
		for i := 0; i < m.Multiplicity; i++ {
			switch {
			case real(m.Value) < -tol:
				neg++
			case real(m.Value) > tol:
				pos++
			default:
				zero++
			}
		}
		if math.Abs(imag(m.Value)) > tol {
			oscillatory = true
		}
	}
	switch {
	case zero > 0:
		if oscillatory && neg == 0 && pos == 0 {
			return "center"
		}
		return "non-hyperbolic"
	case neg > 0 && pos > 0:
		return "saddle"
	case pos == 0:
		if oscillatory {
			return "spiral sink (stable)"
		}
		return "node sink (stable)"
	default:
		if oscillatory {
			return "spiral source (unstable)"
		}
		return "node source (unstable)"
	}
}

func fmtPoint(pt []float64) string {
	parts := make([]string, len(pt))
	for i, v := range pt {
		parts[i] = fmt.Sprintf("%.3f", v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func fmtComplex(z complex128) string {
	if math.Abs(imag(z)) < 1e-12 {
		return fmt.Sprintf("%.4f", real(z))
	}
	return fmt.Sprintf("%.4f%+.4fi", real(z), imag(z))
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
