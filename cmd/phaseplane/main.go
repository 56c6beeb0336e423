// Command phaseplane inspects ODE systems from the command line:
// listing gallery presets, reporting fixed points and their stability,
// sampling trajectories, and rendering phase portraits to PNG.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"phaseplane"
)

var rootCmd = &cobra.Command{
	Use:   "phaseplane",
	Short: "Phase-plane analysis of systems of first-order ODEs",
	Long: "phaseplane parses systems of first-order ODEs, finds their fixed\n" +
		"points and eigenstructure, integrates trajectories, and renders\n" +
		"phase portraits.",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("gallery", "", "TOML preset file (defaults to the builtin gallery)")
}

// loadGallery resolves the --gallery flag to a preset collection.
func loadGallery(cmd *cobra.Command) (*phaseplane.Gallery, error) {
	path, _ := cmd.Flags().GetString("gallery")
	if path == "" {
		return phaseplane.BuiltinGallery(), nil
	}
	return phaseplane.LoadGallery(path)
}

// resolveSystem builds a System either from a named preset or from the
// --coords/--exprs/--param flags when no preset name is given.
func resolveSystem(cmd *cobra.Command, args []string) (*phaseplane.System, *phaseplane.Preset, error) {
	if len(args) > 0 {
		g, err := loadGallery(cmd)
		if err != nil {
			return nil, nil, err
		}
		p, ok := g.Get(args[0])
		if !ok {
			return nil, nil, fmt.Errorf("no preset %q (try %q)", args[0], "phaseplane list")
		}
		sys, err := p.System()
		if err != nil {
			return nil, nil, err
		}
		return sys, &p, nil
	}

	coords, _ := cmd.Flags().GetStringSlice("coords")
	exprs, _ := cmd.Flags().GetStringSlice("exprs")
	paramFlags, _ := cmd.Flags().GetStringSlice("param")
	if len(coords) == 0 || len(exprs) == 0 {
		return nil, nil, fmt.Errorf("give a preset name or --coords and --exprs")
	}
	params := map[string]any{}
	for _, kv := range paramFlags {
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, nil, fmt.Errorf("bad --param %q, want name=value", kv)
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("bad --param %q: %v", kv, err)
		}
		params[name] = f
	}
	sys, err := phaseplane.NewSystem(coords, exprs, params)
	if err != nil {
		return nil, nil, err
	}
	return sys, nil, nil
}

// addSystemFlags registers the ad-hoc system flags shared by the
// analysis subcommands.
func addSystemFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("coords", nil, "phase coordinates, e.g. x,y")
	cmd.Flags().StringSlice("exprs", nil, "right-hand sides, one per coordinate")
	cmd.Flags().StringSlice("param", nil, "parameter binding name=value (repeatable)")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List gallery presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGallery(cmd)
		if err != nil {
			return err
		}
		for _, name := range g.Names() {
			p, _ := g.Get(name)
			fmt.Printf("%-30s %dD  %s\n", name, len(p.Coords), strings.Join(p.Exprs, " ; "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
