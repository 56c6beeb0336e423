package phaseplane

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Preset is one named, ready-to-construct system for the gallery.
// AxisLimits is [xmin, xmax, ymin, ymax]; for one-dimensional systems
// the y range bounds the plotted dx/dt.
type Preset struct {
	Name       string             `toml:"name"`
	Coords     []string           `toml:"coords"`
	Exprs      []string           `toml:"exprs"`
	Params     map[string]float64 `toml:"params"`
	AxisLimits [4]float64         `toml:"axis_limits"`
}

// System constructs the preset's system of equations.
func (p Preset) System(opts ...Option) (*System, error) {
	params := make(map[string]any, len(p.Params))
	for k, v := range p.Params {
		params[k] = v
	}
	return NewSystem(p.Coords, p.Exprs, params, opts...)
}

// Gallery is an ordered, name-keyed collection of presets.
type Gallery struct {
	presets []Preset
	byName  map[string]int
}

func newGallery(presets []Preset) (*Gallery, error) {
	g := &Gallery{presets: presets, byName: make(map[string]int, len(presets))}
	for i, p := range presets {
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d has no name", i)
		}
		if _, dup := g.byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate preset name %q", p.Name)
		}
		g.byName[p.Name] = i
	}
	return g, nil
}

// Names lists the presets in gallery order.
func (g *Gallery) Names() []string {
	out := make([]string, len(g.presets))
	for i, p := range g.presets {
		out[i] = p.Name
	}
	return out
}

// Get looks a preset up by name.
func (g *Gallery) Get(name string) (Preset, bool) {
	i, ok := g.byName[name]
	if !ok {
		return Preset{}, false
	}
	return g.presets[i], true
}

// Len returns the number of presets.
func (g *Gallery) Len() int { return len(g.presets) }

// BuiltinGallery returns the shipped presets.
func BuiltinGallery() *Gallery {
	g, err := newGallery([]Preset{
		{
			Name:       "Example system - sine wave",
			Coords:     []string{"x"},
			Exprs:      []string{"a*sin(x)"},
			Params:     map[string]float64{"a": 1},
			AxisLimits: [4]float64{-10, 10, -10, 10},
		},
		{
			Name:       "Linear spiral sink",
			Coords:     []string{"x", "y"},
			Exprs:      []string{"ax + by", "cx + dy"},
			Params:     map[string]float64{"a": -1, "b": 5, "c": -4, "d": -2},
			AxisLimits: [4]float64{-5, 5, -5, 5},
		},
		{
			Name:       "Van der Pol's Equation",
			Coords:     []string{"x", "y"},
			Exprs:      []string{"y", "m(1 - x^2)y - x"},
			Params:     map[string]float64{"m": 1},
			AxisLimits: [4]float64{-4, 4, -4, 4},
		},
		{
			Name:       "Damped pendulum",
			Coords:     []string{"x", "y"},
			Exprs:      []string{"y", "-by - k*sin(x)"},
			Params:     map[string]float64{"b": 0.25, "k": 1},
			AxisLimits: [4]float64{-7, 7, -4, 4},
		},
		{
			Name:       "Lotka-Volterra",
			Coords:     []string{"x", "y"},
			Exprs:      []string{"x(a - by)", "y(dx - c)"},
			Params:     map[string]float64{"a": 1.5, "b": 1, "c": 1, "d": 0.75},
			AxisLimits: [4]float64{0, 4, 0, 3},
		},
	})
	if err != nil {
		panic(err) // unreachable: shipped presets are well-formed
	}
	return g
}

type galleryFile struct {
	Preset []Preset `toml:"preset"`
}

// LoadGallery reads a TOML preset file. The expected shape is a
// [[preset]] table array with name, coords, exprs, axis_limits and a
// params table per entry.
func LoadGallery(path string) (*Gallery, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var gf galleryFile
	if err := toml.Unmarshal(raw, &gf); err != nil {
		return nil, fmt.Errorf("gallery %s: %w", path, err)
	}
	if len(gf.Preset) == 0 {
		return nil, fmt.Errorf("gallery %s: no presets", path)
	}
	return newGallery(gf.Preset)
}
