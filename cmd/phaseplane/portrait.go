package main

import (
	"fmt"
	"image/color"
	"math"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"phaseplane"
)

var portraitCmd = &cobra.Command{
	Use:   "portrait [preset]",
	Short: "Render a phase portrait PNG: direction field, nullclines, trajectories, fixed points",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPortrait,
}

func init() {
	addSystemFlags(portraitCmd)
	portraitCmd.Flags().String("out", "portrait.png", "output PNG file")
	portraitCmd.Flags().String("xlim", "", "x axis range min,max (default from preset, else -5,5)")
	portraitCmd.Flags().String("ylim", "", "y axis range min,max")
	portraitCmd.Flags().Int("grid", 21, "direction-field samples per axis")
	portraitCmd.Flags().StringArray("traj", nil, "trajectory start x,y (repeatable)")
	portraitCmd.Flags().Float64("time", 10, "trajectory time limit in each direction")
	portraitCmd.Flags().Bool("nullclines", true, "draw the dx/dt=0 and dy/dt=0 curves")
	rootCmd.AddCommand(portraitCmd)
}

func runPortrait(cmd *cobra.Command, args []string) error {
	sys, preset, err := resolveSystem(cmd, args)
	if err != nil {
		return err
	}
	if sys.Dim() != 2 {
		return fmt.Errorf("portrait needs a two-dimensional system, got %dD", sys.Dim())
	}

	xmin, xmax, ymin, ymax := -5.0, 5.0, -5.0, 5.0
	if preset != nil {
		xmin, xmax = preset.AxisLimits[0], preset.AxisLimits[1]
		ymin, ymax = preset.AxisLimits[2], preset.AxisLimits[3]
	}
	if s, _ := cmd.Flags().GetString("xlim"); s != "" {
		r, err := parsePoint(s, 2)
		if err != nil {
			return err
		}
		xmin, xmax = r[0], r[1]
	}
	if s, _ := cmd.Flags().GetString("ylim"); s != "" {
		r, err := parsePoint(s, 2)
		if err != nil {
			return err
		}
		ymin, ymax = r[0], r[1]
	}

	p := plot.New()
	coords := sys.Coords()
	if preset != nil {
		p.Title.Text = preset.Name
	}
	p.X.Label.Text = coords[0]
	p.Y.Label.Text = coords[1]
	p.X.Min, p.X.Max = xmin, xmax
	p.Y.Min, p.Y.Max = ymin, ymax

	n, _ := cmd.Flags().GetInt("grid")
	if n < 2 {
		n = 2
	}
	grid, err := sampleField(sys, xmin, xmax, ymin, ymax, n)
	if err != nil {
		return err
	}
	field := plotter.NewField(grid)
	field.LineStyle.Color = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	p.Add(field)

	if showNullclines, _ := cmd.Flags().GetBool("nullclines"); showNullclines {
		// A denser grid keeps the zero contours smooth.
		fine, err := sampleField(sys, xmin, xmax, ymin, ymax, 4*n)
		if err != nil {
			return err
		}
		addNullcline(p, componentGrid{fine, 0}, color.RGBA{R: 0xd0, G: 0x40, B: 0x40, A: 0xff})
		addNullcline(p, componentGrid{fine, 1}, color.RGBA{R: 0x40, G: 0x60, B: 0xd0, A: 0xff})
	}

	starts, _ := cmd.Flags().GetStringArray("traj")
	limit, _ := cmd.Flags().GetFloat64("time")
	for _, s := range starts {
		start, err := parsePoint(s, 2)
		if err != nil {
			return err
		}
		tr := phaseplane.ComputeTrajectory(sys, start, limit, limit)
		for _, arc := range []*phaseplane.Solution{tr.Forward, tr.Backward} {
			if len(arc.Y) < 2 {
				continue
			}
			pts := make(plotter.XYs, len(arc.Y))
			for k, y := range arc.Y {
				pts[k].X, pts[k].Y = y[0], y[1]
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return err
			}
			line.LineStyle.Width = vg.Points(1.2)
			line.LineStyle.Color = color.RGBA{R: 0x20, G: 0x90, B: 0x50, A: 0xff}
			p.Add(line)
		}
	}

	if pts, err := sys.CalcFixedPoints(); err == nil && len(pts) > 0 {
		xys := make(plotter.XYs, len(pts))
		for i, pt := range pts {
			xys[i].X, xys[i].Y = pt[0], pt[1]
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		scatter.GlyphStyle.Radius = vg.Points(4)
		scatter.GlyphStyle.Color = color.RGBA{A: 0xff}
		p.Add(scatter)
	}

	out, _ := cmd.Flags().GetString("out")
	if err := p.Save(6*vg.Inch, 6*vg.Inch, out); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", out)
	return nil
}

// fieldGrid holds the velocity field sampled over a regular mesh. It
// serves the quiver plot as a plotter.FieldXY and, per component, the
// nullcline contours as a plotter.GridXYZ.
type fieldGrid struct {
	xs, ys []float64
	u, v   [][]float64 // [row][col]
}

func sampleField(sys *phaseplane.System, xmin, xmax, ymin, ymax float64, n int) (*fieldGrid, error) {
	g := &fieldGrid{
		xs: linspace(xmin, xmax, n),
		ys: linspace(ymin, ymax, n),
	}
	mesh := [][]float64{make([]float64, n*n), make([]float64, n*n)}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			mesh[0][r*n+c] = g.xs[c]
			mesh[1][r*n+c] = g.ys[r]
		}
	}
	vel, err := sys.EvalGrid(0, mesh)
	if err != nil {
		return nil, err
	}
	g.u = make([][]float64, n)
	g.v = make([][]float64, n)
	for r := 0; r < n; r++ {
		g.u[r] = vel[0][r*n : (r+1)*n]
		g.v[r] = vel[1][r*n : (r+1)*n]
	}
	return g, nil
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

func (g *fieldGrid) Dims() (c, r int) { return len(g.xs), len(g.ys) }
func (g *fieldGrid) X(c int) float64  { return g.xs[c] }
func (g *fieldGrid) Y(r int) float64  { return g.ys[r] }

// Vector returns the unit direction at a mesh node; magnitude carries
// no extra information on a direction field and hides structure near
// fixed points.
func (g *fieldGrid) Vector(c, r int) plotter.XY {
	u, v := g.u[r][c], g.v[r][c]
	norm := math.Hypot(u, v)
	if norm == 0 || math.IsNaN(norm) {
		return plotter.XY{}
	}
	return plotter.XY{X: u / norm, Y: v / norm}
}

// componentGrid adapts one velocity component to plotter.GridXYZ.
type componentGrid struct {
	g    *fieldGrid
	comp int
}

func (cg componentGrid) Dims() (c, r int) { return cg.g.Dims() }
func (cg componentGrid) X(c int) float64  { return cg.g.X(c) }
func (cg componentGrid) Y(r int) float64  { return cg.g.Y(r) }
func (cg componentGrid) Z(c, r int) float64 {
	if cg.comp == 0 {
		return cg.g.u[r][c]
	}
	return cg.g.v[r][c]
}

// soloPalette satisfies palette.Palette with a single color, so a
// contour at level zero renders as one solid curve.
type soloPalette struct{ c color.Color }

func (p soloPalette) Colors() []color.Color { return []color.Color{p.c} }

func addNullcline(p *plot.Plot, g componentGrid, c color.Color) {
	contour := plotter.NewContour(g, []float64{0}, soloPalette{c})
	contour.LineStyles[0].Width = vg.Points(1)
	p.Add(contour)
}
