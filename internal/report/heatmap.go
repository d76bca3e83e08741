package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/openlidar/bevtrain/internal/bev"
)

// gridXYZ adapts a BEV label grid to gonum/plot's heatmap input.
// Ignore cells render below every class so they read as background.
type gridXYZ struct {
	g bev.Grid
}

func (d gridXYZ) Dims() (int, int) { return d.g.Cols, d.g.Rows }
func (d gridXYZ) X(c int) float64  { return float64(c) }
func (d gridXYZ) Y(r int) float64  { return float64(r) }

func (d gridXYZ) Z(c, r int) float64 {
	v := d.g.At(r, c)
	if v == d.g.Ignore {
		return -1
	}
	return float64(v)
}

// GridHeatmap renders a BEV label grid to a PNG file.
func GridHeatmap(g bev.Grid, title, path string) error {
	if err := g.Validate(); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "col"
	p.Y.Label.Text = "row"

	hm := plotter.NewHeatMap(gridXYZ{g: g}, palette.Heat(16, 1))
	p.Add(hm)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("report: saving heatmap %s: %w", path, err)
	}
	return nil
}
