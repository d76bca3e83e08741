// Package augment provides composable geometric augmentations applied
// to raw point clouds before voxelization. Each transform draws its
// random parameters once, so the same draw can later be replayed on a
// BEV grid to keep both views geometrically consistent.
package augment

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/openlidar/bevtrain/internal/bev"
)

// Params is one transform's drawn parameters. Which fields matter
// depends on the transform that drew them.
type Params struct {
	Angle float64 // radians, around the vertical axis
	Scale float64
	FlipX bool
	FlipY bool
	Seed  int64 // for transforms that draw per-point noise
}

// Transform is one augmentation step. Points and Grid must agree: for
// a given Params draw, projecting transformed points must match
// transforming the projection of the original points (up to raster
// resolution).
type Transform interface {
	Name() string
	Draw(rng *rand.Rand) Params
	Points(pts [][3]float64, p Params) [][3]float64
	Grid(g bev.Grid, p Params) bev.Grid
}

// Compose applies several transforms in order, collecting the drawn
// parameters so the same sequence can be replayed on BEV grids.
type Compose struct {
	Transforms []Transform
}

// Apply runs every transform on the points, returning the transformed
// cloud and the per-transform parameter draws in application order.
func (c Compose) Apply(pts [][3]float64, rng *rand.Rand) ([][3]float64, []Params) {
	drawn := make([]Params, len(c.Transforms))
	for i, t := range c.Transforms {
		p := t.Draw(rng)
		drawn[i] = p
		pts = t.Points(pts, p)
	}
	return pts, drawn
}

// ApplyGrid replays previously drawn parameters on a BEV grid.
func (c Compose) ApplyGrid(g bev.Grid, drawn []Params) (bev.Grid, error) {
	if len(drawn) != len(c.Transforms) {
		return bev.Grid{}, fmt.Errorf("augment: %d parameter draws for %d transforms", len(drawn), len(c.Transforms))
	}
	for i, t := range c.Transforms {
		g = t.Grid(g, drawn[i])
	}
	return g, nil
}

// Empty reports whether the composition has no transforms.
func (c Compose) Empty() bool { return len(c.Transforms) == 0 }

// FromNames builds a composition from configuration names. Unknown
// names are an error, surfaced at startup rather than mid-epoch.
func FromNames(names []string) (Compose, error) {
	var c Compose
	for _, name := range names {
		switch name {
		case "rotate":
			c.Transforms = append(c.Transforms, RandomRotate{MaxAngle: math.Pi})
		case "flip":
			c.Transforms = append(c.Transforms, RandomFlip{P: 0.5})
		case "scale":
			c.Transforms = append(c.Transforms, RandomScale{Min: 0.95, Max: 1.05})
		case "jitter":
			c.Transforms = append(c.Transforms, Jitter{Sigma: 0.01})
		default:
			return Compose{}, fmt.Errorf("augment: unknown transform %q", name)
		}
	}
	return c, nil
}

// RandomRotate rotates the cloud around the vertical axis by a
// uniform angle in [-MaxAngle, MaxAngle].
type RandomRotate struct {
	MaxAngle float64
}

// Name implements Transform.
func (RandomRotate) Name() string { return "rotate" }

// Draw implements Transform.
func (t RandomRotate) Draw(rng *rand.Rand) Params {
	return Params{Angle: (rng.Float64()*2 - 1) * t.MaxAngle, Scale: 1}
}

// Points implements Transform.
func (RandomRotate) Points(pts [][3]float64, p Params) [][3]float64 {
	sin, cos := math.Sin(p.Angle), math.Cos(p.Angle)
	out := make([][3]float64, len(pts))
	for i, pt := range pts {
		out[i] = [3]float64{
			pt[0]*cos - pt[1]*sin,
			pt[0]*sin + pt[1]*cos,
			pt[2],
		}
	}
	return out
}

// Grid implements Transform. The grid is rotated about its center by
// inverse nearest-neighbor sampling; cells that map outside the
// source raster take the ignore label.
func (RandomRotate) Grid(g bev.Grid, p Params) bev.Grid {
	out := bev.NewGrid(g.Rows, g.Cols, g.Ignore)
	sin, cos := math.Sin(p.Angle), math.Cos(p.Angle)
	cr, cc := float64(g.Rows-1)/2, float64(g.Cols-1)/2
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			// Inverse rotation back into the source grid. Columns are
			// the X axis and rows the Y axis, matching the projector.
			dy, dx := float64(r)-cr, float64(c)-cc
			sx := dx*cos + dy*sin
			sy := -dx*sin + dy*cos
			sr := int(math.Round(sy + cr))
			sc := int(math.Round(sx + cc))
			if sr < 0 || sr >= g.Rows || sc < 0 || sc >= g.Cols {
				continue
			}
			out.Set(r, c, g.At(sr, sc))
		}
	}
	return out
}

// RandomFlip mirrors the cloud across the X and/or Y axis, each with
// probability P.
type RandomFlip struct {
	P float64
}

// Name implements Transform.
func (RandomFlip) Name() string { return "flip" }

// Draw implements Transform.
func (t RandomFlip) Draw(rng *rand.Rand) Params {
	return Params{FlipX: rng.Float64() < t.P, FlipY: rng.Float64() < t.P, Scale: 1}
}

// Points implements Transform.
func (RandomFlip) Points(pts [][3]float64, p Params) [][3]float64 {
	out := make([][3]float64, len(pts))
	for i, pt := range pts {
		if p.FlipX {
			pt[0] = -pt[0]
		}
		if p.FlipY {
			pt[1] = -pt[1]
		}
		out[i] = pt
	}
	return out
}

// Grid implements Transform. Negating world X mirrors columns;
// negating world Y mirrors rows.
func (RandomFlip) Grid(g bev.Grid, p Params) bev.Grid {
	out := g.Clone()
	if p.FlipX {
		for r := 0; r < out.Rows; r++ {
			for c := 0; c < out.Cols/2; c++ {
				oc := out.Cols - 1 - c
				a, b := out.At(r, c), out.At(r, oc)
				out.Set(r, c, b)
				out.Set(r, oc, a)
			}
		}
	}
	if p.FlipY {
		for r := 0; r < out.Rows/2; r++ {
			or := out.Rows - 1 - r
			for c := 0; c < out.Cols; c++ {
				a, b := out.At(r, c), out.At(or, c)
				out.Set(r, c, b)
				out.Set(or, c, a)
			}
		}
	}
	return out
}

// RandomScale scales the cloud uniformly by a factor drawn from
// [Min, Max].
type RandomScale struct {
	Min, Max float64
}

// Name implements Transform.
func (RandomScale) Name() string { return "scale" }

// Draw implements Transform.
func (t RandomScale) Draw(rng *rand.Rand) Params {
	return Params{Scale: t.Min + rng.Float64()*(t.Max-t.Min)}
}

// Points implements Transform.
func (RandomScale) Points(pts [][3]float64, p Params) [][3]float64 {
	out := make([][3]float64, len(pts))
	for i, pt := range pts {
		out[i] = [3]float64{pt[0] * p.Scale, pt[1] * p.Scale, pt[2] * p.Scale}
	}
	return out
}

// Grid implements Transform. Scaling about the grid center by inverse
// nearest-neighbor sampling.
func (RandomScale) Grid(g bev.Grid, p Params) bev.Grid {
	if p.Scale == 1 {
		return g
	}
	out := bev.NewGrid(g.Rows, g.Cols, g.Ignore)
	cr, cc := float64(g.Rows-1)/2, float64(g.Cols-1)/2
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			sr := int(math.Round((float64(r)-cr)/p.Scale + cr))
			sc := int(math.Round((float64(c)-cc)/p.Scale + cc))
			if sr < 0 || sr >= g.Rows || sc < 0 || sc >= g.Cols {
				continue
			}
			out.Set(r, c, g.At(sr, sc))
		}
	}
	return out
}

// Jitter adds independent gaussian noise to every coordinate. The
// noise is sub-cell at BEV resolution, so grids pass through
// unchanged.
type Jitter struct {
	Sigma float64
}

// Name implements Transform.
func (Jitter) Name() string { return "jitter" }

// Draw implements Transform. The per-point noise stream is pinned by
// a seed drawn here, so a replay with the same Params reproduces it.
func (Jitter) Draw(rng *rand.Rand) Params {
	return Params{Scale: 1, Seed: rng.Int63()}
}

// Points implements Transform.
func (t Jitter) Points(pts [][3]float64, p Params) [][3]float64 {
	rng := rand.New(rand.NewSource(p.Seed))
	out := make([][3]float64, len(pts))
	for i, pt := range pts {
		out[i] = [3]float64{
			pt[0] + rng.NormFloat64()*t.Sigma,
			pt[1] + rng.NormFloat64()*t.Sigma,
			pt[2] + rng.NormFloat64()*t.Sigma,
		}
	}
	return out
}

// Grid implements Transform.
func (Jitter) Grid(g bev.Grid, p Params) bev.Grid { return g }
