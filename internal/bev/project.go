package bev

import "fmt"

// Project rasterizes labeled points into a level's top-down grid.
//
// Points are world-frame XY positions in meters. The grid covers the
// square [-bound, +bound] on both axes; points outside are dropped.
// When several points land in the same cell the last one in input
// order wins, matching a simple rasterizing projector. Cells no point
// reaches keep the ignore label.
func Project(xs, ys []float64, labels []int32, level Level, bound float64, ignore int32) (Grid, error) {
	if len(xs) != len(ys) || len(xs) != len(labels) {
		return Grid{}, fmt.Errorf("projection input misaligned: %d xs, %d ys, %d labels", len(xs), len(ys), len(labels))
	}
	if bound <= 0 {
		return Grid{}, fmt.Errorf("projection bound must be positive, got %f", bound)
	}

	g := NewGrid(level.Size, level.Size, ignore)
	cell := 2 * bound / float64(level.Size)
	for i := range xs {
		x, y := xs[i], ys[i]
		if x < -bound || x >= bound || y < -bound || y >= bound {
			continue
		}
		row := int((y + bound) / cell)
		col := int((x + bound) / cell)
		g.Set(row, col, labels[i])
	}
	return g, nil
}
