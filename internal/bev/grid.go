package bev

import "fmt"

// Grid is a dense 2D raster of class indices. Cells that no point maps
// to hold the ignore label so downstream losses can mask them out.
type Grid struct {
	Rows   int
	Cols   int
	Ignore int32
	Cells  []int32 // row-major, len == Rows*Cols
}

// NewGrid returns a rows x cols grid with every cell set to ignore.
func NewGrid(rows, cols int, ignore int32) Grid {
	g := Grid{
		Rows:   rows,
		Cols:   cols,
		Ignore: ignore,
		Cells:  make([]int32, rows*cols),
	}
	for i := range g.Cells {
		g.Cells[i] = ignore
	}
	return g
}

// At returns the class index at (row, col).
func (g Grid) At(row, col int) int32 {
	return g.Cells[row*g.Cols+col]
}

// Set writes the class index at (row, col).
func (g Grid) Set(row, col int, class int32) {
	g.Cells[row*g.Cols+col] = class
}

// Clone returns a deep copy of the grid.
func (g Grid) Clone() Grid {
	out := g
	out.Cells = make([]int32, len(g.Cells))
	copy(out.Cells, g.Cells)
	return out
}

// SameShape reports whether two grids have identical dimensions.
func (g Grid) SameShape(other Grid) bool {
	return g.Rows == other.Rows && g.Cols == other.Cols
}

// Validate checks internal consistency of the grid storage.
func (g Grid) Validate() error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return fmt.Errorf("grid dimensions must be positive, got %dx%d", g.Rows, g.Cols)
	}
	if len(g.Cells) != g.Rows*g.Cols {
		return fmt.Errorf("grid storage has %d cells, want %d", len(g.Cells), g.Rows*g.Cols)
	}
	return nil
}
