package bev

import "fmt"

// Level describes one decoder resolution level: its name, the side
// length of its square label grid, and the scaling factor applied to
// its auxiliary loss downstream.
type Level struct {
	Name  string
	Size  int
	Scale float64
}

// Levels zips parallel per-level configuration slices into Level
// values. Scaling factors are optional; when absent every level gets a
// factor of 1.0.
func Levels(names []string, sizes []int, scales []float64) ([]Level, error) {
	if len(names) != len(sizes) {
		return nil, fmt.Errorf("got %d level names but %d grid sizes", len(names), len(sizes))
	}
	if len(scales) != 0 && len(scales) != len(names) {
		return nil, fmt.Errorf("got %d level names but %d scaling factors", len(names), len(scales))
	}
	levels := make([]Level, len(names))
	for i, name := range names {
		scale := 1.0
		if len(scales) != 0 {
			scale = scales[i]
		}
		if sizes[i] <= 0 {
			return nil, fmt.Errorf("level %q grid size must be positive, got %d", name, sizes[i])
		}
		levels[i] = Level{Name: name, Size: sizes[i], Scale: scale}
	}
	return levels, nil
}
