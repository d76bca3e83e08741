// Package points owns sparse point-cloud sample types: voxel
// coordinates, per-point features and labels, and the per-level BEV
// label grids attached to each sample.
package points

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/openlidar/bevtrain/internal/bev"
)

// Coord is a quantized voxel coordinate.
type Coord struct {
	X, Y, Z int32
}

// Sample is one point-cloud observation: an unordered set of voxel
// coordinates with aligned features and semantic labels, plus one BEV
// label grid per decoder level. Samples are immutable once produced by
// a dataset.
type Sample struct {
	Coords    []Coord
	Feats     [][]float32
	Labels    []int32
	BEVLabels map[string]bev.Grid
}

// Tagged pairs a sample with the name of the source domain that
// produced it, for multi-source training.
type Tagged struct {
	Domain string
	Sample Sample
}

// Validate checks the per-point alignment invariant and that the
// sample carries at least one point.
func (s Sample) Validate() error {
	if len(s.Coords) == 0 {
		return fmt.Errorf("sample has no points")
	}
	if len(s.Feats) != len(s.Coords) || len(s.Labels) != len(s.Coords) {
		return fmt.Errorf("sample misaligned: %d coords, %d feats, %d labels",
			len(s.Coords), len(s.Feats), len(s.Labels))
	}
	return nil
}

// NumPoints returns the number of points in the sample.
func (s Sample) NumPoints() int { return len(s.Coords) }

// Voxelize quantizes raw metric points onto an integer voxel lattice
// by flooring each coordinate divided by the voxel size.
func Voxelize(pts [][3]float64, voxelSize float64) ([]Coord, error) {
	if voxelSize <= 0 {
		return nil, fmt.Errorf("voxel size must be positive, got %f", voxelSize)
	}
	coords := make([]Coord, len(pts))
	for i, p := range pts {
		coords[i] = Coord{
			X: int32(math.Floor(p[0] / voxelSize)),
			Y: int32(math.Floor(p[1] / voxelSize)),
			Z: int32(math.Floor(p[2] / voxelSize)),
		}
	}
	return coords, nil
}

// SubsampleIndices returns a sorted selection of point indices keeping
// roughly fraction p of n points. p outside (0, 1) keeps everything.
// The draw is deterministic for a given rng state. At least one index
// is always kept so samples never become empty.
func SubsampleIndices(n int, p float64, rng *rand.Rand) []int {
	if n == 0 {
		return nil
	}
	if p <= 0 || p >= 1 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	keep := make([]int, 0, int(float64(n)*p)+1)
	for i := 0; i < n; i++ {
		if rng.Float64() < p {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		keep = append(keep, rng.Intn(n))
	}
	return keep
}
