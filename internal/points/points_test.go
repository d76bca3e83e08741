package points

import (
	"math/rand"
	"testing"

	"github.com/openlidar/bevtrain/internal/bev"
)

func TestSampleValidate(t *testing.T) {
	good := Sample{
		Coords:    []Coord{{0, 0, 0}, {1, 1, 1}},
		Feats:     [][]float32{{1}, {1}},
		Labels:    []int32{0, 1},
		BEVLabels: map[string]bev.Grid{"full": bev.NewGrid(2, 2, -1)},
	}
	if err := good.Validate(); err != nil {
		t.Errorf("valid sample failed validation: %v", err)
	}
	if good.NumPoints() != 2 {
		t.Errorf("NumPoints = %d, want 2", good.NumPoints())
	}

	if err := (Sample{}).Validate(); err == nil {
		t.Error("empty sample should fail validation")
	}

	misaligned := Sample{
		Coords: []Coord{{0, 0, 0}, {1, 1, 1}},
		Feats:  [][]float32{{1}},
		Labels: []int32{0, 1},
	}
	if err := misaligned.Validate(); err == nil {
		t.Error("misaligned sample should fail validation")
	}
}

func TestVoxelize(t *testing.T) {
	pts := [][3]float64{
		{0.04, 0.05, 0.09},
		{-0.01, -0.05, -0.051},
		{1.0, 2.5, -3.2},
	}
	coords, err := Voxelize(pts, 0.05)
	if err != nil {
		t.Fatalf("Voxelize failed: %v", err)
	}
	want := []Coord{
		{0, 1, 1},
		{-1, -1, -2}, // floor quantization, not truncation
		{20, 50, -64},
	}
	for i := range want {
		if coords[i] != want[i] {
			t.Errorf("coord %d = %+v, want %+v", i, coords[i], want[i])
		}
	}
}

func TestVoxelizeRejectsBadSize(t *testing.T) {
	if _, err := Voxelize(nil, 0); err == nil {
		t.Error("zero voxel size should fail")
	}
	if _, err := Voxelize(nil, -0.05); err == nil {
		t.Error("negative voxel size should fail")
	}
}

func TestSubsampleIndicesKeepsAll(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, p := range []float64{0, 1, 1.5, -0.2} {
		idx := SubsampleIndices(10, p, rng)
		if len(idx) != 10 {
			t.Errorf("p=%v should keep all 10 indices, got %d", p, len(idx))
		}
		for i, v := range idx {
			if v != i {
				t.Fatalf("p=%v index %d = %d, want identity", p, i, v)
			}
		}
	}
}

func TestSubsampleIndicesDeterministic(t *testing.T) {
	a := SubsampleIndices(1000, 0.3, rand.New(rand.NewSource(42)))
	b := SubsampleIndices(1000, 0.3, rand.New(rand.NewSource(42)))
	if len(a) != len(b) {
		t.Fatalf("same seed gave %d vs %d indices", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at index %d", i)
		}
	}
	// Roughly p of n survives; allow generous slack.
	if len(a) < 200 || len(a) > 400 {
		t.Errorf("kept %d of 1000 at p=0.3, expected around 300", len(a))
	}
	for i := 1; i < len(a); i++ {
		if a[i] <= a[i-1] {
			t.Fatal("indices should be strictly increasing")
		}
	}
}

func TestSubsampleIndicesNeverEmpty(t *testing.T) {
	// Tiny p over few points can reject everything; one survivor is
	// still guaranteed.
	for seed := int64(0); seed < 20; seed++ {
		idx := SubsampleIndices(3, 1e-9, rand.New(rand.NewSource(seed)))
		if len(idx) == 0 {
			t.Fatalf("seed %d produced an empty selection", seed)
		}
	}
	if idx := SubsampleIndices(0, 0.5, rand.New(rand.NewSource(1))); idx != nil {
		t.Errorf("zero points should give nil, got %v", idx)
	}
}
