package collate

import (
	"sort"

	"github.com/openlidar/bevtrain/internal/bev"
	"github.com/openlidar/bevtrain/internal/points"
)

// BCoord is a voxel coordinate tagged with the index of the sample it
// came from within the batch.
type BCoord struct {
	B       int32
	X, Y, Z int32
}

// Batch is N samples merged into sparse-tensor form.
//
// Invariants: len(Coords) == len(Feats) == len(Labels); the B field is
// monotonically non-decreasing across Coords and spans exactly
// 0..NumSamples-1; each level in BEVLabels holds exactly NumSamples
// grids in sample order, all with identical shape.
type Batch struct {
	Coords     []BCoord
	Feats      [][]float32
	Labels     []int32
	BEVLabels  map[string][]bev.Grid
	NumSamples int
}

// NumPoints returns the total number of concatenated coordinate rows.
func (b Batch) NumPoints() int { return len(b.Coords) }

// Single merges samples into one Batch. Sample i's coordinates are
// each tagged with batch index i; concatenation preserves input order
// both across samples and within each sample. Per-level BEV grids are
// stacked in sample order.
func Single(samples []points.Sample) (Batch, error) {
	if len(samples) == 0 {
		return Batch{}, ErrEmptyBatch
	}

	levels := levelNames(samples[0])
	total := 0
	for i, s := range samples {
		if err := s.Validate(); err != nil {
			return Batch{}, err
		}
		if err := checkLevels(s, i, samples[0], levels); err != nil {
			return Batch{}, err
		}
		total += s.NumPoints()
	}

	out := Batch{
		Coords:     make([]BCoord, 0, total),
		Feats:      make([][]float32, 0, total),
		Labels:     make([]int32, 0, total),
		BEVLabels:  make(map[string][]bev.Grid, len(levels)),
		NumSamples: len(samples),
	}
	for _, name := range levels {
		out.BEVLabels[name] = make([]bev.Grid, 0, len(samples))
	}

	for i, s := range samples {
		for _, c := range s.Coords {
			out.Coords = append(out.Coords, BCoord{B: int32(i), X: c.X, Y: c.Y, Z: c.Z})
		}
		out.Feats = append(out.Feats, s.Feats...)
		out.Labels = append(out.Labels, s.Labels...)
		for _, name := range levels {
			out.BEVLabels[name] = append(out.BEVLabels[name], s.BEVLabels[name])
		}
	}
	return out, nil
}

// DomainBatch is one per-domain sub-batch of a multi-source batch.
// Every coordinate row in Batch belongs to Domain.
type DomainBatch struct {
	Domain string
	Batch  Batch
}

// MultiSourceBatch holds one Batch per source domain, in first-seen
// domain order, plus the cross-domain sample count used for loss
// normalization downstream.
type MultiSourceBatch struct {
	Batches      []DomainBatch
	TotalSamples int
}

// Domains returns the domain names in sub-batch order.
func (m MultiSourceBatch) Domains() []string {
	names := make([]string, len(m.Batches))
	for i, db := range m.Batches {
		names[i] = db.Domain
	}
	return names
}

// MultiSource groups tagged samples by domain, preserving relative
// order within each domain, and collates each group independently.
// Sub-batches appear in order of first occurrence of their domain.
// Any domain count is handled here; the two-source cap lives in the
// orchestration layer.
func MultiSource(tagged []points.Tagged) (MultiSourceBatch, error) {
	if len(tagged) == 0 {
		return MultiSourceBatch{}, ErrEmptyBatch
	}

	var order []string
	groups := make(map[string][]points.Sample)
	for _, t := range tagged {
		if _, seen := groups[t.Domain]; !seen {
			order = append(order, t.Domain)
		}
		groups[t.Domain] = append(groups[t.Domain], t.Sample)
	}

	out := MultiSourceBatch{
		Batches:      make([]DomainBatch, 0, len(order)),
		TotalSamples: len(tagged),
	}
	for _, domain := range order {
		b, err := Single(groups[domain])
		if err != nil {
			return MultiSourceBatch{}, err
		}
		out.Batches = append(out.Batches, DomainBatch{Domain: domain, Batch: b})
	}
	return out, nil
}

func levelNames(s points.Sample) []string {
	names := make([]string, 0, len(s.BEVLabels))
	for name := range s.BEVLabels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkLevels(s points.Sample, idx int, first points.Sample, want []string) error {
	got := levelNames(s)
	if len(got) != len(want) {
		return &LevelMismatchError{SampleIndex: idx, Want: want, Got: got}
	}
	for i, name := range want {
		if got[i] != name {
			return &LevelMismatchError{SampleIndex: idx, Want: want, Got: got}
		}
		ref, g := first.BEVLabels[name], s.BEVLabels[name]
		if !g.SameShape(ref) {
			return &ShapeMismatchError{
				Level:       name,
				SampleIndex: idx,
				WantRows:    ref.Rows, WantCols: ref.Cols,
				GotRows: g.Rows, GotCols: g.Cols,
			}
		}
	}
	return nil
}
