package dataset

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/openlidar/bevtrain/internal/points"
)

// Subset is a view over a subset of a Provider's indices.
type Subset struct {
	parent  Provider
	indices []int
	suffix  string
}

// Name implements Provider.
func (s *Subset) Name() string { return s.parent.Name() + s.suffix }

// Len implements Provider.
func (s *Subset) Len() int { return len(s.indices) }

// Sample implements Provider.
func (s *Subset) Sample(i int) (points.Sample, error) {
	if i < 0 || i >= len(s.indices) {
		return points.Sample{}, fmt.Errorf("dataset %s: index %d out of range [0, %d)", s.Name(), i, len(s.indices))
	}
	return s.parent.Sample(s.indices[i])
}

// Split partitions a provider into disjoint train and validation
// views. The partition is a seeded shuffle, so the same (provider
// length, seed, fraction) triple always yields the same split. The
// training view is never left empty.
func Split(p Provider, valFraction float64, seed int64) (train, val Provider, err error) {
	n := p.Len()
	if n == 0 {
		return nil, nil, fmt.Errorf("dataset %s: cannot split empty dataset", p.Name())
	}
	if valFraction < 0 || valFraction >= 1 {
		return nil, nil, fmt.Errorf("dataset %s: val fraction must be in [0, 1), got %f", p.Name(), valFraction)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nVal := int(float64(n) * valFraction)
	if nVal >= n {
		nVal = n - 1
	}

	valIdx := append([]int(nil), perm[:nVal]...)
	trainIdx := append([]int(nil), perm[nVal:]...)
	sort.Ints(valIdx)
	sort.Ints(trainIdx)

	return &Subset{parent: p, indices: trainIdx, suffix: "/train"},
		&Subset{parent: p, indices: valIdx, suffix: "/val"},
		nil
}
