package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ClassStats summarizes the label distribution of a dataset.
type ClassStats struct {
	Counts []int64   // per-class point counts, len == numClasses
	Freq   []float64 // normalized frequencies, sums to 1 when any labels exist
	Total  int64     // labeled points counted (ignore label excluded)
}

// ComputeClassStats scans every sample's point labels. Points carrying
// the ignore label are excluded. Labels outside [0, numClasses) are a
// dataset defect and surface as an error.
func ComputeClassStats(p Provider, numClasses int, ignore int32) (ClassStats, error) {
	if numClasses <= 0 {
		return ClassStats{}, fmt.Errorf("dataset: class count must be positive, got %d", numClasses)
	}
	s := ClassStats{
		Counts: make([]int64, numClasses),
		Freq:   make([]float64, numClasses),
	}
	for i := 0; i < p.Len(); i++ {
		smp, err := p.Sample(i)
		if err != nil {
			return ClassStats{}, err
		}
		for _, l := range smp.Labels {
			if l == ignore {
				continue
			}
			if l < 0 || int(l) >= numClasses {
				return ClassStats{}, fmt.Errorf("dataset %s: sample %d has label %d outside [0, %d)",
					p.Name(), i, l, numClasses)
			}
			s.Counts[l]++
			s.Total++
		}
	}
	if s.Total > 0 {
		for c, n := range s.Counts {
			s.Freq[c] = float64(n)
		}
		floats.Scale(1/float64(s.Total), s.Freq)
	}
	return s, nil
}

// Weights returns inverse-frequency class weights, rescaled so their
// mean is 1. Classes never observed get weight 0 so they cannot
// dominate the loss.
func (s ClassStats) Weights() []float64 {
	w := make([]float64, len(s.Freq))
	present := 0
	for c, f := range s.Freq {
		if f > 0 {
			w[c] = 1 / f
			present++
		}
	}
	if present == 0 {
		return w
	}
	mean := floats.Sum(w) / float64(present)
	floats.Scale(1/mean, w)
	return w
}

// Entropy returns the Shannon entropy of the class distribution in
// nats, a quick diagnostic for how balanced a domain's labels are.
func (s ClassStats) Entropy() float64 {
	if s.Total == 0 {
		return 0
	}
	return stat.Entropy(s.Freq)
}
