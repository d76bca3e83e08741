package trainer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/openlidar/bevtrain/internal/collate"
)

// PriorModel is a reference Model: it maintains a running class
// histogram and scores batches by the negative log-likelihood of its
// empirical prior. It exercises the full pipeline, including
// checkpoint save/restore, without any network mathematics.
type PriorModel struct {
	NumClasses int
	Ignore     int32

	counts []int64
	total  int64
}

// NewPriorModel builds a prior model for the given class count.
func NewPriorModel(numClasses int, ignore int32) (*PriorModel, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("trainer: class count must be positive, got %d", numClasses)
	}
	return &PriorModel{
		NumClasses: numClasses,
		Ignore:     ignore,
		counts:     make([]int64, numClasses),
	}, nil
}

// Name implements Model.
func (m *PriorModel) Name() string { return "ClassPrior" }

// TrainStep implements Model: updates the running histogram from
// every domain sub-batch, then scores the batch against the updated
// prior. Sub-batch losses are averaged with equal domain weight.
func (m *PriorModel) TrainStep(ctx context.Context, batch collate.MultiSourceBatch) (StepMetrics, error) {
	if err := ctx.Err(); err != nil {
		return StepMetrics{}, err
	}
	if len(batch.Batches) == 0 {
		return StepMetrics{}, fmt.Errorf("trainer: batch has no domain sub-batches")
	}
	for _, db := range batch.Batches {
		for _, l := range db.Batch.Labels {
			if l == m.Ignore {
				continue
			}
			if l < 0 || int(l) >= m.NumClasses {
				return StepMetrics{}, fmt.Errorf("trainer: label %d outside [0, %d)", l, m.NumClasses)
			}
			m.counts[l]++
			m.total++
		}
	}

	var sum StepMetrics
	for _, db := range batch.Batches {
		s, err := m.score(db.Batch)
		if err != nil {
			return StepMetrics{}, err
		}
		sum = sum.add(s)
	}
	return sum.scale(1 / float64(len(batch.Batches))), nil
}

// ValidationStep implements Model: scores without updating the prior.
func (m *PriorModel) ValidationStep(ctx context.Context, batch collate.Batch) (StepMetrics, error) {
	if err := ctx.Err(); err != nil {
		return StepMetrics{}, err
	}
	return m.score(batch)
}

// score computes the mean NLL of the current prior over the batch's
// point labels and BEV grid cells.
func (m *PriorModel) score(b collate.Batch) (StepMetrics, error) {
	sem, n := m.nll(b.Labels)
	var bevSum float64
	var bevCells int64
	for _, grids := range b.BEVLabels {
		for _, g := range grids {
			s, c := m.nll(g.Cells)
			bevSum += s * float64(c)
			bevCells += c
		}
	}
	semLoss := 0.0
	if n > 0 {
		semLoss = sem
	}
	bevLoss := 0.0
	if bevCells > 0 {
		bevLoss = bevSum / float64(bevCells)
	}
	return StepMetrics{Loss: semLoss + bevLoss, SemLoss: semLoss, BEVLoss: bevLoss}, nil
}

// nll returns the mean negative log prior probability of the labels
// and how many labels were scored. Unseen classes are smoothed with a
// single pseudo-count.
func (m *PriorModel) nll(labels []int32) (float64, int64) {
	if m.total == 0 {
		return 0, 0
	}
	var sum float64
	var n int64
	denom := float64(m.total + int64(m.NumClasses))
	for _, l := range labels {
		if l == m.Ignore || l < 0 || int(l) >= m.NumClasses {
			continue
		}
		p := (float64(m.counts[l]) + 1) / denom
		sum += -math.Log(p)
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

// priorState is the serialized form of the model.
type priorState struct {
	NumClasses int     `json:"num_classes"`
	Ignore     int32   `json:"ignore"`
	Counts     []int64 `json:"counts"`
	Total      int64   `json:"total"`
}

// StateBytes implements Model.
func (m *PriorModel) StateBytes() ([]byte, error) {
	return json.Marshal(priorState{
		NumClasses: m.NumClasses,
		Ignore:     m.Ignore,
		Counts:     m.counts,
		Total:      m.total,
	})
}

// LoadStateBytes implements Model.
func (m *PriorModel) LoadStateBytes(data []byte) error {
	var st priorState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("trainer: decoding prior state: %w", err)
	}
	if st.NumClasses != m.NumClasses {
		return fmt.Errorf("trainer: checkpoint has %d classes, model has %d", st.NumClasses, m.NumClasses)
	}
	if len(st.Counts) != st.NumClasses {
		return fmt.Errorf("trainer: checkpoint counts length %d does not match %d classes", len(st.Counts), st.NumClasses)
	}
	m.Ignore = st.Ignore
	m.counts = st.Counts
	m.total = st.Total
	return nil
}
