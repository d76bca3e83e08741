// Package trainer defines the contracts the external model and
// optimization loop plug into, plus the thin epoch harness that wires
// data loading, checkpointing and the run index together. The network
// architecture, loss mathematics and distributed strategy all live
// behind the Model interface.
package trainer

import (
	"context"

	"github.com/openlidar/bevtrain/internal/collate"
)

// StepMetrics are the scalars one training or validation step yields.
type StepMetrics struct {
	Loss    float64
	SemLoss float64
	BEVLoss float64
}

// Model is the external collaborator contract: it consumes collated
// batches and owns every gradient-related concern. State round-trips
// as opaque bytes so checkpoint files stay framework-agnostic here.
type Model interface {
	// Name identifies the architecture, matching config model.name.
	Name() string

	// TrainStep consumes one (possibly multi-domain) training batch.
	TrainStep(ctx context.Context, batch collate.MultiSourceBatch) (StepMetrics, error)

	// ValidationStep consumes one single-domain validation batch.
	ValidationStep(ctx context.Context, batch collate.Batch) (StepMetrics, error)

	// StateBytes serializes the model's training state.
	StateBytes() ([]byte, error)

	// LoadStateBytes restores state produced by StateBytes.
	LoadStateBytes(data []byte) error
}

func (m StepMetrics) add(o StepMetrics) StepMetrics {
	return StepMetrics{
		Loss:    m.Loss + o.Loss,
		SemLoss: m.SemLoss + o.SemLoss,
		BEVLoss: m.BEVLoss + o.BEVLoss,
	}
}

func (m StepMetrics) scale(f float64) StepMetrics {
	return StepMetrics{Loss: m.Loss * f, SemLoss: m.SemLoss * f, BEVLoss: m.BEVLoss * f}
}
