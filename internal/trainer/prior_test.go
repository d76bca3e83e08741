package trainer

import (
	"context"
	"testing"

	"github.com/openlidar/bevtrain/internal/bev"
	"github.com/openlidar/bevtrain/internal/collate"
	"github.com/openlidar/bevtrain/internal/points"
)

func priorBatch(t *testing.T, labels ...int32) collate.MultiSourceBatch {
	t.Helper()
	s := points.Sample{
		Coords: make([]points.Coord, len(labels)),
		Feats:  make([][]float32, len(labels)),
		Labels: labels,
		BEVLabels: map[string]bev.Grid{
			"full": bev.NewGrid(2, 2, -1),
		},
	}
	for i := range labels {
		s.Feats[i] = []float32{1}
	}
	msb, err := collate.MultiSource([]points.Tagged{{Domain: "kitti", Sample: s}})
	if err != nil {
		t.Fatal(err)
	}
	return msb
}

func TestNewPriorModel(t *testing.T) {
	if _, err := NewPriorModel(0, -1); err == nil {
		t.Error("zero classes should fail")
	}
	m, err := NewPriorModel(3, -1)
	if err != nil {
		t.Fatalf("NewPriorModel failed: %v", err)
	}
	if m.Name() != "ClassPrior" {
		t.Errorf("name %q, want ClassPrior", m.Name())
	}
}

func TestPriorModelTrainStep(t *testing.T) {
	m, err := NewPriorModel(3, -1)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	metrics, err := m.TrainStep(ctx, priorBatch(t, 0, 0, 1, -1))
	if err != nil {
		t.Fatalf("TrainStep failed: %v", err)
	}
	if metrics.Loss <= 0 {
		t.Errorf("loss %f, want positive NLL", metrics.Loss)
	}
	if metrics.SemLoss <= 0 {
		t.Errorf("sem loss %f, want positive", metrics.SemLoss)
	}
	// The test grids are all ignore cells, so the BEV term is zero.
	if metrics.BEVLoss != 0 {
		t.Errorf("bev loss %f, want 0 for all-ignore grids", metrics.BEVLoss)
	}

	// A skewed prior scores its dominant class cheaper.
	for i := 0; i < 20; i++ {
		if _, err := m.TrainStep(ctx, priorBatch(t, 0, 0, 0, 0)); err != nil {
			t.Fatal(err)
		}
	}
	common, err := m.ValidationStep(ctx, singleBatch(t, 0))
	if err != nil {
		t.Fatal(err)
	}
	rare, err := m.ValidationStep(ctx, singleBatch(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	if common.Loss >= rare.Loss {
		t.Errorf("dominant class loss %f should undercut rare class loss %f", common.Loss, rare.Loss)
	}
}

func singleBatch(t *testing.T, labels ...int32) collate.Batch {
	t.Helper()
	return priorBatch(t, labels...).Batches[0].Batch
}

func TestPriorModelRejectsBadLabels(t *testing.T) {
	m, err := NewPriorModel(3, -1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.TrainStep(context.Background(), priorBatch(t, 7)); err == nil {
		t.Error("out-of-range label should fail")
	}
	if _, err := m.TrainStep(context.Background(), collate.MultiSourceBatch{}); err == nil {
		t.Error("batch without sub-batches should fail")
	}
}

func TestPriorModelValidationDoesNotLearn(t *testing.T) {
	m, err := NewPriorModel(3, -1)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := m.TrainStep(ctx, priorBatch(t, 0, 1, 2)); err != nil {
		t.Fatal(err)
	}

	before, err := m.StateBytes()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ValidationStep(ctx, singleBatch(t, 0, 0, 0)); err != nil {
		t.Fatal(err)
	}
	after, err := m.StateBytes()
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("validation must not update the prior")
	}
}

func TestPriorModelStateRoundTrip(t *testing.T) {
	m, err := NewPriorModel(3, -1)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := m.TrainStep(ctx, priorBatch(t, 0, 1, 1, 2)); err != nil {
		t.Fatal(err)
	}
	wantLoss, err := m.ValidationStep(ctx, singleBatch(t, 1))
	if err != nil {
		t.Fatal(err)
	}

	state, err := m.StateBytes()
	if err != nil {
		t.Fatal(err)
	}
	restored, err := NewPriorModel(3, -1)
	if err != nil {
		t.Fatal(err)
	}
	if err := restored.LoadStateBytes(state); err != nil {
		t.Fatalf("LoadStateBytes failed: %v", err)
	}
	gotLoss, err := restored.ValidationStep(ctx, singleBatch(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	if gotLoss != wantLoss {
		t.Errorf("restored model scores %v, want %v", gotLoss, wantLoss)
	}
}

func TestPriorModelLoadStateRejectsMismatch(t *testing.T) {
	m, err := NewPriorModel(3, -1)
	if err != nil {
		t.Fatal(err)
	}
	state, err := m.StateBytes()
	if err != nil {
		t.Fatal(err)
	}

	other, err := NewPriorModel(5, -1)
	if err != nil {
		t.Fatal(err)
	}
	if err := other.LoadStateBytes(state); err == nil {
		t.Error("class-count mismatch should fail")
	}
	if err := m.LoadStateBytes([]byte("not json")); err == nil {
		t.Error("malformed state should fail")
	}
}
