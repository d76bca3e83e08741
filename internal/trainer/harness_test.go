package trainer

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openlidar/bevtrain/internal/checkpoint"
	"github.com/openlidar/bevtrain/internal/collate"
	"github.com/openlidar/bevtrain/internal/fsutil"
	"github.com/openlidar/bevtrain/internal/loader"
	"github.com/openlidar/bevtrain/internal/points"
	"github.com/openlidar/bevtrain/internal/runs"
)

// memSource serves single-point samples with labels cycling over the
// class count, tagged with one domain.
type memSource struct {
	domain string
	n      int
}

func (s memSource) Len() int { return s.n }

func (s memSource) Tagged(i int) (points.Tagged, error) {
	return points.Tagged{
		Domain: s.domain,
		Sample: points.Sample{
			Coords: []points.Coord{{X: int32(i)}},
			Feats:  [][]float32{{1}},
			Labels: []int32{int32(i % 3)},
		},
	}, nil
}

func testLoader(t *testing.T, domain string, n, batchSize int) *loader.Loader {
	t.Helper()
	l, err := loader.New(memSource{domain: domain, n: n}, collate.SingleDomain{}, loader.Options{BatchSize: batchSize})
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func testStore(t *testing.T) *runs.Store {
	t.Helper()
	store, err := runs.OpenStore(filepath.Join(t.TempDir(), "runindex.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHarnessFit(t *testing.T) {
	store := testStore(t)
	rec, err := store.InsertRun(runs.Record{
		RunName: "r", SaveDir: "/save/r", SourceDomains: []string{"kitti"},
		Policy: "single-domain", BatchSize: 4,
	})
	if err != nil {
		t.Fatal(err)
	}

	model, err := NewPriorModel(3, -1)
	if err != nil {
		t.Fatal(err)
	}
	fsys := fsutil.NewMemoryFileSystem()

	h, err := New(model,
		testLoader(t, "kitti", 10, 4),
		[]*loader.Loader{testLoader(t, "kitti", 4, 2)},
		fsys, "/save/r", store, rec.RunID,
		Options{Epochs: 3, CheckValEveryNEpoch: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	last, err := h.Fit(context.Background())
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !strings.HasSuffix(last, "epoch=02-step=9.ckpt") {
		t.Errorf("last checkpoint %q, want epoch 2 after 3 epochs of 3 batches", last)
	}

	// One checkpoint per epoch in the run's checkpoints folder.
	entries, err := fsys.ReadDir(filepath.Join("/save/r", checkpoint.CheckpointsDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("found %d checkpoints, want 3", len(entries))
	}

	// Metrics landed in the run index for both splits.
	train, err := store.MetricSeries(rec.RunID, "train")
	if err != nil {
		t.Fatal(err)
	}
	if len(train) != 3 {
		t.Errorf("got %d train metric rows, want 3", len(train))
	}
	val, err := store.MetricSeries(rec.RunID, "val")
	if err != nil {
		t.Fatal(err)
	}
	if len(val) != 3 {
		t.Errorf("got %d aggregate val rows, want 3", len(val))
	}

	// The run is stamped complete.
	got, err := store.GetRun(rec.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedAt == nil {
		t.Error("finished run should be marked complete")
	}
}

func TestHarnessValidationCadence(t *testing.T) {
	store := testStore(t)
	rec, err := store.InsertRun(runs.Record{
		RunName: "r", SaveDir: "/save/r", SourceDomains: []string{"kitti"},
		Policy: "single-domain", BatchSize: 4,
	})
	if err != nil {
		t.Fatal(err)
	}
	model, err := NewPriorModel(3, -1)
	if err != nil {
		t.Fatal(err)
	}

	h, err := New(model,
		testLoader(t, "kitti", 8, 4),
		[]*loader.Loader{testLoader(t, "kitti", 4, 2)},
		fsutil.NewMemoryFileSystem(), "/save/r", store, rec.RunID,
		Options{Epochs: 4, CheckValEveryNEpoch: 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Fit(context.Background()); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	val, err := store.MetricSeries(rec.RunID, "val")
	if err != nil {
		t.Fatal(err)
	}
	// Validation runs after epochs 1 and 3 only.
	if len(val) != 2 {
		t.Fatalf("got %d val rows, want 2 with cadence 2", len(val))
	}
	if val[0].Epoch != 1 || val[1].Epoch != 3 {
		t.Errorf("val epochs %d,%d, want 1,3", val[0].Epoch, val[1].Epoch)
	}
}

func TestHarnessResume(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()

	// A previous run left a checkpoint at epoch 1.
	prev, err := NewPriorModel(3, -1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := prev.TrainStep(context.Background(), priorBatch(t, 0, 1, 2)); err != nil {
		t.Fatal(err)
	}
	state, err := prev.StateBytes()
	if err != nil {
		t.Fatal(err)
	}
	ckptPath := "/save/old/checkpoints/epoch=01-step=6.ckpt"
	if err := fsys.WriteFile(ckptPath, state, 0644); err != nil {
		t.Fatal(err)
	}

	model, err := NewPriorModel(3, -1)
	if err != nil {
		t.Fatal(err)
	}
	h, err := New(model, testLoader(t, "kitti", 8, 4), nil,
		fsys, "/save/new", nil, "",
		Options{Epochs: 4, ResumePath: ckptPath})
	if err != nil {
		t.Fatal(err)
	}

	last, err := h.Fit(context.Background())
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	// Epochs 2 and 3 ran; epochs 0 and 1 were skipped.
	entries, err := fsys.ReadDir(filepath.Join("/save/new", checkpoint.CheckpointsDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("found %d checkpoints, want 2 (resumed at epoch 2)", len(entries))
	}
	epoch, err := checkpoint.ParseEpoch(filepath.Base(last))
	if err != nil {
		t.Fatal(err)
	}
	if epoch != 3 {
		t.Errorf("last checkpoint epoch %d, want 3", epoch)
	}
}

func TestHarnessResumeMissingCheckpoint(t *testing.T) {
	model, err := NewPriorModel(3, -1)
	if err != nil {
		t.Fatal(err)
	}
	h, err := New(model, testLoader(t, "kitti", 4, 2), nil,
		fsutil.NewMemoryFileSystem(), "/save/r", nil, "",
		Options{Epochs: 1, ResumePath: "/save/old/checkpoints/epoch=00-step=1.ckpt"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Fit(context.Background()); err == nil {
		t.Error("missing resume checkpoint should fail")
	}
}

func TestHarnessCancel(t *testing.T) {
	model, err := NewPriorModel(3, -1)
	if err != nil {
		t.Fatal(err)
	}
	h, err := New(model, testLoader(t, "kitti", 100, 1), nil,
		fsutil.NewMemoryFileSystem(), "/save/r", nil, "",
		Options{Epochs: 1000})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Fit(ctx); err == nil {
		t.Error("cancelled context should stop training with an error")
	}
}

func TestNewValidatesOptions(t *testing.T) {
	model, err := NewPriorModel(3, -1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(model, testLoader(t, "kitti", 4, 2), nil,
		fsutil.NewMemoryFileSystem(), "/save/r", nil, "",
		Options{Epochs: 0}); err == nil {
		t.Error("zero epochs should fail")
	}
}
