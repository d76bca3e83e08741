package trainer

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/openlidar/bevtrain/internal/checkpoint"
	"github.com/openlidar/bevtrain/internal/fsutil"
	"github.com/openlidar/bevtrain/internal/loader"
	"github.com/openlidar/bevtrain/internal/runs"
)

// MaxSourceDomains caps joint multi-source training. The collation
// engine handles any domain count; the cap is an orchestration-layer
// policy.
const MaxSourceDomains = 2

// Options configures a training harness.
type Options struct {
	Epochs              int
	WarmupEpochs        int
	CheckValEveryNEpoch int

	// ResumePath, when set, is a checkpoint file whose state is
	// loaded before the first epoch; the epoch counter continues
	// after the epoch parsed from its name.
	ResumePath string
}

// Harness runs the epoch loop: drain the training loader, validate,
// write a checkpoint and record metrics. It owns none of the
// optimization itself.
type Harness struct {
	model  Model
	train  *loader.Loader
	val    []*loader.Loader // one per validation domain
	fsys   fsutil.FileSystem
	writer *checkpoint.Writer
	store  *runs.Store
	runID  string
	opts   Options
}

// New assembles a harness for a prepared run folder.
func New(model Model, train *loader.Loader, val []*loader.Loader,
	fsys fsutil.FileSystem, runDir string, store *runs.Store, runID string,
	opts Options) (*Harness, error) {

	if opts.Epochs <= 0 {
		return nil, fmt.Errorf("trainer: epochs must be positive, got %d", opts.Epochs)
	}
	if opts.CheckValEveryNEpoch <= 0 {
		opts.CheckValEveryNEpoch = 1
	}
	writer, err := checkpoint.NewWriter(fsys, runDir)
	if err != nil {
		return nil, err
	}
	return &Harness{
		model:  model,
		train:  train,
		val:    val,
		fsys:   fsys,
		writer: writer,
		store:  store,
		runID:  runID,
		opts:   opts,
	}, nil
}

// Fit runs the training loop until Epochs completes or ctx is
// cancelled. It returns the path of the last checkpoint written.
func (h *Harness) Fit(ctx context.Context) (string, error) {
	startEpoch := 0
	var step int64

	if h.opts.ResumePath != "" {
		state, err := h.fsys.ReadFile(h.opts.ResumePath)
		if err != nil {
			return "", fmt.Errorf("trainer: reading resume checkpoint: %w", err)
		}
		if err := h.model.LoadStateBytes(state); err != nil {
			return "", fmt.Errorf("trainer: restoring model state: %w", err)
		}
		epoch, err := checkpoint.ParseEpoch(filepath.Base(h.opts.ResumePath))
		if err != nil {
			return "", err
		}
		startEpoch = epoch + 1
		log.Printf("resuming from %s at epoch %d", h.opts.ResumePath, startEpoch)
	}

	var lastCkpt string
	for epoch := startEpoch; epoch < h.opts.Epochs; epoch++ {
		trainMetrics, n, err := h.runTrainEpoch(ctx, epoch, &step)
		if err != nil {
			return "", err
		}
		log.Printf("epoch %d: train loss %.4f over %d batches", epoch, trainMetrics.Loss, n)
		if err := h.recordEpoch(epoch, "train", "", trainMetrics); err != nil {
			return "", err
		}

		if (epoch+1)%h.opts.CheckValEveryNEpoch == 0 {
			if err := h.runValidation(ctx, epoch); err != nil {
				return "", err
			}
		}

		state, err := h.model.StateBytes()
		if err != nil {
			return "", fmt.Errorf("trainer: serializing model state: %w", err)
		}
		lastCkpt, err = h.writer.Write(epoch, step, state)
		if err != nil {
			return "", err
		}
	}

	if h.store != nil {
		if err := h.store.CompleteRun(h.runID, time.Now()); err != nil {
			return "", err
		}
	}
	return lastCkpt, nil
}

func (h *Harness) runTrainEpoch(ctx context.Context, epoch int, step *int64) (StepMetrics, int, error) {
	var sum StepMetrics
	n := 0
	for res := range h.train.Epoch(ctx, epoch) {
		if res.Err != nil {
			return StepMetrics{}, 0, fmt.Errorf("trainer: epoch %d: %w", epoch, res.Err)
		}
		m, err := h.model.TrainStep(ctx, res.Batch)
		if err != nil {
			return StepMetrics{}, 0, fmt.Errorf("trainer: epoch %d train step: %w", epoch, err)
		}
		sum = sum.add(m)
		n++
		*step++
	}
	if err := ctx.Err(); err != nil {
		return StepMetrics{}, 0, err
	}
	if n == 0 {
		return StepMetrics{}, 0, fmt.Errorf("trainer: epoch %d produced no batches", epoch)
	}
	return sum.scale(1 / float64(n)), n, nil
}

// runValidation validates each domain separately; validation is
// always single-source, one domain at a time.
func (h *Harness) runValidation(ctx context.Context, epoch int) error {
	var all StepMetrics
	domains := 0
	for _, vl := range h.val {
		var sum StepMetrics
		n := 0
		domain := ""
		for res := range vl.Epoch(ctx, epoch) {
			if res.Err != nil {
				return fmt.Errorf("trainer: epoch %d validation: %w", epoch, res.Err)
			}
			for _, db := range res.Batch.Batches {
				domain = db.Domain
				m, err := h.model.ValidationStep(ctx, db.Batch)
				if err != nil {
					return fmt.Errorf("trainer: epoch %d validation step: %w", epoch, err)
				}
				sum = sum.add(m)
				n++
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		avg := sum.scale(1 / float64(n))
		log.Printf("epoch %d: val[%s] loss %.4f", epoch, domain, avg.Loss)
		if err := h.recordEpoch(epoch, "val", domain, avg); err != nil {
			return err
		}
		all = all.add(avg)
		domains++
	}
	if domains > 0 {
		if err := h.recordEpoch(epoch, "val", "", all.scale(1/float64(domains))); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) recordEpoch(epoch int, split, domain string, m StepMetrics) error {
	if h.store == nil {
		return nil
	}
	return h.store.RecordEpoch(h.runID, runs.EpochMetrics{
		Epoch:   epoch,
		Split:   split,
		Domain:  domain,
		Loss:    m.Loss,
		SemLoss: m.SemLoss,
		BEVLoss: m.BEVLoss,
	})
}
