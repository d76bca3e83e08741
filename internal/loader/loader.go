// Package loader batches domain-tagged samples through a collation
// policy, with per-epoch seeded shuffling and optional prefetch
// workers. Collation itself stays pure; all concurrency lives here.
package loader

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/openlidar/bevtrain/internal/collate"
	"github.com/openlidar/bevtrain/internal/dataset"
	"github.com/openlidar/bevtrain/internal/points"
)

// Options configures a Loader.
type Options struct {
	BatchSize int
	Shuffle   bool
	Seed      int64
	// Workers is the number of prefetch goroutines. Zero or one means
	// sequential loading with deterministic batch order; with more
	// workers, batch order within an epoch is not deterministic.
	Workers int
}

// Loader draws batches from a Source and collates them.
type Loader struct {
	src    dataset.Source
	policy collate.Policy
	opts   Options
}

// Result is one produced batch or the error that stopped an epoch.
type Result struct {
	Batch collate.MultiSourceBatch
	Err   error
}

// New validates options and builds a Loader.
func New(src dataset.Source, policy collate.Policy, opts Options) (*Loader, error) {
	if src.Len() == 0 {
		return nil, fmt.Errorf("loader: source is empty")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("loader: batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("loader: workers must be non-negative, got %d", opts.Workers)
	}
	return &Loader{src: src, policy: policy, opts: opts}, nil
}

// NumBatches returns the batch count per epoch; a trailing partial
// batch counts.
func (l *Loader) NumBatches() int {
	n := l.src.Len()
	return (n + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// Epoch streams one epoch of batches. The channel is closed when the
// epoch completes, errors out, or ctx is cancelled. On error the
// failing Result is the last one delivered.
func (l *Loader) Epoch(ctx context.Context, epoch int) <-chan Result {
	order := make([]int, l.src.Len())
	for i := range order {
		order[i] = i
	}
	if l.opts.Shuffle {
		// Reseeding with the epoch number keeps every epoch's
		// ordering reproducible for a fixed base seed.
		rng := rand.New(rand.NewSource(l.opts.Seed + int64(epoch)))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	batches := make([][]int, 0, l.NumBatches())
	for start := 0; start < len(order); start += l.opts.BatchSize {
		end := start + l.opts.BatchSize
		if end > len(order) {
			end = len(order)
		}
		batches = append(batches, order[start:end])
	}

	out := make(chan Result)
	if l.opts.Workers <= 1 {
		go l.runSequential(ctx, batches, out)
	} else {
		go l.runWorkers(ctx, batches, out)
	}
	return out
}

func (l *Loader) runSequential(ctx context.Context, batches [][]int, out chan<- Result) {
	defer close(out)
	for _, idx := range batches {
		res := l.load(idx)
		select {
		case out <- res:
		case <-ctx.Done():
			return
		}
		if res.Err != nil {
			return
		}
	}
}

func (l *Loader) runWorkers(ctx context.Context, batches [][]int, out chan<- Result) {
	defer close(out)

	// The feeder and workers block on jobs/results sends; cancelling on
	// every exit path releases them even when the caller's ctx lives on
	// after an error result.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan []int)
	results := make(chan Result, l.opts.Workers)

	var wg sync.WaitGroup
	for w := 0; w < l.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				select {
				case results <- l.load(idx):
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, idx := range batches {
			select {
			case jobs <- idx:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		select {
		case out <- res:
		case <-ctx.Done():
			return
		}
		if res.Err != nil {
			return
		}
	}
}

func (l *Loader) load(idx []int) Result {
	tagged := make([]points.Tagged, len(idx))
	for j, i := range idx {
		t, err := l.src.Tagged(i)
		if err != nil {
			return Result{Err: err}
		}
		tagged[j] = t
	}
	b, err := l.policy.Collate(tagged)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Batch: b}
}
