package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/openlidar/bevtrain/internal/augment"
	"github.com/openlidar/bevtrain/internal/bev"
	"github.com/openlidar/bevtrain/internal/points"
)

// Provider is the contract a source domain exposes to the data
// loading layer: random access to immutable samples.
type Provider interface {
	// Name identifies the domain.
	Name() string
	// Len returns the number of samples in the dataset.
	Len() int
	// Sample produces the i-th sample.
	Sample(i int) (points.Sample, error)
}

// BlobExt is the file extension of encoded sample blobs.
const BlobExt = ".bvs"

// LoadOptions controls how raw blobs become samples.
type LoadOptions struct {
	VoxelSize float64
	SubP      float64
	Ignore    int32
	Bound     float64
	Levels    []bev.Level
	Aug       augment.Compose
	UseCache  bool
	Seed      int64
}

// DirDataset is a directory-backed domain: one blob file per sample,
// enumerated in sorted name order so indexing is stable.
type DirDataset struct {
	name  string
	dir   string
	files []string
	opts  LoadOptions

	mu    sync.Mutex
	cache map[int]points.Sample
}

// Open enumerates a domain directory. A domain with no sample files
// is a configuration error.
func Open(name, dir string, opts LoadOptions) (*DirDataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), BlobExt) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("dataset %s: no %s files under %s", name, BlobExt, dir)
	}
	sort.Strings(files)

	ds := &DirDataset{name: name, dir: dir, files: files, opts: opts}
	if opts.UseCache {
		ds.cache = make(map[int]points.Sample)
	}
	return ds, nil
}

// Name implements Provider.
func (d *DirDataset) Name() string { return d.name }

// Len implements Provider.
func (d *DirDataset) Len() int { return len(d.files) }

// Sample implements Provider. Safe for concurrent use by data-loading
// workers; augmentation randomness is derived from the dataset seed
// and the sample index, so a given (seed, index) pair is stable.
func (d *DirDataset) Sample(i int) (points.Sample, error) {
	if i < 0 || i >= len(d.files) {
		return points.Sample{}, fmt.Errorf("dataset %s: index %d out of range [0, %d)", d.name, i, len(d.files))
	}

	if d.cache != nil {
		d.mu.Lock()
		s, ok := d.cache[i]
		d.mu.Unlock()
		if ok {
			return s, nil
		}
	}

	path := filepath.Join(d.dir, d.files[i])
	blob, err := os.ReadFile(path)
	if err != nil {
		return points.Sample{}, fmt.Errorf("dataset %s: %w", d.name, err)
	}
	raw, err := DecodeSample(blob)
	if err != nil {
		return points.Sample{}, fmt.Errorf("dataset %s: %s: %w", d.name, d.files[i], err)
	}

	s, err := d.build(raw, i)
	if err != nil {
		return points.Sample{}, fmt.Errorf("dataset %s: %s: %w", d.name, d.files[i], err)
	}

	if d.cache != nil {
		d.mu.Lock()
		d.cache[i] = s
		d.mu.Unlock()
	}
	return s, nil
}

// build turns a decoded raw sample into a training sample: augment,
// subsample, voxelize, then project per-level BEV label grids from
// the augmented metric points.
func (d *DirDataset) build(raw RawSample, idx int) (points.Sample, error) {
	rng := rand.New(rand.NewSource(d.opts.Seed + int64(idx)))

	pts := raw.Points
	if !d.opts.Aug.Empty() {
		pts, _ = d.opts.Aug.Apply(pts, rng)
	}

	keep := points.SubsampleIndices(len(pts), d.opts.SubP, rng)
	kept := make([][3]float64, len(keep))
	feats := make([][]float32, len(keep))
	labels := make([]int32, len(keep))
	for j, k := range keep {
		kept[j] = pts[k]
		feats[j] = raw.Feats[k]
		labels[j] = raw.Labels[k]
	}

	coords, err := points.Voxelize(kept, d.opts.VoxelSize)
	if err != nil {
		return points.Sample{}, err
	}

	// BEV grids come from the augmented cloud, so point and grid
	// supervision stay geometrically consistent.
	xs := make([]float64, len(kept))
	ys := make([]float64, len(kept))
	for j, p := range kept {
		xs[j], ys[j] = p[0], p[1]
	}
	bevLabels := make(map[string]bev.Grid, len(d.opts.Levels))
	for _, level := range d.opts.Levels {
		g, err := bev.Project(xs, ys, labels, level, d.opts.Bound, d.opts.Ignore)
		if err != nil {
			return points.Sample{}, err
		}
		bevLabels[level.Name] = g
	}

	s := points.Sample{Coords: coords, Feats: feats, Labels: labels, BEVLabels: bevLabels}
	if err := s.Validate(); err != nil {
		return points.Sample{}, err
	}
	return s, nil
}
