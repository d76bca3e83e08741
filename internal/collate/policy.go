package collate

import "github.com/openlidar/bevtrain/internal/points"

// Policy selects how a batch of tagged samples is collated. It is
// chosen once at startup, replacing per-call single/multi branching
// in the orchestration layer.
type Policy interface {
	// Name identifies the policy in logs and the run index.
	Name() string

	// Collate merges one batch worth of tagged samples.
	Collate(tagged []points.Tagged) (MultiSourceBatch, error)
}

// SingleDomain collates every sample into one sub-batch regardless of
// tags. Validation always uses this policy, one domain at a time.
type SingleDomain struct{}

// Name implements Policy.
func (SingleDomain) Name() string { return "single-domain" }

// Collate implements Policy. The resulting MultiSourceBatch carries
// exactly one DomainBatch, tagged with the first sample's domain.
func (SingleDomain) Collate(tagged []points.Tagged) (MultiSourceBatch, error) {
	if len(tagged) == 0 {
		return MultiSourceBatch{}, ErrEmptyBatch
	}
	samples := make([]points.Sample, len(tagged))
	for i, t := range tagged {
		samples[i] = t.Sample
	}
	b, err := Single(samples)
	if err != nil {
		return MultiSourceBatch{}, err
	}
	return MultiSourceBatch{
		Batches:      []DomainBatch{{Domain: tagged[0].Domain, Batch: b}},
		TotalSamples: len(tagged),
	}, nil
}

// MultiDomain groups by domain tag and collates per domain, keeping
// provenance for per-domain losses.
type MultiDomain struct{}

// Name implements Policy.
func (MultiDomain) Name() string { return "multi-domain" }

// Collate implements Policy.
func (MultiDomain) Collate(tagged []points.Tagged) (MultiSourceBatch, error) {
	return MultiSource(tagged)
}
