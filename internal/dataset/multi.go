package dataset

import (
	"fmt"

	"github.com/openlidar/bevtrain/internal/points"
)

// Source yields domain-tagged samples. It is what the data loader
// consumes: a single domain wrapped in SingleSource, or several
// domains interleaved by MultiSource.
type Source interface {
	Len() int
	Tagged(i int) (points.Tagged, error)
}

// SingleSource adapts one Provider into a tagged Source.
type SingleSource struct {
	Provider Provider
}

// Len implements Source.
func (s SingleSource) Len() int { return s.Provider.Len() }

// Tagged implements Source.
func (s SingleSource) Tagged(i int) (points.Tagged, error) {
	smp, err := s.Provider.Sample(i)
	if err != nil {
		return points.Tagged{}, err
	}
	return points.Tagged{Domain: s.Provider.Name(), Sample: smp}, nil
}

// MultiSource interleaves several domains round-robin: index i maps
// to domain i mod D, sample i div D. The length is D times the
// smallest domain, so every batch position cycles through all domains
// and no domain is over-represented within an epoch.
type MultiSource struct {
	domains []Provider
	perDom  int
}

// NewMultiSource builds an interleaved source over two or more
// domains.
func NewMultiSource(domains []Provider) (*MultiSource, error) {
	if len(domains) < 2 {
		return nil, fmt.Errorf("dataset: multi-source needs at least 2 domains, got %d", len(domains))
	}
	minLen := domains[0].Len()
	for _, d := range domains[1:] {
		if d.Len() < minLen {
			minLen = d.Len()
		}
	}
	if minLen == 0 {
		return nil, fmt.Errorf("dataset: multi-source includes an empty domain")
	}
	return &MultiSource{domains: domains, perDom: minLen}, nil
}

// Len implements Source.
func (m *MultiSource) Len() int { return m.perDom * len(m.domains) }

// Tagged implements Source.
func (m *MultiSource) Tagged(i int) (points.Tagged, error) {
	if i < 0 || i >= m.Len() {
		return points.Tagged{}, fmt.Errorf("dataset: multi-source index %d out of range [0, %d)", i, m.Len())
	}
	d := m.domains[i%len(m.domains)]
	smp, err := d.Sample(i / len(m.domains))
	if err != nil {
		return points.Tagged{}, err
	}
	return points.Tagged{Domain: d.Name(), Sample: smp}, nil
}

// Domains returns the underlying providers in interleave order.
func (m *MultiSource) Domains() []Provider { return m.domains }
