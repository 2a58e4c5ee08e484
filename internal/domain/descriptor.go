package domain

import (
	"fmt"
	"time"
)

// RatePolicy bounds a provider's request rate over a sliding window.
type RatePolicy struct {
	MaxRequests int
	Window      time.Duration
}

// ProviderDescriptor is the static configuration of one external data source.
// Immutable after registry initialization.
type ProviderDescriptor struct {
	Name    string
	BaseURL string
	APIKey  string

	// Weight is the provider's reliability weight used in cross-source
	// aggregation, 0.0–2.0.
	Weight float64

	Rate RatePolicy

	// CacheTTL holds the response cache TTL per operation name. Operations
	// without an entry fall back to DefaultTTL.
	CacheTTL   map[string]time.Duration
	DefaultTTL time.Duration

	// Hazards this provider can report on.
	Hazards []HazardType
}

// TTLFor returns the cache TTL for an operation.
func (d ProviderDescriptor) TTLFor(operation string) time.Duration {
	if ttl, ok := d.CacheTTL[operation]; ok {
		return ttl
	}
	return d.DefaultTTL
}

// Supports reports whether the provider covers any of the given hazards.
func (d ProviderDescriptor) Supports(hazards []HazardType) bool {
	for _, want := range hazards {
		for _, have := range d.Hazards {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Registry owns all provider descriptors for the process. It is built once at
// startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	descriptors map[string]ProviderDescriptor
}

// NewRegistry validates and indexes the given descriptors.
func NewRegistry(descriptors []ProviderDescriptor) (*Registry, error) {
	m := make(map[string]ProviderDescriptor, len(descriptors))
	for _, d := range descriptors {
		if d.Name == "" {
			return nil, fmt.Errorf("provider descriptor missing name")
		}
		if _, dup := m[d.Name]; dup {
			return nil, fmt.Errorf("duplicate provider descriptor %q", d.Name)
		}
		if d.Weight < 0 || d.Weight > 2.0 {
			return nil, fmt.Errorf("provider %s: weight %.2f outside [0.0, 2.0]", d.Name, d.Weight)
		}
		if d.Rate.MaxRequests <= 0 || d.Rate.Window <= 0 {
			return nil, fmt.Errorf("provider %s: invalid rate policy", d.Name)
		}
		m[d.Name] = d
	}
	return &Registry{descriptors: m}, nil
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (ProviderDescriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

// Names returns all registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	return names
}
