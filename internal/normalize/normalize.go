// Package normalize maps provider-native hazard scores onto the common
// 0–100 scale. It is the single place where provider-specific scaling
// knowledge lives; everything downstream is provider-agnostic.
package normalize

import (
	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
)

// mappingKey identifies one (provider, hazard) scaling rule.
type mappingKey struct {
	Provider string
	Hazard   domain.HazardType
}

// Table holds linear scale factors per (provider, hazard) pair. Pairs without
// an entry fall back to treating the raw value as already normalized, with a
// defensive clamp either way.
type Table struct {
	factors map[mappingKey]float64
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{factors: make(map[mappingKey]float64)}
}

// NewDefaultTable returns the scaling rules for the engine's built-in
// providers:
//
//	gov_index:    0–100 percentile ratings, identity
//	commercial_a: 1–10 factor scores, ×10
//	hydromet:     0.0–1.0 gauge saturation ratios, ×100 (flood only)
func NewDefaultTable() *Table {
	t := NewTable()
	for _, hazard := range []domain.HazardType{
		domain.HazardFlood, domain.HazardWildfire, domain.HazardHeat,
		domain.HazardHurricane, domain.HazardTornado,
	} {
		t.Register("gov_index", hazard, 1)
		t.Register("commercial_a", hazard, 10)
	}
	t.Register("hydromet", domain.HazardFlood, 100)
	return t
}

// Register sets the linear factor for a (provider, hazard) pair.
func (t *Table) Register(provider string, hazard domain.HazardType, factor float64) {
	t.factors[mappingKey{Provider: provider, Hazard: hazard}] = factor
}

// Score maps a raw provider value onto [0,100]. Values that would overflow
// the scale are capped, not rejected.
func (t *Table) Score(provider string, hazard domain.HazardType, rawValue float64) float64 {
	factor, ok := t.factors[mappingKey{Provider: provider, Hazard: hazard}]
	if !ok {
		factor = 1
	}
	return clamp(rawValue * factor)
}

// Normalize converts a raw reading into its normalized form.
func (t *Table) Normalize(reading domain.RawHazardReading) domain.NormalizedHazardScore {
	return domain.NormalizedHazardScore{
		Provider:    reading.Provider,
		Hazard:      reading.Hazard,
		Score:       t.Score(reading.Provider, reading.Hazard, reading.RawValue),
		DerivedFrom: reading,
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
