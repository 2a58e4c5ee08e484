package normalize

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
)

func TestScore_DefaultTableScales(t *testing.T) {
	table := NewDefaultTable()

	tests := []struct {
		provider string
		hazard   domain.HazardType
		raw      float64
		want     float64
	}{
		{"gov_index", domain.HazardFlood, 75, 75},
		{"gov_index", domain.HazardWildfire, 0, 0},
		{"commercial_a", domain.HazardFlood, 8, 80},
		{"commercial_a", domain.HazardHeat, 10, 100},
		{"hydromet", domain.HazardFlood, 0.62, 62},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.provider, tt.hazard), func(t *testing.T) {
			assert.InDelta(t, tt.want, table.Score(tt.provider, tt.hazard, tt.raw), 1e-9)
		})
	}
}

func TestScore_UnmappedPairFallsBackToIdentityWithClamp(t *testing.T) {
	table := NewTable()

	assert.Equal(t, 42.0, table.Score("unknown", domain.HazardFlood, 42))
	assert.Equal(t, 100.0, table.Score("unknown", domain.HazardFlood, 1234))
	assert.Equal(t, 0.0, table.Score("unknown", domain.HazardFlood, -5))
}

// Clamping invariant: for any raw value, the score stays inside [0,100].
func TestScore_AlwaysInRange(t *testing.T) {
	table := NewDefaultTable()

	inputs := []float64{
		math.Inf(-1), -1e12, -100, -0.0001, 0, 0.5, 1, 9.99, 10, 99.9, 100,
		100.0001, 1e6, math.Inf(1),
	}
	providers := []string{"gov_index", "commercial_a", "hydromet", "unmapped"}

	for _, p := range providers {
		for _, raw := range inputs {
			score := table.Score(p, domain.HazardFlood, raw)
			assert.GreaterOrEqual(t, score, 0.0, "provider %s raw %v", p, raw)
			assert.LessOrEqual(t, score, 100.0, "provider %s raw %v", p, raw)
		}
	}
}

func TestNormalize_PreservesProvenance(t *testing.T) {
	table := NewDefaultTable()
	reading := domain.RawHazardReading{
		Provider:   "commercial_a",
		Hazard:     domain.HazardWildfire,
		RawValue:   6.5,
		ObservedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}

	n := table.Normalize(reading)

	assert.Equal(t, "commercial_a", n.Provider)
	assert.Equal(t, domain.HazardWildfire, n.Hazard)
	assert.InDelta(t, 65, n.Score, 1e-9)
	assert.Equal(t, reading, n.DerivedFrom)
}

func TestRegister_OverridesDefault(t *testing.T) {
	table := NewDefaultTable()
	table.Register("gov_index", domain.HazardFlood, 2)

	assert.Equal(t, 100.0, table.Score("gov_index", domain.HazardFlood, 75))
	// Other pairs keep their defaults.
	assert.Equal(t, 75.0, table.Score("gov_index", domain.HazardWildfire, 75))
}
