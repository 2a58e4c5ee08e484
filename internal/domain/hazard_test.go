package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForScore_Bands(t *testing.T) {
	tests := []struct {
		score float64
		want  RiskLevel
	}{
		{0, LevelLow},
		{39.9, LevelLow},
		{40, LevelModerate},
		{59.9, LevelModerate},
		{60, LevelHigh},
		{79.9, LevelHigh},
		{80, LevelVeryHigh},
		{100, LevelVeryHigh},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.1f", tt.score), func(t *testing.T) {
			assert.Equal(t, tt.want, LevelForScore(tt.score))
		})
	}
}

func TestErrorKind_Transient(t *testing.T) {
	assert.True(t, KindNetwork.Transient())
	assert.True(t, KindServerError.Transient())
	assert.True(t, KindRateLimited.Transient(), "remote throttling is retryable")
	assert.False(t, KindAuth.Transient())
	assert.False(t, KindInvalidParam.Transient())
	assert.False(t, KindNoData.Transient())
	assert.False(t, KindTimeout.Transient())
}

func TestProviderError_WrapsAndClassifies(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewProviderError("gov_index", KindNetwork, inner)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "gov_index")
	assert.Contains(t, err.Error(), "network")
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Equal(t, KindNetwork, KindOf(fmt.Errorf("branch: %w", err)))
}

func TestKindOf_UnclassifiedDefaultsToNetwork(t *testing.T) {
	assert.Equal(t, KindNetwork, KindOf(errors.New("opaque")))
}

func validDescriptor(name string) ProviderDescriptor {
	return ProviderDescriptor{
		Name:       name,
		BaseURL:    "https://example.test",
		Weight:     1.0,
		Rate:       RatePolicy{MaxRequests: 10, Window: time.Minute},
		DefaultTTL: time.Hour,
		Hazards:    []HazardType{HazardFlood},
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	t.Run("accepts valid descriptors", func(t *testing.T) {
		r, err := NewRegistry([]ProviderDescriptor{validDescriptor("gov_index"), validDescriptor("hydromet")})
		require.NoError(t, err)

		d, ok := r.Lookup("gov_index")
		assert.True(t, ok)
		assert.Equal(t, "gov_index", d.Name)
		assert.ElementsMatch(t, []string{"gov_index", "hydromet"}, r.Names())
	})

	t.Run("rejects duplicate name", func(t *testing.T) {
		_, err := NewRegistry([]ProviderDescriptor{validDescriptor("a"), validDescriptor("a")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("rejects weight out of range", func(t *testing.T) {
		d := validDescriptor("a")
		d.Weight = 2.5
		_, err := NewRegistry([]ProviderDescriptor{d})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "weight")
	})

	t.Run("rejects invalid rate policy", func(t *testing.T) {
		d := validDescriptor("a")
		d.Rate.MaxRequests = 0
		_, err := NewRegistry([]ProviderDescriptor{d})
		require.Error(t, err)
	})
}

func TestDescriptor_TTLFor(t *testing.T) {
	d := validDescriptor("hydromet")
	d.CacheTTL = map[string]time.Duration{"gauges": 5 * time.Minute}

	assert.Equal(t, 5*time.Minute, d.TTLFor("gauges"))
	assert.Equal(t, time.Hour, d.TTLFor("unknown-op"))
}

func TestDescriptor_Supports(t *testing.T) {
	d := validDescriptor("hydromet")
	assert.True(t, d.Supports([]HazardType{HazardWildfire, HazardFlood}))
	assert.False(t, d.Supports([]HazardType{HazardWildfire}))
	assert.False(t, d.Supports(nil))
}

func TestParseHazardType(t *testing.T) {
	for _, h := range AllHazards() {
		got, err := ParseHazardType(string(h))
		assert.NoError(t, err)
		assert.Equal(t, h, got)
	}

	_, err := ParseHazardType("earthquake")
	assert.ErrorContains(t, err, "earthquake")
}
