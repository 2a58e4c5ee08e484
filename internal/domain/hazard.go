package domain

import (
	"fmt"
	"time"
)

// HazardType is a category of climate risk.
type HazardType string

const (
	HazardFlood     HazardType = "flood"
	HazardWildfire  HazardType = "wildfire"
	HazardHeat      HazardType = "heat"
	HazardHurricane HazardType = "hurricane"
	HazardTornado   HazardType = "tornado"
)

// AllHazards lists every supported hazard type.
func AllHazards() []HazardType {
	return []HazardType{HazardFlood, HazardWildfire, HazardHeat, HazardHurricane, HazardTornado}
}

// ParseHazardType validates a wire-format hazard name.
func ParseHazardType(s string) (HazardType, error) {
	switch h := HazardType(s); h {
	case HazardFlood, HazardWildfire, HazardHeat, HazardHurricane, HazardTornado:
		return h, nil
	default:
		return "", fmt.Errorf("unknown hazard type %q", s)
	}
}

// RiskLevel is the four-level classification of a combined score.
type RiskLevel string

const (
	LevelLow      RiskLevel = "low"
	LevelModerate RiskLevel = "moderate"
	LevelHigh     RiskLevel = "high"
	LevelVeryHigh RiskLevel = "very_high"
)

// Risk level thresholds, inclusive at the lower bound of each band.
const (
	thresholdModerate = 40
	thresholdHigh     = 60
	thresholdVeryHigh = 80
)

// LevelForScore maps a 0–100 combined score to its risk level.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= thresholdVeryHigh:
		return LevelVeryHigh
	case score >= thresholdHigh:
		return LevelHigh
	case score >= thresholdModerate:
		return LevelModerate
	default:
		return LevelLow
	}
}

// Coordinate is a WGS-84 latitude/longitude pair, already resolved by the
// caller. The engine performs no geocoding.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RawHazardReading is a single provider observation in the provider's native
// scale. Immutable; discarded after normalization.
type RawHazardReading struct {
	Provider   string
	Hazard     HazardType
	RawValue   float64
	ObservedAt time.Time
	Metadata   map[string]string
}

// NormalizedHazardScore is a reading mapped onto the common 0–100 scale.
// Score is always clamped to [0,100].
type NormalizedHazardScore struct {
	Provider    string           `json:"provider"`
	Hazard      HazardType       `json:"hazard"`
	Score       float64          `json:"score"`
	DerivedFrom RawHazardReading `json:"-"`
}

// HazardRiskAggregate is the combined view of one hazard type across all
// providers that reported it. Computed fresh per request, never cached.
type HazardRiskAggregate struct {
	Hazard        HazardType              `json:"hazard"`
	CombinedScore float64                 `json:"score"`
	Level         RiskLevel               `json:"level"`
	Breakdown     []NormalizedHazardScore `json:"sources"`
}

// PropertyRiskAssessment is the engine's top-level output for one location.
// OverallScore exists only when at least one hazard aggregate is present;
// total absence of data surfaces as ErrNoData instead.
type PropertyRiskAssessment struct {
	ID            string                             `json:"id"`
	Location      Coordinate                         `json:"location"`
	OverallScore  float64                            `json:"overallScore"`
	OverallLevel  RiskLevel                          `json:"overallLevel"`
	Hazards       map[HazardType]HazardRiskAggregate `json:"hazards"`
	SourcesUsed   []string                           `json:"sourcesUsed"`
	SourcesFailed []string                           `json:"sourcesFailed"`
	SourcesEmpty  []string                           `json:"sourcesEmpty,omitempty"`
	Confidence    float64                            `json:"confidence"`
	GeneratedAt   time.Time                          `json:"generatedAt"`
}

// AssessmentRequest is the input consumed from the request-handling layer.
type AssessmentRequest struct {
	Location           Coordinate    `json:"location"`
	Hazards            []HazardType  `json:"hazardTypes"`
	Providers          []string      `json:"providers"`
	PerProviderTimeout time.Duration `json:"-"`
	GlobalDeadline     time.Duration `json:"-"`
}
