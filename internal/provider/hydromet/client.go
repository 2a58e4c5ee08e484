// Package hydromet adapts a hydrological monitoring network. Stations
// report gauge saturation as a 0.0–1.0 ratio; only flood hazard is covered.
package hydromet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
	"github.com/couchcryptid/hazard-risk-engine/internal/provider"
)

// Name is the provider's registry name.
const Name = "hydromet"

// OperationGauges fetches nearby gauge saturation readings.
const OperationGauges = "gauges"

// DefaultRadiusKm bounds the nearby-station search.
const DefaultRadiusKm = 25

// Remote implements provider.Remote against the hydromet station API.
type Remote struct {
	httpClient *http.Client
	baseURL    string
	radiusKm   int
	logger     *slog.Logger
}

// NewRemote creates the hydromet remote.
func NewRemote(baseURL string, timeout time.Duration, logger *slog.Logger) *Remote {
	return &Remote{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		radiusKm:   DefaultRadiusKm,
		logger:     logger,
	}
}

// Call fetches gauge readings near the location and reduces them to a single
// worst-case flood reading. A flood-capable caller that requests no flood
// hazard gets an empty result.
func (r *Remote) Call(ctx context.Context, operation string, params provider.Params) ([]domain.RawHazardReading, error) {
	if operation != OperationGauges {
		return nil, domain.NewProviderError(Name, domain.KindInvalidParam, fmt.Errorf("unknown operation %q", operation))
	}
	if err := validateCoordinate(params.Location); err != nil {
		return nil, err
	}
	if !wantsFlood(params.Hazards) {
		return nil, nil
	}

	q := url.Values{
		"lat":       {fmt.Sprintf("%.6f", params.Location.Lat)},
		"lon":       {fmt.Sprintf("%.6f", params.Location.Lon)},
		"radius_km": {strconv.Itoa(r.radiusKm)},
	}
	fullURL := fmt.Sprintf("%s/gauges/nearby?%s", r.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gauge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, provider.ClassifyStatus(Name, resp.StatusCode, body)
	}

	var gaugeResp response
	if err := json.NewDecoder(resp.Body).Decode(&gaugeResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(gaugeResp.Stations) == 0 {
		return nil, nil
	}

	// Worst gauge wins: a single saturated river is what floods a property.
	worst := gaugeResp.Stations[0]
	for _, s := range gaugeResp.Stations[1:] {
		if s.Saturation > worst.Saturation {
			worst = s
		}
	}

	return []domain.RawHazardReading{{
		Provider:   Name,
		Hazard:     domain.HazardFlood,
		RawValue:   worst.Saturation,
		ObservedAt: worst.Observed,
		Metadata: map[string]string{
			"station":       worst.ID,
			"station_count": strconv.Itoa(len(gaugeResp.Stations)),
		},
	}}, nil
}

func validateCoordinate(loc domain.Coordinate) error {
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lon < -180 || loc.Lon > 180 {
		return domain.NewProviderError(Name, domain.KindInvalidParam,
			fmt.Errorf("coordinates out of range: %.4f,%.4f", loc.Lat, loc.Lon))
	}
	return nil
}

func wantsFlood(hazards []domain.HazardType) bool {
	for _, h := range hazards {
		if h == domain.HazardFlood {
			return true
		}
	}
	return false
}

// Hydromet API response types.

type response struct {
	Stations []station `json:"stations"`
}

type station struct {
	ID         string    `json:"id"`
	Saturation float64   `json:"saturation"` // 0.0–1.0
	Observed   time.Time `json:"observed"`
}
