// Package govindex adapts the government national risk index API. The index
// publishes percentile ratings (0–100) per hazard type for tract-sized
// areas.
package govindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
	"github.com/couchcryptid/hazard-risk-engine/internal/provider"
)

// Name is the provider's registry name.
const Name = "gov_index"

// OperationRisk fetches per-hazard percentile ratings for a coordinate.
const OperationRisk = "risk"

// Remote implements provider.Remote against the risk index HTTP API.
type Remote struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewRemote creates the gov_index remote.
func NewRemote(baseURL string, timeout time.Duration, logger *slog.Logger) *Remote {
	return &Remote{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// Call fetches ratings for the requested hazards at the given location.
func (r *Remote) Call(ctx context.Context, operation string, params provider.Params) ([]domain.RawHazardReading, error) {
	if operation != OperationRisk {
		return nil, domain.NewProviderError(Name, domain.KindInvalidParam, fmt.Errorf("unknown operation %q", operation))
	}
	if err := validateCoordinate(params.Location); err != nil {
		return nil, err
	}

	hazards := make([]string, len(params.Hazards))
	for i, h := range params.Hazards {
		hazards[i] = string(h)
	}

	q := url.Values{
		"lat":     {fmt.Sprintf("%.6f", params.Location.Lat)},
		"lon":     {fmt.Sprintf("%.6f", params.Location.Lon)},
		"hazards": {strings.Join(hazards, ",")},
	}
	fullURL := fmt.Sprintf("%s/v1/tracts/risk?%s", r.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("risk index request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, provider.ClassifyStatus(Name, resp.StatusCode, body)
	}

	var indexResp response
	if err := json.NewDecoder(resp.Body).Decode(&indexResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	readings := make([]domain.RawHazardReading, 0, len(indexResp.Ratings))
	for _, rating := range indexResp.Ratings {
		readings = append(readings, domain.RawHazardReading{
			Provider:   Name,
			Hazard:     domain.HazardType(rating.Hazard),
			RawValue:   rating.Percentile,
			ObservedAt: rating.Updated,
			Metadata:   map[string]string{"tract": indexResp.Tract},
		})
	}
	return readings, nil
}

func validateCoordinate(loc domain.Coordinate) error {
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lon < -180 || loc.Lon > 180 {
		return domain.NewProviderError(Name, domain.KindInvalidParam,
			fmt.Errorf("coordinates out of range: %.4f,%.4f", loc.Lat, loc.Lon))
	}
	return nil
}

// Risk index API response types.

type response struct {
	Tract   string   `json:"tract"`
	Ratings []rating `json:"ratings"`
}

type rating struct {
	Hazard     string    `json:"hazard"`
	Percentile float64   `json:"percentile"`
	Updated    time.Time `json:"updated"`
}
