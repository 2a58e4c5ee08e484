// Package commercial adapts a commercial property-risk API that scores
// perils on a 1–10 scale and authenticates with an API key header.
package commercial

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
const Name = "commercial_a"

// OperationScores fetches per-peril property risk scores.
const OperationScores = "scores"

// Remote implements provider.Remote against the commercial property API.
type Remote struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewRemote creates the commercial_a remote.
func NewRemote(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Remote {
	return &Remote{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// Call fetches peril scores for the requested hazards at the given location.
func (r *Remote) Call(ctx context.Context, operation string, params provider.Params) ([]domain.RawHazardReading, error) {
	if operation != OperationScores {
		return nil, domain.NewProviderError(Name, domain.KindInvalidParam, fmt.Errorf("unknown operation %q", operation))
	}
	if err := validateCoordinate(params.Location); err != nil {
		return nil, err
	}

	perils := make([]string, len(params.Hazards))
	for i, h := range params.Hazards {
		perils[i] = string(h)
	}

	q := url.Values{
		"lat":    {fmt.Sprintf("%.6f", params.Location.Lat)},
		"lng":    {fmt.Sprintf("%.6f", params.Location.Lon)},
		"perils": {strings.Join(perils, ",")},
	}
	fullURL := fmt.Sprintf("%s/property/scores?%s", r.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("property scores request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, provider.ClassifyStatus(Name, resp.StatusCode, body)
	}

	var scoresResp response
	if err := json.NewDecoder(resp.Body).Decode(&scoresResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	readings := make([]domain.RawHazardReading, 0, len(scoresResp.Scores))
	for _, s := range scoresResp.Scores {
		readings = append(readings, domain.RawHazardReading{
			Provider:   Name,
			Hazard:     domain.HazardType(s.Peril),
			RawValue:   s.Score,
			ObservedAt: s.AsOf,
			Metadata:   map[string]string{"model_version": scoresResp.ModelVersion},
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

// Commercial API response types.

type response struct {
	ModelVersion string  `json:"modelVersion"`
	Scores       []score `json:"scores"`
}

type score struct {
	Peril string    `json:"peril"`
	Score float64   `json:"score"` // 1–10 native scale
	AsOf  time.Time `json:"asOf"`
}
