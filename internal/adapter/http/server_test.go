package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/hazard-risk-engine/internal/adapter/http"
	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
	"github.com/couchcryptid/hazard-risk-engine/internal/health"
)

type mockAssessor struct {
	assessment *domain.PropertyRiskAssessment
	err        error
	readyErr   error
	gotReq     domain.AssessmentRequest
}

func (m *mockAssessor) Assess(_ context.Context, req domain.AssessmentRequest) (*domain.PropertyRiskAssessment, error) {
	m.gotReq = req
	return m.assessment, m.err
}

func (m *mockAssessor) CheckReadiness(_ context.Context) error { return m.readyErr }

type mockPublisher struct {
	published []*domain.PropertyRiskAssessment
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, a *domain.PropertyRiskAssessment) error {
	m.published = append(m.published, a)
	return m.err
}

func testAssessment() *domain.PropertyRiskAssessment {
	return &domain.PropertyRiskAssessment{
		ID:           "a-1",
		Location:     domain.Coordinate{Lat: 30.27, Lon: -97.74},
		OverallScore: 68.3,
		OverallLevel: domain.LevelHigh,
		Hazards: map[domain.HazardType]domain.HazardRiskAggregate{
			domain.HazardFlood: {Hazard: domain.HazardFlood, CombinedScore: 76.7, Level: domain.LevelHigh},
		},
		SourcesUsed: []string{"gov_index"},
		Confidence:  1.0,
		GeneratedAt: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestServer(assessor *mockAssessor, monitor *health.Monitor, publisher httpadapter.Publisher) *httpadapter.Server {
	if monitor == nil {
		monitor = health.NewMonitor(nil)
	}
	defaults := httpadapter.Defaults{
		Providers:          []string{"gov_index", "commercial_a", "hydromet"},
		Hazards:            domain.AllHazards(),
		PerProviderTimeout: 2 * time.Second,
	}
	return httpadapter.NewServer(":0", assessor, monitor, publisher, defaults,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func postAssessment(t *testing.T, srv *httpadapter.Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/assessments", strings.NewReader(body))
	srv.ServeHTTP(rec, req)
	return rec
}

func TestAssessments_Success(t *testing.T) {
	assessor := &mockAssessor{assessment: testAssessment()}
	srv := newTestServer(assessor, nil, nil)

	rec := postAssessment(t, srv,
		`{"location":{"lat":30.27,"lon":-97.74},"hazardTypes":["flood"],"providers":["gov_index"]}`)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got domain.PropertyRiskAssessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "a-1", got.ID)
	assert.Equal(t, domain.LevelHigh, got.OverallLevel)

	assert.Equal(t, []domain.HazardType{domain.HazardFlood}, assessor.gotReq.Hazards)
	assert.Equal(t, []string{"gov_index"}, assessor.gotReq.Providers)
}

func TestAssessments_DefaultsFillOmittedFields(t *testing.T) {
	assessor := &mockAssessor{assessment: testAssessment()}
	srv := newTestServer(assessor, nil, nil)

	rec := postAssessment(t, srv, `{"location":{"lat":30.27,"lon":-97.74}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.AllHazards(), assessor.gotReq.Hazards)
	assert.Equal(t, []string{"gov_index", "commercial_a", "hydromet"}, assessor.gotReq.Providers)
}

func TestAssessments_TimeoutOverrides(t *testing.T) {
	assessor := &mockAssessor{assessment: testAssessment()}
	srv := newTestServer(assessor, nil, nil)

	rec := postAssessment(t, srv,
		`{"location":{"lat":30,"lon":-97},"perProviderTimeoutMs":1500,"globalDeadlineMs":4000}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1500*time.Millisecond, assessor.gotReq.PerProviderTimeout)
	assert.Equal(t, 4*time.Second, assessor.gotReq.GlobalDeadline)
}

func TestAssessments_OmittedTimeoutsUseDefaults(t *testing.T) {
	assessor := &mockAssessor{assessment: testAssessment()}
	srv := newTestServer(assessor, nil, nil)

	rec := postAssessment(t, srv, `{"location":{"lat":30,"lon":-97}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2*time.Second, assessor.gotReq.PerProviderTimeout)
	assert.Zero(t, assessor.gotReq.GlobalDeadline, "engine applies its own configured deadline")
}

func TestAssessments_NegativeTimeoutRejected(t *testing.T) {
	srv := newTestServer(&mockAssessor{}, nil, nil)

	rec := postAssessment(t, srv,
		`{"location":{"lat":30,"lon":-97},"globalDeadlineMs":-5}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "globalDeadlineMs")
}

func TestAssessments_MalformedBody(t *testing.T) {
	srv := newTestServer(&mockAssessor{}, nil, nil)

	rec := postAssessment(t, srv, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
}

func TestAssessments_InvalidCoordinates(t *testing.T) {
	srv := newTestServer(&mockAssessor{}, nil, nil)

	rec := postAssessment(t, srv, `{"location":{"lat":91,"lon":0}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "location.lat")
}

func TestAssessments_UnknownHazardType(t *testing.T) {
	srv := newTestServer(&mockAssessor{}, nil, nil)

	rec := postAssessment(t, srv,
		`{"location":{"lat":30,"lon":-97},"hazardTypes":["earthquake"]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "earthquake")
}

func TestAssessments_NoDataIs404(t *testing.T) {
	assessor := &mockAssessor{err: fmt.Errorf("all branches settled empty: %w", domain.ErrNoData)}
	srv := newTestServer(assessor, nil, nil)

	rec := postAssessment(t, srv, `{"location":{"lat":30,"lon":-97}}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NO_DATA")
}

func TestAssessments_InternalErrorIs500(t *testing.T) {
	assessor := &mockAssessor{err: fmt.Errorf("boom")}
	srv := newTestServer(assessor, nil, nil)

	rec := postAssessment(t, srv, `{"location":{"lat":30,"lon":-97}}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL")
	assert.NotContains(t, rec.Body.String(), "boom", "internals must not leak to callers")
}

func TestAssessments_PublishesResult(t *testing.T) {
	pub := &mockPublisher{}
	srv := newTestServer(&mockAssessor{assessment: testAssessment()}, nil, pub)

	rec := postAssessment(t, srv, `{"location":{"lat":30,"lon":-97}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pub.published, 1)
	assert.Equal(t, "a-1", pub.published[0].ID)
}

func TestAssessments_PublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &mockPublisher{err: fmt.Errorf("broker down")}
	srv := newTestServer(&mockAssessor{assessment: testAssessment()}, nil, pub)

	rec := postAssessment(t, srv, `{"location":{"lat":30,"lon":-97}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProviderHealth(t *testing.T) {
	monitor := health.NewMonitor(nil)
	monitor.RecordSuccess("gov_index", 120*time.Millisecond)
	monitor.RecordSuccess("gov_index", 80*time.Millisecond)
	monitor.RecordFailure("commercial_a", domain.KindServerError, 50*time.Millisecond, "502")

	srv := newTestServer(&mockAssessor{}, monitor, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/providers/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var views []struct {
		Provider      string  `json:"provider"`
		TotalRequests int64   `json:"totalRequests"`
		SuccessRate   float64 `json:"successRate"`
		AvgLatencyMs  float64 `json:"avgLatencyMs"`
		LastError     string  `json:"lastError"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)

	byName := map[string]int{}
	for i, v := range views {
		byName[v.Provider] = i
	}
	gov := views[byName["gov_index"]]
	assert.Equal(t, int64(2), gov.TotalRequests)
	assert.Equal(t, 1.0, gov.SuccessRate)
	assert.Equal(t, 100.0, gov.AvgLatencyMs)

	commercial := views[byName["commercial_a"]]
	assert.Equal(t, 0.0, commercial.SuccessRate)
	assert.Equal(t, "502", commercial.LastError)
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(&mockAssessor{}, nil, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(&mockAssessor{}, nil, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(&mockAssessor{readyErr: fmt.Errorf("no assessments yet")}, nil, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no assessments yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&mockAssessor{}, nil, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
