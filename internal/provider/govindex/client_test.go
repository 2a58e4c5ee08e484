package govindex

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
	"github.com/couchcryptid/hazard-risk-engine/internal/provider"
)

func testRemote(baseURL string) *Remote {
	return NewRemote(baseURL, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testParams() provider.Params {
	return provider.Params{
		Location: domain.Coordinate{Lat: 30.2672, Lon: -97.7431},
		Hazards:  []domain.HazardType{domain.HazardFlood, domain.HazardWildfire},
	}
}

func TestCall_Success(t *testing.T) {
	updated := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tracts/risk", r.URL.Path)
		assert.Equal(t, "30.267200", r.URL.Query().Get("lat"))
		assert.Equal(t, "-97.743100", r.URL.Query().Get("lon"))
		assert.Equal(t, "flood,wildfire", r.URL.Query().Get("hazards"))

		resp := response{
			Tract: "48453001100",
			Ratings: []rating{
				{Hazard: "flood", Percentile: 75, Updated: updated},
				{Hazard: "wildfire", Percentile: 60, Updated: updated},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	readings, err := testRemote(srv.URL).Call(context.Background(), OperationRisk, testParams())
	require.NoError(t, err)
	require.Len(t, readings, 2)

	assert.Equal(t, Name, readings[0].Provider)
	assert.Equal(t, domain.HazardFlood, readings[0].Hazard)
	assert.Equal(t, 75.0, readings[0].RawValue)
	assert.Equal(t, updated, readings[0].ObservedAt)
	assert.Equal(t, "48453001100", readings[0].Metadata["tract"])
	assert.Equal(t, domain.HazardWildfire, readings[1].Hazard)
}

func TestCall_EmptyRatings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(response{Tract: "none"}))
	}))
	defer srv.Close()

	readings, err := testRemote(srv.URL).Call(context.Background(), OperationRisk, testParams())
	require.NoError(t, err)
	assert.Empty(t, readings)
}

func TestCall_ServerErrorClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testRemote(srv.URL).Call(context.Background(), OperationRisk, testParams())
	require.Error(t, err)

	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.KindServerError, pe.Kind)
	assert.Equal(t, Name, pe.Provider)
}

func TestCall_OutOfRangeCoordinatesRejectedLocally(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	params := testParams()
	params.Location = domain.Coordinate{Lat: 91.0, Lon: 0}

	_, err := testRemote(srv.URL).Call(context.Background(), OperationRisk, params)
	require.Error(t, err)

	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.KindInvalidParam, pe.Kind)
	assert.False(t, called, "invalid coordinates must not reach the remote")
}

func TestCall_UnknownOperation(t *testing.T) {
	_, err := testRemote("http://unused.test").Call(context.Background(), "bogus", testParams())
	require.Error(t, err)

	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.KindInvalidParam, pe.Kind)
}
