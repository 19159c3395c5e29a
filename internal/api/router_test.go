package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/londonair/londonair/internal/airquality"
	"github.com/londonair/londonair/internal/api"
	"github.com/londonair/londonair/internal/api/models"
)

// stubProvider returns one reading, or ErrNoData when empty is set.
type stubProvider struct {
	empty bool
}

func (p stubProvider) FetchCurrentReadings(context.Context, string) ([]airquality.Reading, error) {
	if p.empty {
		return nil, airquality.ErrNoData
	}
	level := 0.7
	r := airquality.Reading{SiteCode: "BG1", SiteName: "Barking - Rush Green", Lat: 51.563, Lon: 0.178}
	r.SetLevel(airquality.PollutantO3, &level)
	return []airquality.Reading{r}, nil
}

func (p stubProvider) FetchReadingsNear(ctx context.Context, _, _ float64) ([]airquality.Reading, error) {
	return p.FetchCurrentReadings(ctx, "")
}

func (p stubProvider) FetchSiteHistory(context.Context, string, time.Time, time.Time) ([]airquality.SiteMeasurement, error) {
	if p.empty {
		return nil, airquality.ErrNoData
	}
	v := 12.5
	return []airquality.SiteMeasurement{
		{SiteCode: "BG1", Pollutant: airquality.PollutantO3, MeasuredAt: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), Value: &v},
	}, nil
}

func seededRepository(t *testing.T) *airquality.InMemoryRepository {
	t.Helper()
	ctx := context.Background()
	repo := airquality.NewInMemoryRepository()

	_, err := repo.UpsertSpecies(ctx, &airquality.Species{Code: "O3", Name: "Ozone"})
	require.NoError(t, err)
	_, err = repo.UpsertLocalAuthority(ctx, &airquality.LocalAuthority{Code: 1, Name: "Barking and Dagenham"})
	require.NoError(t, err)
	_, err = repo.UpsertSite(ctx, &airquality.Site{
		Code:               "BG1",
		Name:               "Barking - Rush Green",
		LocalAuthorityCode: 1,
		Measuring:          airquality.NewPollutantSet(airquality.PollutantO3),
	})
	require.NoError(t, err)
	_, err = repo.UpsertHealthAdviceBand(ctx, &airquality.HealthAdviceBand{
		Band: "Low", LowerIndex: 1, UpperIndex: 3,
		GeneralAdvice: "Enjoy your usual outdoor activities.",
		AtRiskAdvice:  "Enjoy your usual outdoor activities.",
	})
	require.NoError(t, err)
	return repo
}

func newTestRouter(t *testing.T, provider stubProvider) http.Handler {
	t.Helper()
	logger := zerolog.New(io.Discard)
	service := airquality.NewService(airquality.ServiceConfig{
		Repository: seededRepository(t),
		Provider:   provider,
		Logger:     logger,
	})
	return api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "2024-01-01T00:00:00Z",
		Logger:    logger,
		Service:   service,
	})
}

func serve(router http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthCheck(t *testing.T) {
	w := serve(newTestRouter(t, stubProvider{}), http.MethodGet, "/v1/ops/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_ReadinessWithoutDatabase(t *testing.T) {
	w := serve(newTestRouter(t, stubProvider{}), http.MethodGet, "/v1/ops/ready")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_SystemStatus(t *testing.T) {
	w := serve(newTestRouter(t, stubProvider{}), http.MethodGet, "/v1/ops/status")

	require.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.NotEmpty(t, status.Subsystems)
	assert.Empty(t, status.Providers)
}

func TestRouter_Page(t *testing.T) {
	w := serve(newTestRouter(t, stubProvider{}), http.MethodGet, "/")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "https://unpkg.com")
	assert.Contains(t, w.Body.String(), "Barking - Rush Green")
}

func TestRouter_PageWithoutReadings(t *testing.T) {
	w := serve(newTestRouter(t, stubProvider{empty: true}), http.MethodGet, "/")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `id="no-data"`)
}

func TestRouter_ReferenceData(t *testing.T) {
	router := newTestRouter(t, stubProvider{})

	tests := []struct {
		path   string
		status int
		count  int
	}{
		{"/v1/species", http.StatusOK, 1},
		{"/v1/local-authorities", http.StatusOK, 1},
		{"/v1/local-authorities/1/sites", http.StatusOK, 1},
		{"/v1/sites", http.StatusOK, 1},
		{"/v1/health-advice", http.StatusOK, 1},
		{"/v1/readings", http.StatusOK, 1},
		{"/v1/sites/BG1/history?start=2019-01-01&end=2019-01-02", http.StatusOK, 1},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := serve(router, http.MethodGet, tt.path)

			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", w.Header().Get("Content-Security-Policy"))

			var items []json.RawMessage
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
			assert.Len(t, items, tt.count)
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t, stubProvider{})

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/v1/local-authorities/42/sites").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/v1/sites/XX1/history?start=2019-01-01&end=2019-01-02").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/v1/unknown").Code)
}

func TestRouter_HistoryRangeTooLong(t *testing.T) {
	w := serve(newTestRouter(t, stubProvider{}), http.MethodGet, "/v1/sites/BG1/history?start=2019-01-01&end=2019-03-01")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	w := serve(newTestRouter(t, stubProvider{}), http.MethodPost, "/v1/species")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_RequireTLS(t *testing.T) {
	logger := zerolog.New(io.Discard)
	router := api.NewRouter(api.RouterConfig{
		Logger: logger,
		Service: airquality.NewService(airquality.ServiceConfig{
			Repository: seededRepository(t),
			Provider:   stubProvider{},
			Logger:     logger,
		}),
		RequireTLS: true,
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/species", http.NoBody)
	req.Header.Set("X-Forwarded-Proto", "http")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_RateLimitsReadings(t *testing.T) {
	router := newTestRouter(t, stubProvider{})

	var last int
	for i := 0; i < 31; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/readings", http.NoBody)
		req.RemoteAddr = "203.0.113.9:4000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		last = w.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, last)
}
