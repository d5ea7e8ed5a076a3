package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r58io/core-service/internal/config"
	"github.com/r58io/core-service/internal/logging"
)

func newTestServer(t *testing.T, api API) *HTTPHealthServer {
	t.Helper()
	hs, err := NewHTTPHealthServer(&config.HTTPHealthConfig{Enabled: true, Host: "127.0.0.1", Port: 0}, api, logging.GetLogger("health-test"))
	require.NoError(t, err)
	return hs
}

func TestNewHTTPHealthServer_RejectsNilDependencies(t *testing.T) {
	_, err := NewHTTPHealthServer(nil, NewAggregator(), logging.GetLogger("health-test"))
	require.Error(t, err)

	_, err = NewHTTPHealthServer(&config.HTTPHealthConfig{}, nil, logging.GetLogger("health-test"))
	require.Error(t, err)
}

func TestHandleBasicHealth_ReturnsAggregatedStatus(t *testing.T) {
	agg := NewAggregator()
	hs := newTestServer(t, agg)

	req := httptest.NewRequest(http.MethodGet, basicEndpoint, nil)
	rec := httptest.NewRecorder()
	hs.handleBasicHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestHandleReadiness_UnreadyReturns503(t *testing.T) {
	agg := NewAggregator()
	agg.Register("broker", func() ComponentStatus { return ComponentStatus{Status: StatusUnhealthy} })
	hs := newTestServer(t, agg)

	req := httptest.NewRequest(http.MethodGet, readyEndpoint, nil)
	rec := httptest.NewRecorder()
	hs.handleReadiness(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleLiveness_AlwaysReturns200(t *testing.T) {
	hs := newTestServer(t, NewAggregator())

	req := httptest.NewRequest(http.MethodGet, liveEndpoint, nil)
	rec := httptest.NewRecorder()
	hs.handleLiveness(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alive":true`)
}
