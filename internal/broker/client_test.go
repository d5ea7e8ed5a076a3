package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/r58io/core-service/internal/config"
	"github.com/r58io/core-service/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.NewLogger("broker-test")
}

func testBrokerConfig(baseURL string) config.BrokerConfig {
	return config.BrokerConfig{
		Host:     "127.0.0.1",
		RTSPPort: 8554,
		BaseURL:  baseURL,
		Timeout:  time.Second,
		CircuitBreaker: config.CircuitBreakerConfig{
			FailureThreshold: 2,
			MaxFailures:      5,
			RecoveryTimeout:  50 * time.Millisecond,
		},
		ConnectionPool: config.ConnectionPoolConfig{
			MaxIdleConns:        2,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     time.Second,
		},
	}
}

func TestClient_CreatePath_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(testBrokerConfig(srv.URL), testLogger())
	require.NoError(t, c.CreatePath(context.Background(), "cam1", "rtsp://source/cam1"))
}

func TestClient_HealthCheck_PropagatesFailureThroughCircuitBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testBrokerConfig(srv.URL), testLogger())

	err1 := c.HealthCheck(context.Background())
	require.Error(t, err1)

	err2 := c.HealthCheck(context.Background())
	require.Error(t, err2)

	var cbErr *CircuitBreakerError
	err3 := c.HealthCheck(context.Background())
	require.ErrorAs(t, err3, &cbErr)
	assert.Equal(t, StateOpen, cbErr.State)
}

func TestClient_DeletePath_MissingPathIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(testBrokerConfig(srv.URL), testLogger())
	require.NoError(t, c.DeletePath(context.Background(), "does-not-exist"))
}

func TestClient_PreviewURL(t *testing.T) {
	c := NewClient(testBrokerConfig("http://127.0.0.1:9997"), testLogger())
	assert.Equal(t, "rtsp://127.0.0.1:8554/cam1", c.PreviewURL("cam1"))
}
