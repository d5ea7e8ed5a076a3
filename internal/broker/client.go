package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/r58io/core-service/internal/apperr"
	"github.com/r58io/core-service/internal/config"
	"github.com/r58io/core-service/internal/logging"
)

// Client is the narrow collaborator interface internal/ingest and
// internal/recorder depend on; they never see the HTTP transport, the
// connection pool, or the circuit breaker directly.
type Client interface {
	CreatePath(ctx context.Context, name, source string) error
	DeletePath(ctx context.Context, name string) error
	PathStatus(ctx context.Context, name string) (PathStatus, error)
	HealthCheck(ctx context.Context) error
	PreviewURL(cameraID string) string
	RecordingPullURL(cameraID string) string
	Close() error
}

// httpClient is the concrete HTTP implementation of Client, grounded on the
// teacher's connection-pooled REST client and wrapped in a circuit breaker
// so a broker outage fails fast instead of blocking ingest/recorder calls.
type httpClient struct {
	http    *http.Client
	cfg     config.BrokerConfig
	baseURL string
	breaker *CircuitBreaker
	logger  *logging.Logger
}

// NewClient builds a Client backed by the external broker's HTTP control
// plane at cfg.BaseURL (falling back to Host:APIPort).
func NewClient(cfg config.BrokerConfig, logger *logging.Logger) Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Host, cfg.APIPort)
	}

	return &httpClient{
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.ConnectionPool.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.ConnectionPool.MaxIdleConnsPerHost,
				IdleConnTimeout:     cfg.ConnectionPool.IdleConnTimeout,
			},
		},
		cfg:     cfg,
		baseURL: baseURL,
		breaker: NewCircuitBreaker("broker", cfg.CircuitBreaker, logger),
		logger:  logger,
	}
}

// CreatePath registers an on-demand republish path for a camera's encoded
// stream. name is the broker path name (typically the camera ID); source is
// the RTSP URL the broker should pull or the ffmpeg/gst push it expects.
func (c *httpClient) CreatePath(ctx context.Context, name, source string) error {
	body, err := json.Marshal(PathConfig{Name: name, Source: source})
	if err != nil {
		return apperr.Wrap("broker.CreatePath", apperr.KindBrokerUnreachable, name, err)
	}

	return c.breaker.Call(func() error {
		_, err := c.doRequest(ctx, http.MethodPost, "/v3/config/paths/add/"+name, body)
		return classifyBrokerError("broker.CreatePath", name, err)
	})
}

// DeletePath removes a previously created path; deleting a path that does
// not exist is not treated as an error since teardown is best-effort.
func (c *httpClient) DeletePath(ctx context.Context, name string) error {
	return c.breaker.Call(func() error {
		_, err := c.doRequest(ctx, http.MethodDelete, "/v3/config/paths/delete/"+name, nil)
		if brokerErr, ok := err.(*Error); ok && brokerErr.Code == 404 {
			return nil
		}
		return classifyBrokerError("broker.DeletePath", name, err)
	})
}

// PathStatus reports whether a path currently has a ready source.
func (c *httpClient) PathStatus(ctx context.Context, name string) (PathStatus, error) {
	var status PathStatus
	err := c.breaker.Call(func() error {
		data, err := c.doRequest(ctx, http.MethodGet, "/v3/paths/get/"+name, nil)
		if err != nil {
			return classifyBrokerError("broker.PathStatus", name, err)
		}
		var entry pathsListResponseEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return apperr.Wrap("broker.PathStatus", apperr.KindBrokerUnreachable, name, err)
		}
		status = PathStatus{Name: entry.Name, Ready: entry.Ready, Source: extractSourceString(entry.Source)}
		return nil
	})
	return status, err
}

// HealthCheck asks the broker to list paths as a lightweight liveness probe.
func (c *httpClient) HealthCheck(ctx context.Context) error {
	return c.breaker.Call(func() error {
		_, err := c.doRequest(ctx, http.MethodGet, "/v3/paths/list", nil)
		return classifyBrokerError("broker.HealthCheck", "", err)
	})
}

// PreviewURL builds the RTSP URL clients pull the live preview from.
func (c *httpClient) PreviewURL(cameraID string) string {
	return fmt.Sprintf("rtsp://%s:%d/%s", c.cfg.Host, c.cfg.RTSPPort, cameraID)
}

// RecordingPullURL builds the RTSP URL a subscriber-variant recorder pulls
// the encoded stream from to write it to disk independently of preview
// consumers.
func (c *httpClient) RecordingPullURL(cameraID string) string {
	return fmt.Sprintf("rtsp://%s:%d/%s", c.cfg.Host, c.cfg.RTSPPort, cameraID)
}

func (c *httpClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *httpClient) doRequest(ctx context.Context, method, path string, data []byte) ([]byte, error) {
	url := c.baseURL + path
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, NewError(0, "failed to create request", err.Error(), "new_request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewError(0, "request failed", err.Error(), "http_do")
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(0, "failed to read response", err.Error(), "read_body")
	}

	if resp.StatusCode >= 400 {
		return nil, NewErrorFromHTTP(resp.StatusCode, bodyBytes)
	}
	return bodyBytes, nil
}

func classifyBrokerError(op, subject string, err error) error {
	if err == nil {
		return nil
	}
	return apperr.Wrap(op, apperr.KindBrokerUnreachable, subject, err)
}
