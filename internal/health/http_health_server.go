package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/r58io/core-service/internal/config"
	"github.com/r58io/core-service/internal/logging"
)

const (
	basicEndpoint    = "/health"
	detailedEndpoint = "/health/detailed"
	readyEndpoint    = "/ready"
	liveEndpoint     = "/alive"

	readTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
	idleTimeout  = 60 * time.Second
)

// HTTPHealthServer implements HTTP health endpoints with thin delegation to
// an API implementation; it contains no health-computation logic itself.
type HTTPHealthServer struct {
	config    *config.HTTPHealthConfig
	logger    *logging.Logger
	healthAPI API
	server    *http.Server
	startTime time.Time
}

// NewHTTPHealthServer creates a new HTTP health server instance.
func NewHTTPHealthServer(cfg *config.HTTPHealthConfig, healthAPI API, logger *logging.Logger) (*HTTPHealthServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if healthAPI == nil {
		return nil, fmt.Errorf("health API cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	hs := &HTTPHealthServer{
		config:    cfg,
		logger:    logger,
		healthAPI: healthAPI,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(basicEndpoint, hs.handleBasicHealth)
	mux.HandleFunc(detailedEndpoint, hs.handleDetailedHealth)
	mux.HandleFunc(readyEndpoint, hs.handleReadiness)
	mux.HandleFunc(liveEndpoint, hs.handleLiveness)

	hs.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	hs.logger.WithFields(logging.Fields{
		"host":    cfg.Host,
		"port":    cfg.Port,
		"enabled": cfg.Enabled,
	}).Info("HTTP health server initialized")

	return hs, nil
}

// Start runs the HTTP health server until ctx is cancelled, then shuts it
// down gracefully.
func (hs *HTTPHealthServer) Start(ctx context.Context) error {
	if !hs.config.Enabled {
		hs.logger.Info("HTTP health server disabled")
		return nil
	}

	hs.logger.WithField("address", hs.server.Addr).Info("Starting HTTP health server")

	go func() {
		if err := hs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			hs.logger.WithError(err).Error("HTTP health server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := hs.server.Shutdown(shutdownCtx); err != nil {
		hs.logger.WithError(err).Error("HTTP health server shutdown failed")
		return err
	}

	hs.logger.Info("HTTP health server stopped")
	return nil
}

// Stop shuts the server down immediately, independent of Start's context.
func (hs *HTTPHealthServer) Stop() error {
	if hs.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return hs.server.Shutdown(ctx)
}

func (hs *HTTPHealthServer) handleBasicHealth(w http.ResponseWriter, r *http.Request) {
	resp, err := hs.healthAPI.GetHealth(r.Context())
	if err != nil {
		hs.writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
		return
	}
	hs.setResponseHeaders(w)
	hs.writeJSONResponse(w, http.StatusOK, resp)
}

func (hs *HTTPHealthServer) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	resp, err := hs.healthAPI.GetDetailedHealth(r.Context())
	if err != nil {
		hs.writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
		return
	}
	hs.setResponseHeaders(w)
	hs.writeJSONResponse(w, http.StatusOK, resp)
}

func (hs *HTTPHealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	resp, err := hs.healthAPI.IsReady(r.Context())
	if err != nil {
		hs.writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
		return
	}
	hs.setResponseHeaders(w)
	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	hs.writeJSONResponse(w, status, resp)
}

func (hs *HTTPHealthServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	resp, err := hs.healthAPI.IsAlive(r.Context())
	if err != nil {
		hs.writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
		return
	}
	hs.setResponseHeaders(w)
	status := http.StatusOK
	if !resp.Alive {
		status = http.StatusServiceUnavailable
	}
	hs.writeJSONResponse(w, status, resp)
}

func (hs *HTTPHealthServer) setResponseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
}

func (hs *HTTPHealthServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		hs.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

func (hs *HTTPHealthServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	hs.setResponseHeaders(w)
	hs.writeJSONResponse(w, statusCode, map[string]interface{}{
		"error":     message,
		"timestamp": time.Now().Format(time.RFC3339),
		"status":    statusCode,
	})
}
