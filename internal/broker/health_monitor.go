package broker

import (
	"context"
	"sync"
	"time"

	"github.com/r58io/core-service/internal/health"
	"github.com/r58io/core-service/internal/logging"
)

// HealthMonitor periodically probes the broker and exposes a
// health.ComponentStatus source so the process-wide aggregator can fold the
// broker's reachability into /health/detailed.
type HealthMonitor struct {
	client        Client
	logger        *logging.Logger
	checkInterval time.Duration

	mu          sync.RWMutex
	lastStatus  health.Status
	lastChecked time.Time
	lastErr     error

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHealthMonitor creates a monitor that checks client on checkInterval.
func NewHealthMonitor(client Client, checkInterval time.Duration, logger *logging.Logger) *HealthMonitor {
	return &HealthMonitor{
		client:        client,
		logger:        logger,
		checkInterval: checkInterval,
		lastStatus:    health.StatusDegraded,
		done:          make(chan struct{}),
	}
}

// Start begins the periodic probe loop in its own goroutine.
func (h *HealthMonitor) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	go h.loop(loopCtx)
}

func (h *HealthMonitor) loop(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.checkInterval)
	defer ticker.Stop()

	h.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.check(ctx)
		}
	}
}

func (h *HealthMonitor) check(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, h.checkInterval)
	defer cancel()

	err := h.client.HealthCheck(checkCtx)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastChecked = time.Now()
	h.lastErr = err
	if err != nil {
		h.lastStatus = health.StatusUnhealthy
		h.logger.WithError(err).Debug("broker health check failed")
	} else {
		h.lastStatus = health.StatusHealthy
	}
}

// Stop cancels the probe loop and waits for it to exit.
func (h *HealthMonitor) Stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}
}

// ComponentStatus satisfies health.Aggregator's Register signature.
func (h *HealthMonitor) ComponentStatus() health.ComponentStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	detail := "broker reachable"
	if h.lastErr != nil {
		detail = h.lastErr.Error()
	}
	return health.ComponentStatus{
		Name:      "broker",
		Status:    h.lastStatus,
		Detail:    detail,
		UpdatedAt: h.lastChecked,
	}
}
