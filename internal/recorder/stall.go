package recorder

import (
	"context"
	"os"
	"time"

	"github.com/r58io/core-service/internal/apperr"
	"github.com/r58io/core-service/internal/metrics"
	"github.com/r58io/core-service/internal/sysmetrics"
)

const (
	defaultStallCheckInterval  = 5 * time.Second
	defaultStallThresholdCount = 3
)

// runStallLoop polls each active recording's file size every
// StallCheckInterval. Three consecutive observations with no growth emit a
// stall event; growth resets the counter. Stalling is informational only —
// it never stops a recording on its own, per spec.md §4.4.
//
// The disk-full supervisor rides the same ticker rather than running its own
// goroutine: disk-space checks are synchronous and short, and spec.md §5
// budgets exactly one stall-detection task per active recorder set.
func (c *Coordinator) runStallLoop(ctx context.Context, sess *Session) {
	interval := c.cfg.StallCheckInterval
	if interval <= 0 {
		interval = defaultStallCheckInterval
	}
	threshold := c.cfg.StallThresholdCount
	if threshold <= 0 {
		threshold = defaultStallThresholdCount
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkStall(sess, threshold)
		}
	}
}

func (c *Coordinator) checkStall(sess *Session, threshold int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sess.State != SessionRecording {
		return
	}

	if free, err := sysmetrics.FreeBytes(c.cfg.RecordingsRoot); err == nil && int64(free) < c.cfg.CriticalFreeBytesMin {
		c.stopLocked(context.Background(), sess)
		if c.pub != nil {
			c.pub.Publish("pipeline.error", "", map[string]interface{}{
				"kind":       string(apperr.KindStorageCritical),
				"session_id": sess.ID,
				"free_bytes": free,
			})
		}
		return
	}

	for camID, rec := range sess.Recordings {
		if rec.State != RecordingActive {
			continue
		}
		info, err := os.Stat(rec.OutputPath)
		if err != nil {
			continue
		}
		size := info.Size()
		if size > rec.BytesWritten {
			metrics.ObserveBytesWritten(camID, size-rec.BytesWritten)
			rec.BytesWritten = size
			rec.noGrowthCount = 0
			continue
		}
		rec.noGrowthCount++
		if rec.noGrowthCount >= threshold {
			rec.noGrowthCount = 0
			metrics.RecorderStallTotal.WithLabelValues(camID).Inc()
			if c.pub != nil {
				c.pub.Publish("recorder.progress", camID, map[string]interface{}{
					"session_id": sess.ID,
					"camera_id":  camID,
					"bytes":      rec.BytesWritten,
					"stalled":    true,
				})
			}
		}
	}
}
