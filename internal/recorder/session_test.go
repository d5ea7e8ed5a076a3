package recorder

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/r58io/core-service/internal/apperr"
	"github.com/r58io/core-service/internal/config"
	"github.com/r58io/core-service/internal/eventbus"
	"github.com/stretchr/testify/require"
)

type fakeVariants struct {
	variants map[string]Variant
}

func (f *fakeVariants) VariantFor(cameraID string) (Variant, bool) {
	v, ok := f.variants[cameraID]
	return v, ok
}

type fakeValves struct {
	mu     sync.Mutex
	opened map[string]bool
}

func newFakeValves() *fakeValves { return &fakeValves{opened: map[string]bool{}} }

func (f *fakeValves) OpenValve(cameraID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened[cameraID] = true
	return nil
}

func (f *fakeValves) CloseValve(cameraID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened[cameraID] = false
	return nil
}

type fakePuller struct{}

func (fakePuller) RecordingPullURL(cameraID string) string {
	return "rtsp://127.0.0.1:8554/" + cameraID
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) Publish(eventType, deviceID string, payload map[string]interface{}) eventbus.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return eventbus.Event{Type: eventType, DeviceID: deviceID, Payload: payload}
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	copy(out, f.events)
	return out
}

func testCoordinator(t *testing.T, variants map[string]Variant) (*Coordinator, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.RecorderConfig{
		RecordingsRoot:        dir,
		ContainerExt:          "mp4",
		StartFreeBytesMin:     1,
		CriticalFreeBytesMin:  0,
		StallCheckInterval:    10 * time.Millisecond,
		StallThresholdCount:   3,
		DiskCheckInterval:     10 * time.Millisecond,
		FinalizeTimeout:       time.Second,
		WriteSidecarMetadata:  false,
	}
	c := NewCoordinator(cfg, &fakeVariants{variants: variants}, newFakeValves(), fakePuller{}, &fakePublisher{}, nil)
	return c, dir
}

func TestStartSession_SubscriberVariant_CreatesOutputFiles(t *testing.T) {
	c, dir := testCoordinator(t, map[string]Variant{"cam1": VariantSubscriber})

	desc, err := c.StartSession(context.Background(), StartSessionRequest{Cameras: []string{"cam1"}})
	require.NoError(t, err)
	require.Equal(t, SessionRecording, desc.State)
	require.Len(t, desc.Recordings, 1)

	_, err = os.Stat(desc.Recordings[0].OutputPath)
	require.NoError(t, err)
	require.Contains(t, desc.Recordings[0].OutputPath, dir)
}

func TestStartSession_ValveVariant_OpensValve(t *testing.T) {
	valves := newFakeValves()
	cfg := config.RecorderConfig{RecordingsRoot: t.TempDir(), ContainerExt: "mp4", StartFreeBytesMin: 1, FinalizeTimeout: time.Second}
	c := NewCoordinator(cfg, &fakeVariants{variants: map[string]Variant{"cam1": VariantValve}}, valves, fakePuller{}, &fakePublisher{}, nil)

	_, err := c.StartSession(context.Background(), StartSessionRequest{Cameras: []string{"cam1"}})
	require.NoError(t, err)

	valves.mu.Lock()
	defer valves.mu.Unlock()
	require.True(t, valves.opened["cam1"])
}

func TestStartSession_IdempotentReplay_ReturnsActiveSessionUnchanged(t *testing.T) {
	c, _ := testCoordinator(t, map[string]Variant{"cam1": VariantSubscriber})

	req := StartSessionRequest{IdempotencyKey: "session_fixed", Cameras: []string{"cam1"}}
	first, err := c.StartSession(context.Background(), req)
	require.NoError(t, err)

	second, err := c.StartSession(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.StartedAt, second.StartedAt)
}

func TestStartSession_ConflictingSessionWhileRecording(t *testing.T) {
	c, _ := testCoordinator(t, map[string]Variant{"cam1": VariantSubscriber})

	_, err := c.StartSession(context.Background(), StartSessionRequest{IdempotencyKey: "session_a", Cameras: []string{"cam1"}})
	require.NoError(t, err)

	_, err = c.StartSession(context.Background(), StartSessionRequest{IdempotencyKey: "session_b", Cameras: []string{"cam1"}})
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindSessionConflict))
}

func TestStartSession_InsufficientStorageRejected(t *testing.T) {
	cfg := config.RecorderConfig{RecordingsRoot: t.TempDir(), ContainerExt: "mp4", StartFreeBytesMin: 1 << 62, FinalizeTimeout: time.Second}
	c := NewCoordinator(cfg, &fakeVariants{variants: map[string]Variant{"cam1": VariantSubscriber}}, newFakeValves(), fakePuller{}, &fakePublisher{}, nil)

	_, err := c.StartSession(context.Background(), StartSessionRequest{Cameras: []string{"cam1"}})
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindStorageInsufficient))
}

func TestStopSession_NotRecordingIsNoOp(t *testing.T) {
	c, _ := testCoordinator(t, map[string]Variant{"cam1": VariantSubscriber})

	desc, err := c.StopSession(context.Background(), "anything")
	require.NoError(t, err)
	require.Equal(t, SessionDescriptor{}, desc)
}

func TestStopSession_MismatchedIDIsConflict(t *testing.T) {
	c, _ := testCoordinator(t, map[string]Variant{"cam1": VariantSubscriber})

	_, err := c.StartSession(context.Background(), StartSessionRequest{IdempotencyKey: "session_a", Cameras: []string{"cam1"}})
	require.NoError(t, err)

	_, err = c.StopSession(context.Background(), "session_b")
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindSessionConflict))
}

func TestStopSession_StopsAllRecordings(t *testing.T) {
	c, _ := testCoordinator(t, map[string]Variant{"cam1": VariantSubscriber, "cam2": VariantSubscriber})

	started, err := c.StartSession(context.Background(), StartSessionRequest{IdempotencyKey: "session_a", Cameras: []string{"cam1", "cam2"}})
	require.NoError(t, err)

	stopped, err := c.StopSession(context.Background(), started.ID)
	require.NoError(t, err)
	require.Equal(t, SessionStopped, stopped.State)
	for _, r := range stopped.Recordings {
		require.Equal(t, RecordingStopped, r.State)
	}
}

func TestStall_EmitsStallEventAfterThresholdWithNoGrowth(t *testing.T) {
	pub := &fakePublisher{}
	cfg := config.RecorderConfig{
		RecordingsRoot:       t.TempDir(),
		ContainerExt:         "mp4",
		StartFreeBytesMin:    1,
		CriticalFreeBytesMin: 0,
		StallCheckInterval:   5 * time.Millisecond,
		StallThresholdCount:  3,
		FinalizeTimeout:      time.Second,
	}
	c := NewCoordinator(cfg, &fakeVariants{variants: map[string]Variant{"cam1": VariantSubscriber}}, newFakeValves(), fakePuller{}, pub, nil)

	_, err := c.StartSession(context.Background(), StartSessionRequest{IdempotencyKey: "session_stall", Cameras: []string{"cam1"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, e := range pub.types() {
			if e == "recorder.progress" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	_, _ = c.StopSession(context.Background(), "session_stall")
}

func TestDiskGuard_StopsSessionWhenBelowCriticalThreshold(t *testing.T) {
	pub := &fakePublisher{}
	cfg := config.RecorderConfig{
		RecordingsRoot:       t.TempDir(),
		ContainerExt:         "mp4",
		StartFreeBytesMin:    1,
		CriticalFreeBytesMin: 1 << 62,
		StallCheckInterval:   5 * time.Millisecond,
		StallThresholdCount:  3,
		FinalizeTimeout:      time.Second,
	}
	c := NewCoordinator(cfg, &fakeVariants{variants: map[string]Variant{"cam1": VariantSubscriber}}, newFakeValves(), fakePuller{}, pub, nil)

	_, err := c.StartSession(context.Background(), StartSessionRequest{IdempotencyKey: "session_disk", Cameras: []string{"cam1"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.Status().State == SessionStopped
	}, time.Second, 5*time.Millisecond)

	found := false
	for _, e := range pub.types() {
		if e == "pipeline.error" {
			found = true
		}
	}
	require.True(t, found)
}
