package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/r58io/core-service/internal/config"
	"github.com/r58io/core-service/internal/eventbus"
	"github.com/r58io/core-service/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPreviewPath(cameraID string) string {
	return "rtsp://broker/preview/" + cameraID
}

func defaultIngestConfig() config.IngestConfig {
	return config.IngestConfig{
		ProbeTimeout:          200 * time.Millisecond,
		HealthCheckInterval:   50 * time.Millisecond,
		PipelineStartTimeout:  200 * time.Millisecond,
		PipelineStopTimeout:   200 * time.Millisecond,
		MaxRetries:            3,
		InterStopDelay:        10 * time.Millisecond,
	}
}

func TestSupervisor_StartWithNoSignal_LeavesNoSignalNotError(t *testing.T) {
	cameras := []config.CameraConfig{
		{ID: "cam1", DevicePath: "/dev/video-missing-for-test", Enabled: true, Label: "HDMI 1"},
	}
	s := NewSupervisor(defaultIngestConfig(), cameras, probe.New(probe.ModeCLI, nil), testPreviewPath, nil, nil)
	defer s.Shutdown()

	err := s.Start(context.Background(), "cam1")
	require.NoError(t, err)

	status, ok := s.StatusOne("cam1")
	require.True(t, ok)
	assert.Equal(t, StateNoSignal, status.State)
}

func TestSupervisor_StatusOne_UnknownCamera(t *testing.T) {
	s := NewSupervisor(defaultIngestConfig(), nil, probe.New(probe.ModeCLI, nil), testPreviewPath, nil, nil)
	defer s.Shutdown()

	_, ok := s.StatusOne("does-not-exist")
	assert.False(t, ok)
}

func TestSupervisor_Status_UnprobedEnabledCameraReportsNoSignalStub(t *testing.T) {
	cameras := []config.CameraConfig{
		{ID: "cam1", DevicePath: "/dev/video0", Enabled: true, Label: "HDMI 1"},
	}
	s := NewSupervisor(defaultIngestConfig(), cameras, probe.New(probe.ModeCLI, nil), testPreviewPath, nil, nil)
	defer s.Shutdown()

	all := s.Status()
	require.Contains(t, all, "cam1")
	assert.Equal(t, StateNoSignal, all["cam1"].State)
}

func TestSupervisor_StopAll_UnknownCamerasDoNotError(t *testing.T) {
	s := NewSupervisor(defaultIngestConfig(), nil, probe.New(probe.ModeCLI, nil), testPreviewPath, nil, nil)
	defer s.Shutdown()
	require.NoError(t, s.StopAll(context.Background()))
}

func TestSupervisor_VariantFor(t *testing.T) {
	cameras := []config.CameraConfig{
		{ID: "cam1", DevicePath: "/dev/video0", Enabled: true, PipelineVariant: "valve"},
		{ID: "cam2", DevicePath: "/dev/video1", Enabled: true, PipelineVariant: "subscriber"},
	}
	s := NewSupervisor(defaultIngestConfig(), cameras, probe.New(probe.ModeCLI, nil), testPreviewPath, nil, nil)
	defer s.Shutdown()

	v, ok := s.VariantFor("cam1")
	require.True(t, ok)
	assert.Equal(t, VariantValve, v)

	v, ok = s.VariantFor("cam2")
	require.True(t, ok)
	assert.Equal(t, VariantSubscriber, v)

	_, ok = s.VariantFor("nonexistent")
	assert.False(t, ok)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	eventType string
	deviceID  string
	payload   map[string]interface{}
}

func (f *fakePublisher) Publish(eventType, deviceID string, payload map[string]interface{}) eventbus.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{eventType: eventType, deviceID: deviceID, payload: payload})
	return eventbus.Event{Type: eventType, DeviceID: deviceID}
}

func TestSupervisor_PublishSignalChanged_SendsHasSignalAndGeometry(t *testing.T) {
	pub := &fakePublisher{}
	s := NewSupervisor(defaultIngestConfig(), nil, probe.New(probe.ModeCLI, nil), testPreviewPath, pub, nil)
	defer s.Shutdown()

	s.publishSignalChanged("cam1", probe.CaptureCapabilities{HasSignal: true, Width: 1920, Height: 1080, Framerate: 60})

	require.Len(t, pub.events, 1)
	evt := pub.events[0]
	assert.Equal(t, "input.signal_changed", evt.eventType)
	assert.Equal(t, "cam1", evt.deviceID)
	assert.Equal(t, true, evt.payload["has_signal"])
	assert.Equal(t, 1920, evt.payload["width"])
	assert.Equal(t, 1080, evt.payload["height"])
	assert.Equal(t, 60, evt.payload["framerate"])
}

func TestSupervisor_PublishSignalChanged_NilPublisherIsNoop(t *testing.T) {
	s := NewSupervisor(defaultIngestConfig(), nil, probe.New(probe.ModeCLI, nil), testPreviewPath, nil, nil)
	defer s.Shutdown()

	assert.NotPanics(t, func() {
		s.publishSignalChanged("cam1", probe.CaptureCapabilities{HasSignal: true})
	})
}

func TestSupervisor_PublishPreview_SendsStartedAndStopped(t *testing.T) {
	pub := &fakePublisher{}
	s := NewSupervisor(defaultIngestConfig(), nil, probe.New(probe.ModeCLI, nil), testPreviewPath, pub, nil)
	defer s.Shutdown()

	s.publishPreview("preview.started", "cam1")
	s.publishPreview("preview.stopped", "cam1")

	require.Len(t, pub.events, 2)
	assert.Equal(t, "preview.started", pub.events[0].eventType)
	assert.Equal(t, "preview.stopped", pub.events[1].eventType)
}

func TestResolutionChanged(t *testing.T) {
	base := probe.CaptureCapabilities{Width: 1920, Height: 1080, Framerate: 60}

	assert.False(t, resolutionChanged(base, base))
	assert.True(t, resolutionChanged(base, probe.CaptureCapabilities{Width: 1280, Height: 720, Framerate: 60}))
	assert.True(t, resolutionChanged(base, probe.CaptureCapabilities{Width: 1920, Height: 1080, Framerate: 30}))
}
