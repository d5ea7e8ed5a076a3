package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileFallsBackToDefaults(t *testing.T) {
	loader := NewConfigLoader()

	cfg, err := loader.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8002, cfg.Server.Port)
	assert.Equal(t, "/ws", cfg.Server.WebSocketPath)
	assert.Equal(t, "127.0.0.1", cfg.Broker.Host)
	assert.Equal(t, 9997, cfg.Broker.APIPort)
	assert.Equal(t, int64(5*1024*1024*1024), cfg.Recorder.StartFreeBytesMin)
	assert.Equal(t, 100, cfg.EventBus.ReplayBufferSize)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
cameras:
  - id: cam1
    device_path: /dev/video0
recorder:
  recordings_root: /data/recordings
`), 0o644))

	cfg, err := NewConfigLoader().LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset fields keep their default")
	require.Len(t, cfg.Cameras, 1)
	assert.Equal(t, "cam1", cfg.Cameras[0].ID)
	assert.Equal(t, "/data/recordings", cfg.Recorder.RecordingsRoot)
}

func TestLoadConfig_RejectsInvalidPort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 0\n"), 0o644))

	_, err := NewConfigLoader().LoadConfig(path)
	require.Error(t, err)
}

func TestValidate_DuplicateCameraIDRejected(t *testing.T) {
	cfg := validConfig()
	cfg.Cameras = append(cfg.Cameras, cfg.Cameras[0])

	err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate camera id")
}

func TestValidate_CriticalNotBelowStartThresholdRejected(t *testing.T) {
	cfg := validConfig()
	cfg.Recorder.CriticalFreeBytesMin = cfg.Recorder.StartFreeBytesMin

	err := Validate(&cfg)
	require.Error(t, err)
}

func TestValidate_UnknownPipelineVariantRejected(t *testing.T) {
	cfg := validConfig()
	cfg.Cameras[0].PipelineVariant = "bogus"

	err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline_variant")
}

func TestDumpEffectiveConfig_RedactsJWTSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Security.JWTSecretKey = "super-secret"

	var buf bytes.Buffer
	require.NoError(t, DumpEffectiveConfig(&buf, &cfg))

	assert.NotContains(t, buf.String(), "super-secret")
	assert.Contains(t, buf.String(), "<redacted>")
}

func validConfig() Config {
	return Config{
		Server:  ServerConfig{Port: 8002, MaxConnections: 10},
		Broker:  BrokerConfig{APIPort: 9997, RTSPPort: 8554, CircuitBreaker: CircuitBreakerConfig{FailureThreshold: 3}},
		Cameras: []CameraConfig{{ID: "cam1", DevicePath: "/dev/video0"}},
		Ingest:  IngestConfig{HealthCheckInterval: 5e9},
		Recorder: RecorderConfig{
			RecordingsRoot:       "/data",
			StartFreeBytesMin:    2,
			CriticalFreeBytesMin: 1,
			StallThresholdCount:  3,
		},
		EventBus: EventBusConfig{ReplayBufferSize: 10, SubscriberQueue: 10},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}
