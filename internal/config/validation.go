package config

import "fmt"

// Validate checks the fully-unmarshalled configuration for internal
// consistency. It runs once at load time and once again after every hot
// reload, before the new configuration is handed to the reload callback.
func Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConnections <= 0 {
		return fmt.Errorf("server.max_connections must be positive, got %d", cfg.Server.MaxConnections)
	}

	if cfg.Broker.APIPort <= 0 || cfg.Broker.APIPort > 65535 {
		return fmt.Errorf("broker.api_port must be between 1 and 65535, got %d", cfg.Broker.APIPort)
	}
	if cfg.Broker.RTSPPort <= 0 || cfg.Broker.RTSPPort > 65535 {
		return fmt.Errorf("broker.rtsp_port must be between 1 and 65535, got %d", cfg.Broker.RTSPPort)
	}
	if cfg.Broker.RetryAttempts < 0 {
		return fmt.Errorf("broker.retry_attempts must not be negative, got %d", cfg.Broker.RetryAttempts)
	}
	if cfg.Broker.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("broker.circuit_breaker.failure_threshold must be positive, got %d", cfg.Broker.CircuitBreaker.FailureThreshold)
	}

	seen := make(map[string]bool, len(cfg.Cameras))
	for _, cam := range cfg.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("camera entry missing id")
		}
		if seen[cam.ID] {
			return fmt.Errorf("duplicate camera id %q", cam.ID)
		}
		seen[cam.ID] = true

		if cam.DevicePath == "" {
			return fmt.Errorf("camera %q missing device_path", cam.ID)
		}
		switch cam.PipelineVariant {
		case "", "subscriber", "valve":
		default:
			return fmt.Errorf("camera %q has unknown pipeline_variant %q (want \"subscriber\" or \"valve\")", cam.ID, cam.PipelineVariant)
		}
		if cam.PreviewBitrate < 0 || cam.RecordingBitrate < 0 {
			return fmt.Errorf("camera %q has a negative bitrate", cam.ID)
		}
	}

	if cfg.Ingest.MaxRetries < 0 {
		return fmt.Errorf("ingest.max_retries must not be negative, got %d", cfg.Ingest.MaxRetries)
	}
	if cfg.Ingest.HealthCheckInterval <= 0 {
		return fmt.Errorf("ingest.health_check_interval must be positive")
	}

	if cfg.Recorder.RecordingsRoot == "" {
		return fmt.Errorf("recorder.recordings_root must not be empty")
	}
	if cfg.Recorder.CriticalFreeBytesMin >= cfg.Recorder.StartFreeBytesMin {
		return fmt.Errorf("recorder.critical_free_bytes_min (%d) must be less than recorder.start_free_bytes_min (%d)",
			cfg.Recorder.CriticalFreeBytesMin, cfg.Recorder.StartFreeBytesMin)
	}
	if cfg.Recorder.StallThresholdCount <= 0 {
		return fmt.Errorf("recorder.stall_threshold_count must be positive, got %d", cfg.Recorder.StallThresholdCount)
	}

	if cfg.EventBus.ReplayBufferSize <= 0 {
		return fmt.Errorf("event_bus.replay_buffer_size must be positive, got %d", cfg.EventBus.ReplayBufferSize)
	}
	if cfg.EventBus.SubscriberQueue <= 0 {
		return fmt.Errorf("event_bus.subscriber_queue must be positive, got %d", cfg.EventBus.SubscriberQueue)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return fmt.Errorf("logging.level has unknown value %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", cfg.Logging.Format)
	}

	if cfg.HTTPHealth.Enabled && (cfg.HTTPHealth.Port <= 0 || cfg.HTTPHealth.Port > 65535) {
		return fmt.Errorf("http_health.port must be between 1 and 65535, got %d", cfg.HTTPHealth.Port)
	}

	return nil
}
