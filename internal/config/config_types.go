package config

import "time"

// Config represents the complete core service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Cameras   []CameraConfig  `mapstructure:"cameras"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Recorder  RecorderConfig  `mapstructure:"recorder"`
	EventBus  EventBusConfig  `mapstructure:"event_bus"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Security  SecurityConfig  `mapstructure:"security"`
	HTTPHealth HTTPHealthConfig `mapstructure:"http_health"`
}

// ServerConfig represents the control API's WebSocket server settings.
type ServerConfig struct {
	Host                 string        `mapstructure:"host"`
	Port                 int           `mapstructure:"port"`
	WebSocketPath        string        `mapstructure:"websocket_path"`
	MaxConnections       int           `mapstructure:"max_connections"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout"`
	PingInterval         time.Duration `mapstructure:"ping_interval"`
	PongWait             time.Duration `mapstructure:"pong_wait"`
	MaxMessageSize       int64         `mapstructure:"max_message_size"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
}

// BrokerConfig represents the external media broker integration (RTSP
// republishing, low-latency WebRTC egress) the core never decodes through.
type BrokerConfig struct {
	Host           string        `mapstructure:"host"`
	APIPort        int           `mapstructure:"api_port"`
	RTSPPort       int           `mapstructure:"rtsp_port"`
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`

	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	ConnectionPool ConnectionPoolConfig `mapstructure:"connection_pool"`
}

// CircuitBreakerConfig tunes the broker client's circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	MaxFailures      int           `mapstructure:"max_failures"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
}

// ConnectionPoolConfig tunes the broker HTTP client's transport pool.
type ConnectionPoolConfig struct {
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
}

// CameraConfig is the immutable, load-time configuration record for one
// capture device (spec.md §3 Camera).
type CameraConfig struct {
	ID               string `mapstructure:"id"`
	DevicePath       string `mapstructure:"device_path"`
	Enabled          bool   `mapstructure:"enabled"`
	PreviewBitrate   int    `mapstructure:"preview_bitrate"`
	RecordingBitrate int    `mapstructure:"recording_bitrate"`
	DefaultWidth     int    `mapstructure:"default_width"`
	DefaultHeight    int    `mapstructure:"default_height"`
	DefaultFramerate int    `mapstructure:"default_framerate"`
	Subdevice        string `mapstructure:"subdevice"`
	Label            string `mapstructure:"label"`
	PipelineVariant  string `mapstructure:"pipeline_variant"` // "subscriber" (A) or "valve" (B)
}

// IngestConfig tunes the device probe and ingest supervisor (C1/C3).
type IngestConfig struct {
	ProbeTimeout         time.Duration `mapstructure:"probe_timeout"`
	HealthCheckInterval  time.Duration `mapstructure:"health_check_interval"`
	SignalSettleDelay    time.Duration `mapstructure:"signal_settle_delay"`
	PipelineStartTimeout time.Duration `mapstructure:"pipeline_start_timeout"`
	PipelineStopTimeout  time.Duration `mapstructure:"pipeline_stop_timeout"`
	MaxRetries           int           `mapstructure:"max_retries"`
	InterStopDelay       time.Duration `mapstructure:"inter_stop_delay"`
}

// RecorderConfig tunes the recorder set and session coordinator (C4).
type RecorderConfig struct {
	RecordingsRoot        string        `mapstructure:"recordings_root"`
	ContainerExt          string        `mapstructure:"container_ext"`
	StartFreeBytesMin     int64         `mapstructure:"start_free_bytes_min"`
	CriticalFreeBytesMin  int64         `mapstructure:"critical_free_bytes_min"`
	StallCheckInterval    time.Duration `mapstructure:"stall_check_interval"`
	StallThresholdCount   int           `mapstructure:"stall_threshold_count"`
	DiskCheckInterval     time.Duration `mapstructure:"disk_check_interval"`
	FinalizeTimeout       time.Duration `mapstructure:"finalize_timeout"`
	WriteSidecarMetadata  bool          `mapstructure:"write_sidecar_metadata"`
}

// EventBusConfig tunes the broadcast bus's replay buffer and heartbeat (C5).
type EventBusConfig struct {
	ReplayBufferSize  int           `mapstructure:"replay_buffer_size"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	SubscriberQueue   int           `mapstructure:"subscriber_queue"`
}

// LoggingConfig represents logging configuration settings.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`
	Format         string `mapstructure:"format"`
	FileEnabled    bool   `mapstructure:"file_enabled"`
	FilePath       string `mapstructure:"file_path"`
	MaxFileSize    int    `mapstructure:"max_file_size"`
	BackupCount    int    `mapstructure:"backup_count"`
	ConsoleEnabled bool   `mapstructure:"console_enabled"`
}

// SecurityConfig represents control-API authentication settings.
type SecurityConfig struct {
	JWTSecretKey      string        `mapstructure:"jwt_secret_key"`
	JWTExpiryHours    int           `mapstructure:"jwt_expiry_hours"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

// HTTPHealthConfig configures the container-orchestration health endpoint.
type HTTPHealthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}
