package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ConfigLoader handles configuration loading using Viper.
type ConfigLoader struct {
	viper  *viper.Viper
	logger *logrus.Logger
}

// NewConfigLoader creates a new configuration loader.
func NewConfigLoader() *ConfigLoader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CORE_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &ConfigLoader{
		viper:  v,
		logger: logrus.New(),
	}
}

// LoadConfig loads configuration from the specified file path, falling back
// to defaults when the file is absent.
func (cl *ConfigLoader) LoadConfig(configPath string) (*Config, error) {
	cl.viper.SetConfigFile(configPath)
	cl.setDefaults()

	if err := cl.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cl.logger.Warn("Configuration file not found, using defaults")
		} else if os.IsNotExist(err) {
			cl.logger.Warn("Configuration file not found, using defaults")
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := cl.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cl.logger.Info("Configuration loaded successfully")
	return &cfg, nil
}

// setDefaults sets all default configuration values.
func (cl *ConfigLoader) setDefaults() {
	cl.viper.SetDefault("server.host", "0.0.0.0")
	cl.viper.SetDefault("server.port", 8002)
	cl.viper.SetDefault("server.websocket_path", "/ws")
	cl.viper.SetDefault("server.max_connections", 100)
	cl.viper.SetDefault("server.read_timeout", "5s")
	cl.viper.SetDefault("server.write_timeout", "5s")
	cl.viper.SetDefault("server.ping_interval", "30s")
	cl.viper.SetDefault("server.pong_wait", "60s")
	cl.viper.SetDefault("server.max_message_size", 1048576)
	cl.viper.SetDefault("server.shutdown_timeout", "10s")

	cl.viper.SetDefault("broker.host", "127.0.0.1")
	cl.viper.SetDefault("broker.api_port", 9997)
	cl.viper.SetDefault("broker.rtsp_port", 8554)
	cl.viper.SetDefault("broker.base_url", "http://127.0.0.1:9997")
	cl.viper.SetDefault("broker.timeout", "10s")
	cl.viper.SetDefault("broker.retry_attempts", 3)
	cl.viper.SetDefault("broker.retry_delay", "1s")
	cl.viper.SetDefault("broker.circuit_breaker.failure_threshold", 3)
	cl.viper.SetDefault("broker.circuit_breaker.max_failures", 10)
	cl.viper.SetDefault("broker.circuit_breaker.recovery_timeout", "30s")
	cl.viper.SetDefault("broker.connection_pool.max_idle_conns", 10)
	cl.viper.SetDefault("broker.connection_pool.max_idle_conns_per_host", 5)
	cl.viper.SetDefault("broker.connection_pool.idle_conn_timeout", "90s")

	cl.viper.SetDefault("ingest.probe_timeout", "500ms")
	cl.viper.SetDefault("ingest.health_check_interval", "5s")
	cl.viper.SetDefault("ingest.signal_settle_delay", "300ms")
	cl.viper.SetDefault("ingest.pipeline_start_timeout", "1s")
	cl.viper.SetDefault("ingest.pipeline_stop_timeout", "10s")
	cl.viper.SetDefault("ingest.max_retries", 3)
	cl.viper.SetDefault("ingest.inter_stop_delay", "200ms")

	cl.viper.SetDefault("recorder.recordings_root", "/opt/core-service/recordings")
	cl.viper.SetDefault("recorder.container_ext", "mp4")
	cl.viper.SetDefault("recorder.start_free_bytes_min", 5*1024*1024*1024)
	cl.viper.SetDefault("recorder.critical_free_bytes_min", 1*1024*1024*1024)
	cl.viper.SetDefault("recorder.stall_check_interval", "5s")
	cl.viper.SetDefault("recorder.stall_threshold_count", 3)
	cl.viper.SetDefault("recorder.disk_check_interval", "5s")
	cl.viper.SetDefault("recorder.finalize_timeout", "10s")
	cl.viper.SetDefault("recorder.write_sidecar_metadata", true)

	cl.viper.SetDefault("event_bus.replay_buffer_size", 100)
	cl.viper.SetDefault("event_bus.heartbeat_interval", "30s")
	cl.viper.SetDefault("event_bus.subscriber_queue", 64)

	cl.viper.SetDefault("logging.level", "info")
	cl.viper.SetDefault("logging.format", "text")
	cl.viper.SetDefault("logging.console_enabled", true)
	cl.viper.SetDefault("logging.file_enabled", false)
	cl.viper.SetDefault("logging.max_file_size", 10485760)
	cl.viper.SetDefault("logging.backup_count", 5)

	cl.viper.SetDefault("security.jwt_expiry_hours", 24)
	cl.viper.SetDefault("security.rate_limit_requests", 100)
	cl.viper.SetDefault("security.rate_limit_window", "1m")

	cl.viper.SetDefault("http_health.enabled", true)
	cl.viper.SetDefault("http_health.host", "0.0.0.0")
	cl.viper.SetDefault("http_health.port", 8003)
}

// GetViper returns the underlying Viper instance for advanced usage.
func (cl *ConfigLoader) GetViper() *viper.Viper {
	return cl.viper
}

// DumpEffectiveConfig writes cfg's effective (defaults + file + env) values
// to w as YAML, redacting the JWT signing secret. Used by coreserviced's
// -dump-config flag; the output is not a config file to load back.
func DumpEffectiveConfig(w io.Writer, cfg *Config) error {
	redacted := *cfg
	if redacted.Security.JWTSecretKey != "" {
		redacted.Security.JWTSecretKey = "<redacted>"
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(redacted)
}
