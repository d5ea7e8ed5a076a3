// Package config defines the core service's configuration schema and
// loading machinery: Viper-backed YAML + environment variable binding,
// defaulting, validation, and hot reload of the on-disk config file.
package config
