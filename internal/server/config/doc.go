// Package config provides server configuration for the page server.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default configuration values
//   - verify.go: validation (backend format, driver settings, durations)
//   - sanitize.go: log sanitization (hide credentials)
//
// Configuration is loaded via internal/infra/confloader from defaults, an
// optional YAML file and PAGESERVER_* environment variables. It is built
// once at startup and never mutated afterwards; only log.level may be
// reloaded at runtime.
package config
