// Package config defines the application configuration structure and
// loading logic. Configuration is sourced from environment variables with
// the FORGE_ prefix and validated before use.
package config
