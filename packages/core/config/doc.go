// Package config handles configuration loading and management for hitcron.
//
// It provides functionality for:
//   - Loading configuration from hitcron.yaml or hitcron.json files
//   - Default configuration values
//   - HITCRON_ environment variable overrides (smtp.host -> HITCRON_SMTP_HOST)
package config
