// Package config handles configuration loading for postbox.
//
// It provides functionality for:
//   - Loading configuration from postbox.json or postbox.yaml files
//   - Default configuration values
//   - Overrides from .env files and POSTBOX_* environment variables
package config
