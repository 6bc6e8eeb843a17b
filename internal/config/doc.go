// Package config loads and validates the TOML configuration for the
// ingestion pipeline. Defaults come from Default; Load layers a config file
// on top and normalizes paths.
package config
