// Package config owns the application TOML: defaults, tilde and path
// expansion, per-section validation, and environment fallbacks such as
// NTFY_TOPIC. Load resolves the effective file the same way every
// command does, so paths, endpoints, and workflow knobs arrive
// normalized everywhere.
//
// The pipeline recipe is a separate YAML document and lives in
// internal/lossless, not here.
package config
