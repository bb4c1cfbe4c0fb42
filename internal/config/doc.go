// Package config loads, validates, and normalizes scribed configuration.
//
// Configuration lives in a TOML file (default ~/.config/scribe/config.toml)
// merged over built-in defaults. Path fields are expanded to absolute paths
// and the required directories are created on demand. The embedded
// sample_config.toml documents every key and is written by `scribed config init`.
package config
