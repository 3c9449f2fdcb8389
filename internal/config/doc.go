// Package config loads, normalizes, and validates bootforge configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BOOTFORGE_PASSPHRASE and CLOUD_ENC_URL. The Config type centralizes every
// knob the service and CLI need, including the explicit key-fallback policy
// for the packaging passphrase and token.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
