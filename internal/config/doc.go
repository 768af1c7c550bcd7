// Package config loads, normalizes, and validates Scribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REDIS_ADDR and OPENAI_API_KEY. The Config type centralizes every knob the
// worker daemon and CLI need, from broker connection details to retrieval
// chain limits.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
