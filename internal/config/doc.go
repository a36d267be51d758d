// Package config loads, normalizes, and validates videowall configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and validates the screen/video input the
// synchronization engine consumes: the screen count must stay within [1, 8]
// and every listed video file must exist before the engine is allowed to
// spawn anything.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
