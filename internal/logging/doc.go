// Package logging wraps log/slog with the handlers and attribute helpers the
// engine and CLI share.
//
// It provides a console handler for interactive runs, a JSON handler for
// machine consumption, and standardized field keys (component, screen,
// run_id, phase, event_type) so every state transition, retry, and fatal
// condition is queryable from the log stream.
package logging
