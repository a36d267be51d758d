// Package layout consumes the monitor mapping file produced by the external
// calibration tool and orders video assignments by physical screen position.
//
// The mapping is optional: without it, videos run in config order and the
// middle slot carries audio, a documented low-confidence fallback for setups
// where stable hardware identity is unavailable.
package layout
