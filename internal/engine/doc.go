// Package engine coordinates one videowall session end to end.
//
// It wires configuration, the monitor layout, the player supervisor, the
// synchronization controller, and run history into a single lifecycle with
// flock-based locking to prevent multiple instances. Teardown is exactly-once
// no matter how many paths reach it: signal, fatal sync fault, or a player
// death all converge on the same shutdown.
package engine
