// Package mpv implements the player control protocol: newline-delimited JSON
// commands over per-slot Unix domain sockets.
//
// The Channel opens one short-lived connection per command, applies a
// sub-second per-attempt timeout, and retries transient faults a bounded
// number of times so a stuck player can never stall a barrier indefinitely.
// Command constructors cover the verbs the engine uses: set_property pause,
// seek 0 absolute, get_property time-pos, and quit.
package mpv
