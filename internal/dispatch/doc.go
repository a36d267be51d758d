// Package dispatch fans one player command out to every screen slot
// concurrently and joins all sends before returning, giving barrier phases
// their all-or-nothing completion point without head-of-line blocking.
package dispatch
