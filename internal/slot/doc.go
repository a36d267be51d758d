// Package slot defines the screen slot model shared by the supervisor,
// dispatcher, and controller: one immutable (display, video, endpoint) triple
// per screen, created at startup.
package slot
