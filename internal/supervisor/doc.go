// Package supervisor owns the player processes: one per screen slot, launched
// with per-slot IPC sockets, health-probed without blocking, and torn down
// with a quit-SIGTERM-SIGKILL escalation. Dead players are never respawned;
// the engine treats a dead slot as fatal and shuts the wall down.
package supervisor
