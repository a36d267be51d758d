// Package eventlog persists run and synchronization history to SQLite so
// operators can inspect past sessions: when the wall started, how often it
// resynced, and why it stopped.
package eventlog
