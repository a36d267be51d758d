// Package controller keeps every screen playing in lockstep.
//
// The barrier resynchronization protocol runs in three strictly ordered
// phases: pause every player, seek every player back to the start, resume
// every player. Each phase's fan-out completes on all slots before the next
// phase begins. Pause and seek tolerate partial failure; a failed resume
// fails the whole barrier because it leaves a visibly frozen screen.
//
// Between barriers the run loop samples the reference slot's playback
// position once per poll interval. A backwards jump past the drift slack
// means the looping video wrapped around, which triggers the next barrier.
package controller
