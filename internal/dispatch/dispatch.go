package dispatch

import (
	"context"
	"sync"

	"videowall/internal/mpv"
	"videowall/internal/slot"
)

// Sender is the channel surface the dispatcher needs.
type Sender interface {
	Send(ctx context.Context, socketPath string, cmd mpv.Command) error
}

// Broadcast sends cmd to every slot concurrently and waits for all calls to
// complete before returning. The result vector has the same length and order
// as slots; partial failure is represented there, never as an error. Every
// goroutine lives only for the duration of the call: exactly len(slots) units
// of work, all joined before return.
func Broadcast(ctx context.Context, sender Sender, slots []slot.Slot, cmd mpv.Command) []bool {
	results := make([]bool, len(slots))

	var wg sync.WaitGroup
	wg.Add(len(slots))
	for i, s := range slots {
		go func(i int, socketPath string) {
			defer wg.Done()
			results[i] = sender.Send(ctx, socketPath, cmd) == nil
		}(i, s.SocketPath)
	}
	wg.Wait()

	return results
}

// AllOK reports whether every slot acknowledged the broadcast.
func AllOK(results []bool) bool {
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}

// FailedIndices lists the slots that did not acknowledge.
func FailedIndices(results []bool) []int {
	var failed []int
	for i, ok := range results {
		if !ok {
			failed = append(failed, i)
		}
	}
	return failed
}
