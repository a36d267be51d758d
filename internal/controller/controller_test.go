package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"videowall/internal/config"
	"videowall/internal/logging"
	"videowall/internal/mpv"
	"videowall/internal/slot"
)

type fakeHealth struct {
	mu   sync.Mutex
	dead []int
}

func (h *fakeHealth) HealthCheck() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.dead...)
}

func (h *fakeHealth) kill(indices ...int) {
	h.mu.Lock()
	h.dead = append(h.dead, indices...)
	h.mu.Unlock()
}

// fakeChannel scripts query replies as a position sequence, one sample per
// poll tick, and records every sent command in arrival order.
type fakeChannel struct {
	mu        sync.Mutex
	sent      []string
	positions []float64
	posIndex  int
	queryErr  error
	sendErr   func(socketPath string, cmd mpv.Command) error
	sendDelay time.Duration

	// exhausted fires when the position script runs out.
	exhausted func()
}

func describe(cmd mpv.Command) string {
	switch {
	case cmd.Name == "set_property" && len(cmd.Args) == 2 && cmd.Args[0] == "pause":
		if cmd.Args[1] == true {
			return "pause_on"
		}
		return "pause_off"
	case cmd.Name == "seek":
		return "seek"
	default:
		return cmd.Name
	}
}

func (f *fakeChannel) Send(_ context.Context, socketPath string, cmd mpv.Command) error {
	if f.sendDelay > 0 {
		time.Sleep(f.sendDelay)
	}
	if f.sendErr != nil {
		if err := f.sendErr(socketPath, cmd); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.sent = append(f.sent, describe(cmd))
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Query(_ context.Context, _ string, _ mpv.Command) (mpv.Result, error) {
	if f.queryErr != nil {
		return mpv.Result{}, f.queryErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.posIndex >= len(f.positions) {
		if f.exhausted != nil {
			f.exhausted()
		}
		return mpv.Result{}, errors.New("position script exhausted")
	}
	pos := f.positions[f.posIndex]
	f.posIndex++
	return mpv.Result{OK: true, Data: pos}, nil
}

func (f *fakeChannel) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func testSlots(n int) []slot.Slot {
	slots := make([]slot.Slot, n)
	for i := range slots {
		slots[i] = slot.Slot{Index: i, SocketPath: slot.SocketPath("/tmp/test", i)}
	}
	return slots
}

func newTestController(t *testing.T, n int, ch Channel, health *fakeHealth, opts ...Option) *Controller {
	t.Helper()
	cfg := config.Default()
	cfg.Sync.DriftSlackSeconds = 1.0
	cfg.Sync.MaxSampleFailures = 3
	opts = append([]Option{WithIntervals(5*time.Millisecond, time.Millisecond)}, opts...)
	return New(&cfg, testSlots(n), ch, health, logging.NewNop(), opts...)
}

// runUntilExhausted drives Run until the position script runs out, then
// cancels. The sample-failure budget absorbs the trailing script-exhausted
// errors between exhaustion and cancellation.
func runUntilExhausted(t *testing.T, c *Controller, ch *fakeChannel) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch.exhausted = cancel

	err := c.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected run to end by cancellation, got %v", err)
	}
	return err
}

func TestRunResyncsExactlyOnceOnLoopWrap(t *testing.T) {
	ch := &fakeChannel{positions: []float64{5.0, 6.0, 7.0, 0.3, 1.3, 2.3}}
	c := newTestController(t, 3, ch, &fakeHealth{})

	runUntilExhausted(t, c, ch)

	// One startup barrier plus exactly one wrap-triggered barrier: the jump
	// from 7.0 to 0.3 resyncs, the forward samples after it do not.
	if got := c.Resyncs(); got != 2 {
		t.Fatalf("expected 2 barriers (startup + one wrap), got %d", got)
	}
}

func TestRunIgnoresBackwardJitterWithinSlack(t *testing.T) {
	ch := &fakeChannel{positions: []float64{5.0, 4.5, 5.2, 5.9}}
	c := newTestController(t, 2, ch, &fakeHealth{})

	runUntilExhausted(t, c, ch)

	if got := c.Resyncs(); got != 1 {
		t.Fatalf("sub-slack jitter must not trigger a resync, got %d barriers", got)
	}
}

func TestRunTwoLoopsTriggerTwoResyncs(t *testing.T) {
	// A 10 second loop sampled once per second for 25 samples wraps twice.
	var positions []float64
	for tick := 1; tick <= 25; tick++ {
		positions = append(positions, float64(tick%10))
	}
	ch := &fakeChannel{positions: positions}
	c := newTestController(t, 3, ch, &fakeHealth{})

	runUntilExhausted(t, c, ch)

	if got := c.Resyncs(); got != 3 {
		t.Fatalf("expected startup + 2 wrap barriers, got %d", got)
	}
}

func TestRunFailsWhenSlotDies(t *testing.T) {
	ch := &fakeChannel{positions: []float64{1, 2, 3, 4, 5, 6, 7, 8}}
	health := &fakeHealth{}
	c := newTestController(t, 2, ch, health)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	// Let a few clean polls pass before the crash.
	for c.HealthChecks() < 2 {
		time.Sleep(time.Millisecond)
	}
	health.kill(1)

	select {
	case err := <-done:
		if !errors.Is(err, ErrSlotDead) {
			t.Fatalf("expected ErrSlotDead, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not notice the dead slot within a poll interval")
	}
	if c.Phase() != PhaseFailed {
		t.Fatalf("expected failed phase, got %v", c.Phase())
	}
}

func TestRunAbortsAfterConsecutiveSampleFailures(t *testing.T) {
	ch := &fakeChannel{queryErr: errors.New("connection refused")}
	c := newTestController(t, 2, ch, &fakeHealth{})

	err := c.Run(context.Background())
	if !errors.Is(err, ErrObservationLost) {
		t.Fatalf("expected ErrObservationLost, got %v", err)
	}
}

func TestRunRecoversSampleFailureBudget(t *testing.T) {
	// Two failures, one success, two failures: never three in a row, so the
	// loop keeps going until the script runs out.
	ch := &fakeChannel{positions: []float64{1.0, 2.0, 3.0, 4.0}}
	wrapped := &patternChannel{inner: ch, failOn: map[int]bool{1: true, 2: true, 4: true, 5: true}}
	c := newTestController(t, 2, wrapped, &fakeHealth{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch.exhausted = cancel

	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("interleaved failures under the budget must not abort: %v", err)
	}
}

// patternChannel fails specific query attempts by ordinal, delegating the
// rest to the wrapped channel.
type patternChannel struct {
	inner  *fakeChannel
	failOn map[int]bool
	calls  int
}

func (p *patternChannel) Send(ctx context.Context, socketPath string, cmd mpv.Command) error {
	return p.inner.Send(ctx, socketPath, cmd)
}

func (p *patternChannel) Query(ctx context.Context, socketPath string, cmd mpv.Command) (mpv.Result, error) {
	p.calls++
	if p.failOn[p.calls] {
		return mpv.Result{}, errors.New("transient fault")
	}
	return p.inner.Query(ctx, socketPath, cmd)
}

func TestResynchronizePhaseOrdering(t *testing.T) {
	ch := &fakeChannel{}
	c := newTestController(t, 4, ch, &fakeHealth{})

	if err := c.Resynchronize(context.Background()); err != nil {
		t.Fatalf("resynchronize: %v", err)
	}

	commands := ch.commands()
	if len(commands) != 12 {
		t.Fatalf("expected 3 phases x 4 slots, got %d commands", len(commands))
	}
	// Phase N completes on every slot before phase N+1 starts anywhere.
	for i, cmd := range commands {
		var want string
		switch {
		case i < 4:
			want = "pause_on"
		case i < 8:
			want = "seek"
		default:
			want = "pause_off"
		}
		if cmd != want {
			t.Fatalf("command %d: got %s, want %s (full order %v)", i, cmd, want, commands)
		}
	}
	if c.Phase() != PhaseRunning {
		t.Fatalf("expected running phase, got %v", c.Phase())
	}
}

func TestResynchronizeIsIdempotentWhileHealthy(t *testing.T) {
	ch := &fakeChannel{}
	c := newTestController(t, 3, ch, &fakeHealth{})

	for i := 0; i < 3; i++ {
		if err := c.Resynchronize(context.Background()); err != nil {
			t.Fatalf("barrier %d: %v", i, err)
		}
		if c.Phase() != PhaseRunning {
			t.Fatalf("barrier %d left phase %v", i, c.Phase())
		}
		if c.LastPosition() != 0 {
			t.Fatalf("barrier %d should reset the reference position", i)
		}
	}
	if got := c.Resyncs(); got != 3 {
		t.Fatalf("expected 3 completed barriers, got %d", got)
	}
}

func TestResynchronizeRejectsOverlap(t *testing.T) {
	ch := &fakeChannel{sendDelay: 50 * time.Millisecond}
	c := newTestController(t, 2, ch, &fakeHealth{})

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		done <- c.Resynchronize(context.Background())
	}()

	<-started
	time.Sleep(10 * time.Millisecond)
	if err := c.Resynchronize(context.Background()); !errors.Is(err, ErrResyncInFlight) {
		t.Fatalf("expected ErrResyncInFlight, got %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("first barrier should complete: %v", err)
	}
}

func TestResynchronizeRefusesDeadSlot(t *testing.T) {
	ch := &fakeChannel{}
	health := &fakeHealth{}
	health.kill(0)
	c := newTestController(t, 2, ch, health)

	err := c.Resynchronize(context.Background())
	if !errors.Is(err, ErrSlotDead) {
		t.Fatalf("expected ErrSlotDead, got %v", err)
	}
	if len(ch.commands()) != 0 {
		t.Fatal("no commands should be sent around a dead slot")
	}
}

func TestResynchronizeToleratesPartialPauseFailure(t *testing.T) {
	ch := &fakeChannel{sendErr: func(socketPath string, cmd mpv.Command) error {
		if describe(cmd) == "pause_on" && socketPath == slot.SocketPath("/tmp/test", 1) {
			return errors.New("connection refused")
		}
		return nil
	}}
	c := newTestController(t, 3, ch, &fakeHealth{})

	if err := c.Resynchronize(context.Background()); err != nil {
		t.Fatalf("partial pause failure must not fail the barrier: %v", err)
	}
	if c.Phase() != PhaseRunning {
		t.Fatalf("expected running phase, got %v", c.Phase())
	}
}

func TestResynchronizeFailsOnResumeFailure(t *testing.T) {
	ch := &fakeChannel{sendErr: func(socketPath string, cmd mpv.Command) error {
		if describe(cmd) == "pause_off" && socketPath == slot.SocketPath("/tmp/test", 2) {
			return errors.New("timed out")
		}
		return nil
	}}
	c := newTestController(t, 3, ch, &fakeHealth{})

	err := c.Resynchronize(context.Background())
	if !errors.Is(err, ErrBarrierFailed) {
		t.Fatalf("expected ErrBarrierFailed, got %v", err)
	}
	if c.Phase() != PhaseFailed {
		t.Fatalf("expected failed phase, got %v", c.Phase())
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) SyncEvent(_ context.Context, kind string, position float64, _ string) {
	s.mu.Lock()
	s.events = append(s.events, fmt.Sprintf("%s@%.1f", kind, position))
	s.mu.Unlock()
}

func TestRunRecordsSyncEvents(t *testing.T) {
	ch := &fakeChannel{positions: []float64{5.0, 6.0, 0.5}}
	sink := &recordingSink{}
	c := newTestController(t, 2, ch, &fakeHealth{}, WithEventSink(sink))

	runUntilExhausted(t, c, ch)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) < 2 {
		t.Fatalf("expected startup and resync events, got %v", sink.events)
	}
	if sink.events[0] != "startup_sync@0.0" {
		t.Fatalf("first event should be startup sync, got %v", sink.events)
	}
	if sink.events[1] != "resync@0.5" {
		t.Fatalf("second event should be the wrap resync, got %v", sink.events)
	}
}
