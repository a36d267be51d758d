package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"videowall/internal/config"
	"videowall/internal/dispatch"
	"videowall/internal/logging"
	"videowall/internal/mpv"
	"videowall/internal/slot"
)

var (
	// ErrSlotDead aborts a barrier or the run loop when a player process died.
	ErrSlotDead = errors.New("slot process dead")
	// ErrBarrierFailed reports a resume phase that not every slot acknowledged.
	ErrBarrierFailed = errors.New("barrier failed")
	// ErrResyncInFlight rejects overlapping barrier invocations.
	ErrResyncInFlight = errors.New("resynchronization already in flight")
	// ErrObservationLost is fatal: the reference position could not be read
	// often enough to verify synchronization state.
	ErrObservationLost = errors.New("reference position unreadable")
)

// Phase is the barrier state machine position.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhasePausing
	PhaseSeeking
	PhaseResuming
	PhaseRunning
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePausing:
		return "pausing"
	case PhaseSeeking:
		return "seeking"
	case PhaseResuming:
		return "resuming"
	case PhaseRunning:
		return "running"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Channel is the command surface the controller drives: fire-and-forget sends
// for barrier phases and queries for position sampling.
type Channel interface {
	dispatch.Sender
	Query(ctx context.Context, socketPath string, cmd mpv.Command) (mpv.Result, error)
}

// Health exposes the supervisor's non-blocking liveness probe.
type Health interface {
	HealthCheck() []int
}

// EventSink receives synchronization events for persistence. Implementations
// must not block; errors are theirs to log.
type EventSink interface {
	SyncEvent(ctx context.Context, kind string, position float64, detail string)
}

// Option configures the controller.
type Option func(*Controller)

// WithEventSink attaches an event recorder.
func WithEventSink(sink EventSink) Option {
	return func(c *Controller) { c.sink = sink }
}

// WithIntervals overrides the poll and settle timings (primarily for tests).
func WithIntervals(poll, settle time.Duration) Option {
	return func(c *Controller) {
		c.pollInterval = poll
		c.settleDelay = settle
	}
}

// Controller runs the pause/seek/resume barrier and the drift detection loop
// that re-triggers it when the reference player wraps around its loop.
type Controller struct {
	slots   []slot.Slot
	channel Channel
	health  Health
	logger  *slog.Logger
	sink    EventSink

	settleDelay    time.Duration
	pollInterval   time.Duration
	driftSlack     float64
	maxSampleFails int
	refIndex       int

	// barrierMu serializes barrier invocations: one resync in flight at a
	// time, never overlapping with startup or shutdown paths.
	barrierMu sync.Mutex

	phase        atomic.Int32
	lastPosition atomicFloat
	healthChecks atomic.Int64
	resyncs      atomic.Int64
}

// New constructs a controller over the given slots. Slot 0 is the reference
// slot whose position drives drift detection.
func New(cfg *config.Config, slots []slot.Slot, channel Channel, health Health, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		slots:          slots,
		channel:        channel,
		health:         health,
		logger:         logging.NewComponentLogger(logger, "controller"),
		settleDelay:    time.Duration(cfg.Sync.SettleDelayMillis) * time.Millisecond,
		pollInterval:   time.Duration(cfg.Sync.PollIntervalSeconds) * time.Second,
		driftSlack:     cfg.Sync.DriftSlackSeconds,
		maxSampleFails: cfg.Sync.MaxSampleFailures,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phase returns the current barrier phase.
func (c *Controller) Phase() Phase {
	return Phase(c.phase.Load())
}

// LastPosition returns the most recent reference slot position sample.
func (c *Controller) LastPosition() float64 {
	return c.lastPosition.Load()
}

// HealthChecks returns how many liveness probes the run loop has performed.
func (c *Controller) HealthChecks() int64 {
	return c.healthChecks.Load()
}

// Resyncs returns how many barriers have completed since startup.
func (c *Controller) Resyncs() int64 {
	return c.resyncs.Load()
}

func (c *Controller) setPhase(p Phase) {
	old := Phase(c.phase.Swap(int32(p)))
	if old != p {
		c.logger.Info("phase transition",
			logging.String("from", old.String()),
			logging.String(logging.FieldPhase, p.String()),
			logging.String(logging.FieldEventType, "phase_transition"),
		)
	}
}

// Resynchronize runs the barrier: pause everything, rewind everything to the
// absolute start, resume everything. Phase N's broadcast fully completes
// before phase N+1 begins; that ordering is the entire correctness mechanism
// and must not be relaxed. Returns ErrResyncInFlight when a barrier is
// already running, ErrSlotDead when the precondition fails, and
// ErrBarrierFailed when the resume phase was not acknowledged by every slot.
func (c *Controller) Resynchronize(ctx context.Context) error {
	if !c.barrierMu.TryLock() {
		return ErrResyncInFlight
	}
	defer c.barrierMu.Unlock()

	// Never attempt to sync around a dead slot.
	if dead := c.health.HealthCheck(); len(dead) > 0 {
		c.setPhase(PhaseFailed)
		return fmt.Errorf("%w: screens %v", ErrSlotDead, dead)
	}

	c.setPhase(PhasePausing)
	results := dispatch.Broadcast(ctx, c.channel, c.slots, mpv.Pause(true))
	c.warnPartial("pause", results)
	if err := c.settle(ctx); err != nil {
		return err
	}

	c.setPhase(PhaseSeeking)
	results = dispatch.Broadcast(ctx, c.channel, c.slots, mpv.SeekStart())
	c.warnPartial("seek", results)
	if err := c.settle(ctx); err != nil {
		return err
	}

	c.setPhase(PhaseResuming)
	results = dispatch.Broadcast(ctx, c.channel, c.slots, mpv.Pause(false))
	if !dispatch.AllOK(results) {
		// A stuck pause or seek self-corrects on the next resync; a stuck
		// resume leaves a frozen panel, so the whole barrier fails.
		c.setPhase(PhaseFailed)
		return fmt.Errorf("%w: resume not acknowledged by screens %v", ErrBarrierFailed, dispatch.FailedIndices(results))
	}

	c.lastPosition.Store(0)
	c.resyncs.Add(1)
	c.setPhase(PhaseRunning)
	c.logger.Info("players synchronized", logging.String(logging.FieldEventType, "resync_complete"))
	return nil
}

func (c *Controller) warnPartial(phase string, results []bool) {
	if failed := dispatch.FailedIndices(results); len(failed) > 0 {
		c.logger.Warn("barrier phase partially failed",
			logging.String(logging.FieldPhase, phase),
			logging.Any("screens", failed),
			logging.String(logging.FieldEventType, "barrier_phase_partial"),
			logging.String(logging.FieldImpact, "affected screens converge on the next resync"),
		)
	}
}

// Run performs the initial synchronization and then watches the reference
// slot for loop wrap-around, re-running the barrier whenever the observed
// position jumps backwards past the drift slack. It returns when the context
// is cancelled, when a slot dies, or when the reference position stays
// unreadable past the configured failure budget.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Resynchronize(ctx); err != nil {
		return fmt.Errorf("initial synchronization: %w", err)
	}
	c.record(ctx, "startup_sync", 0, "initial barrier complete")

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	sampleFailures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		c.healthChecks.Add(1)
		if dead := c.health.HealthCheck(); len(dead) > 0 {
			c.setPhase(PhaseFailed)
			c.record(ctx, "slot_death", c.lastPosition.Load(), fmt.Sprintf("screens %v", dead))
			return fmt.Errorf("%w: screens %v", ErrSlotDead, dead)
		}

		pos, err := c.samplePosition(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sampleFailures++
			c.logger.Warn("reference position sample failed",
				logging.Int("consecutive_failures", sampleFailures),
				logging.Error(err),
			)
			if sampleFailures >= c.maxSampleFails {
				c.setPhase(PhaseFailed)
				c.record(ctx, "observation_lost", c.lastPosition.Load(), err.Error())
				return fmt.Errorf("%w: %d consecutive sample failures: %v", ErrObservationLost, sampleFailures, err)
			}
			continue
		}
		sampleFailures = 0

		last := c.lastPosition.Load()
		if pos < last-c.driftSlack {
			c.logger.Info("loop wrap detected",
				logging.Float64("position", pos),
				logging.Float64("last_position", last),
				logging.String(logging.FieldEventType, "loop_wrap"),
			)
			c.record(ctx, "resync", pos, fmt.Sprintf("wrap from %.2f to %.2f", last, pos))
			if err := c.Resynchronize(ctx); err != nil {
				if errors.Is(err, ErrSlotDead) {
					return err
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// A failed mid-run barrier is not fatal: the wall stays
				// degraded until the next wrap triggers another attempt.
				c.logger.Warn("resynchronization failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "screens remain out of sync until the next loop wrap"),
				)
				c.lastPosition.Store(pos)
			}
			continue
		}
		c.lastPosition.Store(pos)
	}
}

// samplePosition queries the reference slot's playback position.
func (c *Controller) samplePosition(ctx context.Context) (float64, error) {
	ref := c.slots[c.refIndex]
	result, err := c.channel.Query(ctx, ref.SocketPath, mpv.TimePos())
	if err != nil {
		return 0, err
	}
	pos, ok := result.Float()
	if !ok {
		return 0, fmt.Errorf("screen %d returned a non-numeric position", ref.Index)
	}
	return pos, nil
}

func (c *Controller) record(ctx context.Context, kind string, position float64, detail string) {
	if c.sink != nil {
		c.sink.SyncEvent(ctx, kind, position, detail)
	}
}

func (c *Controller) settle(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.settleDelay):
		return nil
	}
}

type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

func (f *atomicFloat) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}
