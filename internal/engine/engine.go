package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"videowall/internal/config"
	"videowall/internal/controller"
	"videowall/internal/eventlog"
	"videowall/internal/layout"
	"videowall/internal/logging"
	"videowall/internal/mpv"
	"videowall/internal/slot"
	"videowall/internal/supervisor"
)

// ErrAlreadyRunning reports that another engine instance holds the lock.
var ErrAlreadyRunning = errors.New("another videowall instance is already running")

// Option configures the engine.
type Option func(*Engine)

// WithChannel injects the command channel (primarily for tests).
func WithChannel(ch controller.Channel) Option {
	return func(e *Engine) {
		if ch != nil {
			e.channel = ch
		}
	}
}

// WithSupervisorOptions forwards options to the supervisor.
func WithSupervisorOptions(opts ...supervisor.Option) Option {
	return func(e *Engine) { e.supOpts = append(e.supOpts, opts...) }
}

// WithControllerOptions forwards options to the controller.
func WithControllerOptions(opts ...controller.Option) Option {
	return func(e *Engine) { e.ctlOpts = append(e.ctlOpts, opts...) }
}

// Engine wires the full lifecycle: single-instance lock, run history, player
// supervision, and the synchronization loop. One Engine runs one session.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	runID  string
	slots  []slot.Slot
	mapped bool

	lock    *flock.Flock
	channel controller.Channel
	supOpts []supervisor.Option
	ctlOpts []controller.Option

	mu  sync.Mutex
	sup *supervisor.Supervisor
	ctl *controller.Controller

	shutdownOnce sync.Once
	shutdownErr  error
}

// New validates the configuration into a runnable engine: videos resolved
// through the monitor mapping when one exists, slots built, lock and command
// channel prepared. Nothing is launched until Run.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	videos, mapped, err := layout.ResolveVideos(cfg.Paths.MappingFile, cfg.Screens.Videos, cfg.Screens.Count)
	if err != nil {
		return nil, fmt.Errorf("resolve screen layout: %w", err)
	}
	slots, err := slot.Build(cfg, videos)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "engine"),
		runID:  uuid.NewString(),
		slots:  slots,
		mapped: mapped,
		lock:   flock.New(filepath.Join(cfg.Paths.StateDir, "videowall.lock")),
		channel: mpv.NewChannel(
			time.Duration(cfg.Sync.CommandTimeoutMillis)*time.Millisecond,
			cfg.Sync.CommandRetries,
			time.Duration(cfg.Sync.RetryDelayMillis)*time.Millisecond,
		),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RunID returns this session's identifier.
func (e *Engine) RunID() string {
	return e.runID
}

// Run executes one full session: acquire the instance lock, record the run,
// spawn the players, drive the synchronization loop until the context is
// cancelled or a fatal fault occurs, then tear everything down exactly once.
// A cancelled context is the normal shutdown path and returns nil.
func (e *Engine) Run(ctx context.Context) error {
	locked, err := e.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return ErrAlreadyRunning
	}
	defer func() { _ = e.lock.Unlock() }()

	store, err := eventlog.Open(e.cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.BeginRun(ctx, e.runID, len(e.slots)); err != nil {
		return err
	}

	e.logger.Info("session starting",
		logging.String(logging.FieldRunID, e.runID),
		logging.Int("screens", len(e.slots)),
		logging.Bool("mapped_layout", e.mapped),
		logging.String(logging.FieldEventType, "session_start"),
	)

	sup := supervisor.New(e.cfg, e.slots, e.channel, e.logger, e.supOpts...)
	sink := &storeSink{store: store, runID: e.runID, logger: e.logger}
	ctlOpts := append([]controller.Option{controller.WithEventSink(sink)}, e.ctlOpts...)
	ctl := controller.New(e.cfg, e.slots, e.channel, sup, e.logger, ctlOpts...)

	e.mu.Lock()
	e.sup = sup
	e.ctl = ctl
	e.mu.Unlock()

	// Teardown and run bookkeeping use a fresh context: the signal that
	// cancelled the session must not also cancel the cleanup.
	finish := func(runErr error) error {
		grace := time.Duration(e.cfg.Sync.ShutdownGraceSeconds) * time.Second
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*grace+5*time.Second)
		defer cancel()

		shutdownErr := e.Shutdown(cleanupCtx)
		outcome, finalErr := sessionOutcome(runErr)
		if endErr := store.EndRun(cleanupCtx, e.runID, outcome); endErr != nil {
			e.logger.Warn("run history not finalized", logging.Error(endErr))
		}
		e.logger.Info("session finished",
			logging.String(logging.FieldRunID, e.runID),
			logging.String("outcome", outcome),
			logging.String(logging.FieldEventType, "session_end"),
		)
		if finalErr != nil {
			return finalErr
		}
		return shutdownErr
	}

	if err := sup.Spawn(ctx); err != nil {
		return finish(fmt.Errorf("spawn players: %w", err))
	}
	return finish(ctl.Run(ctx))
}

// Shutdown tears the wall down exactly once. Concurrent and repeated calls
// all observe the first teardown's result.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.shutdownOnce.Do(func() {
		e.mu.Lock()
		sup := e.sup
		e.mu.Unlock()
		if sup != nil {
			e.shutdownErr = sup.Terminate(ctx)
		}
	})
	return e.shutdownErr
}

// sessionOutcome maps a run loop error to a history outcome and the error the
// caller should see. Context cancellation is the clean shutdown path.
func sessionOutcome(err error) (string, error) {
	switch {
	case err == nil:
		return "shutdown", nil
	case errors.Is(err, context.Canceled):
		return "shutdown", nil
	case errors.Is(err, supervisor.ErrSlotDied), errors.Is(err, controller.ErrSlotDead):
		return "slot_death", err
	case errors.Is(err, controller.ErrObservationLost):
		return "observation_lost", err
	case errors.Is(err, controller.ErrBarrierFailed):
		return "sync_failed", err
	default:
		return "error", err
	}
}

// storeSink adapts the history store to the controller's event interface.
// Persistence faults are logged, never propagated into the sync loop.
type storeSink struct {
	store  *eventlog.Store
	runID  string
	logger *slog.Logger
}

func (s *storeSink) SyncEvent(ctx context.Context, kind string, position float64, detail string) {
	if err := s.store.Record(ctx, s.runID, kind, position, detail); err != nil {
		s.logger.Warn("sync event not recorded",
			logging.String("kind", kind),
			logging.Error(err),
		)
	}
}
