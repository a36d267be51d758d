package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"videowall/internal/config"
	"videowall/internal/dispatch"
	"videowall/internal/logging"
	"videowall/internal/mpv"
	"videowall/internal/slot"
)

// ErrSlotDied reports that one or more player processes exited unexpectedly.
var ErrSlotDied = errors.New("player process died")

// Option configures the supervisor.
type Option func(*Supervisor)

// WithLauncher injects a custom process launcher (primarily for tests).
func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.launcher = l
		}
	}
}

// Supervisor spawns one player process per screen slot and owns their
// lifecycle: liveness tracking, graceful-then-forced termination, and the
// per-slot socket files. Dead slots are never respawned; the engine fails
// fast instead.
type Supervisor struct {
	cfg      *config.Config
	slots    []slot.Slot
	sender   dispatch.Sender
	logger   *slog.Logger
	launcher Launcher

	mu         sync.Mutex
	handles    []Handle
	terminated bool
}

// New constructs a supervisor for the given slots. The sender is used for the
// graceful quit pass during termination.
func New(cfg *config.Config, slots []slot.Slot, sender dispatch.Sender, logger *slog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:      cfg,
		slots:    slots,
		sender:   sender,
		logger:   logging.NewComponentLogger(logger, "supervisor"),
		launcher: NewExecLauncher(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn launches every slot's player, waits for the processes to survive the
// warm-up window, and waits for every control socket to appear. Any failure
// tears down whatever was already started; the engine never runs with a
// partial wall.
func (s *Supervisor) Spawn(ctx context.Context) error {
	s.mu.Lock()
	if s.handles != nil {
		s.mu.Unlock()
		return errors.New("supervisor already spawned")
	}
	s.handles = make([]Handle, len(s.slots))
	s.terminated = false
	s.mu.Unlock()

	if err := s.prepareSockets(); err != nil {
		return err
	}

	for i, sl := range s.slots {
		args := s.playerArgs(sl)
		handle, err := s.launcher.Launch(ctx, s.cfg.Player.Binary, args)
		if err != nil {
			s.logger.Error("player launch failed",
				logging.Int(logging.FieldScreen, sl.Index),
				logging.Error(err),
				logging.String(logging.FieldEventType, "player_launch_failed"),
			)
			_ = s.Terminate(ctx)
			return fmt.Errorf("launch screen %d: %w", sl.Index, err)
		}
		s.mu.Lock()
		s.handles[i] = handle
		s.mu.Unlock()
		s.logger.Info("player launched",
			logging.Int(logging.FieldScreen, sl.Index),
			logging.Int("pid", handle.PID()),
			logging.Bool("audio", sl.AudioEnabled),
		)
	}

	warmup := time.Duration(s.cfg.Sync.WarmupSeconds) * time.Second
	select {
	case <-ctx.Done():
		_ = s.Terminate(ctx)
		return ctx.Err()
	case <-time.After(warmup):
	}

	if dead := s.HealthCheck(); len(dead) > 0 {
		s.logger.Error("player died during warm-up",
			logging.Any("screens", dead),
			logging.String(logging.FieldEventType, "player_crash_on_launch"),
			logging.String(logging.FieldErrorHint, "run the player binary by hand against one of the configured videos"),
		)
		_ = s.Terminate(ctx)
		return fmt.Errorf("%w: screens %v exited during warm-up", ErrSlotDied, dead)
	}

	if err := s.waitForSockets(ctx); err != nil {
		_ = s.Terminate(ctx)
		return err
	}

	s.logger.Info("all players running",
		logging.Int("screens", len(s.slots)),
		logging.String(logging.FieldEventType, "players_ready"),
	)
	return nil
}

// playerArgs builds the launch arguments for one slot: fullscreen on its
// screen, looping forever, hardware video output, IPC socket wired, and
// audio muted everywhere but the designated audio slot.
func (s *Supervisor) playerArgs(sl slot.Slot) []string {
	args := []string{
		"--loop",
		"--fullscreen",
		fmt.Sprintf("--screen=%d", sl.Index),
		fmt.Sprintf("--input-ipc-server=%s", sl.SocketPath),
		"--force-window",
		fmt.Sprintf("--vo=%s", s.cfg.Player.VideoOutput),
	}
	if !sl.AudioEnabled {
		args = append(args, "--no-audio")
	}
	args = append(args, s.cfg.Player.ExtraArgs...)
	args = append(args, sl.VideoPath)
	return args
}

// prepareSockets removes stale socket files from a previous run so the new
// players can bind cleanly.
func (s *Supervisor) prepareSockets() error {
	if err := os.MkdirAll(s.cfg.Paths.RuntimeDir, 0o755); err != nil {
		return fmt.Errorf("create runtime directory: %w", err)
	}
	for _, sl := range s.slots {
		if err := os.Remove(sl.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale socket %s: %w", sl.SocketPath, err)
		}
	}
	return nil
}

// waitForSockets polls until every slot's control socket exists, up to the
// configured bound.
func (s *Supervisor) waitForSockets(ctx context.Context) error {
	deadline := time.Now().Add(time.Duration(s.cfg.Sync.SocketWaitSeconds) * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		missing := s.missingSockets()
		if len(missing) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			s.logger.Error("control sockets never appeared",
				logging.Any("screens", missing),
				logging.String(logging.FieldEventType, "socket_wait_timeout"),
				logging.String(logging.FieldErrorHint, "check that the player binary supports --input-ipc-server"),
			)
			return fmt.Errorf("control sockets for screens %v did not appear within %ds", missing, s.cfg.Sync.SocketWaitSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) missingSockets() []int {
	var missing []int
	for _, sl := range s.slots {
		if _, err := os.Stat(sl.SocketPath); err != nil {
			missing = append(missing, sl.Index)
		}
	}
	return missing
}

// HealthCheck is a non-blocking liveness probe returning the indices of dead
// slots. Safe to call at any time, including before spawn and after
// termination.
func (s *Supervisor) HealthCheck() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dead []int
	for i, handle := range s.handles {
		if handle != nil && handle.Exited() {
			dead = append(dead, s.slots[i].Index)
		}
	}
	return dead
}

// Terminate shuts every player down: a graceful quit command first, then an
// escalation to SIGTERM and finally SIGKILL for anything still alive, and
// removes the socket files. It is idempotent and tolerates slots that are
// already dead.
func (s *Supervisor) Terminate(ctx context.Context) error {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return nil
	}
	s.terminated = true
	handles := make([]Handle, len(s.handles))
	copy(handles, s.handles)
	s.mu.Unlock()

	grace := time.Duration(s.cfg.Sync.ShutdownGraceSeconds) * time.Second

	var alive []slot.Slot
	for i, handle := range handles {
		if handle != nil && !handle.Exited() {
			alive = append(alive, s.slots[i])
		}
	}

	if len(alive) > 0 && s.sender != nil {
		s.logger.Info("sending quit to players", logging.Int("screens", len(alive)))
		dispatch.Broadcast(ctx, s.sender, alive, mpv.Quit())
		s.awaitExit(handles, grace)
	}

	for i, handle := range handles {
		if handle == nil || handle.Exited() {
			continue
		}
		s.logger.Warn("player ignored quit, sending SIGTERM",
			logging.Int(logging.FieldScreen, s.slots[i].Index),
			logging.Int("pid", handle.PID()),
			logging.String(logging.FieldEventType, "player_sigterm"),
			logging.String(logging.FieldImpact, "player is being force-stopped"),
		)
		_ = handle.Signal(unix.SIGTERM)
	}
	s.awaitExit(handles, grace)

	for i, handle := range handles {
		if handle == nil || handle.Exited() {
			continue
		}
		s.logger.Warn("player survived SIGTERM, killing",
			logging.Int(logging.FieldScreen, s.slots[i].Index),
			logging.Int("pid", handle.PID()),
			logging.String(logging.FieldEventType, "player_sigkill"),
		)
		_ = handle.Kill()
	}

	var firstErr error
	for _, sl := range s.slots {
		if err := os.Remove(sl.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove socket %s: %w", sl.SocketPath, err)
			}
		}
	}

	s.logger.Info("players terminated", logging.String(logging.FieldEventType, "players_terminated"))
	return firstErr
}

// awaitExit waits up to grace for every tracked process to report exit.
func (s *Supervisor) awaitExit(handles []Handle, grace time.Duration) {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		allDown := true
		for _, handle := range handles {
			if handle != nil && !handle.Exited() {
				allDown = false
				break
			}
		}
		if allDown {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}
