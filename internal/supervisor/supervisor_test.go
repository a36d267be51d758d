package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"videowall/internal/config"
	"videowall/internal/logging"
	"videowall/internal/mpv"
	"videowall/internal/slot"
)

type fakeHandle struct {
	pid    int
	exited atomic.Bool
	// exitOnSignal makes Signal/quit behave like a cooperative player.
	exitOnSignal bool

	mu      sync.Mutex
	signals []os.Signal
	killed  bool
}

func (h *fakeHandle) PID() int     { return h.pid }
func (h *fakeHandle) Exited() bool { return h.exited.Load() }

func (h *fakeHandle) Signal(sig os.Signal) error {
	h.mu.Lock()
	h.signals = append(h.signals, sig)
	h.mu.Unlock()
	if h.exitOnSignal {
		h.exited.Store(true)
	}
	return nil
}

func (h *fakeHandle) Kill() error {
	h.mu.Lock()
	h.killed = true
	h.mu.Unlock()
	h.exited.Store(true)
	return nil
}

type fakeLauncher struct {
	mu       sync.Mutex
	handles  []*fakeHandle
	launches [][]string
	// createSocket mimics mpv creating its IPC socket shortly after start.
	createSocket bool
	failOn       int
	cooperative  bool
}

func (l *fakeLauncher) Launch(_ context.Context, binary string, args []string) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	index := len(l.handles)
	if l.failOn > 0 && index+1 == l.failOn {
		return nil, errors.New("launch failed")
	}
	l.launches = append(l.launches, append([]string{binary}, args...))

	if l.createSocket {
		for _, arg := range args {
			const prefix = "--input-ipc-server="
			if len(arg) > len(prefix) && arg[:len(prefix)] == prefix {
				os.WriteFile(arg[len(prefix):], nil, 0o644)
			}
		}
	}

	handle := &fakeHandle{pid: 1000 + index, exitOnSignal: l.cooperative}
	l.handles = append(l.handles, handle)
	return handle, nil
}

type quitRecorder struct {
	mu      sync.Mutex
	paths   []string
	handles *fakeLauncher
}

func (q *quitRecorder) Send(_ context.Context, socketPath string, cmd mpv.Command) error {
	q.mu.Lock()
	q.paths = append(q.paths, socketPath)
	q.mu.Unlock()
	if cmd.Name == "quit" && q.handles != nil {
		// A cooperative player exits on quit.
		for _, h := range q.handles.handles {
			h.exited.Store(true)
		}
	}
	return nil
}

func testSetup(t *testing.T, count int) (*config.Config, []slot.Slot) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.RuntimeDir = filepath.Join(dir, "sockets")
	cfg.Screens.Count = count
	cfg.Sync.WarmupSeconds = 1
	cfg.Sync.SocketWaitSeconds = 2
	cfg.Sync.ShutdownGraceSeconds = 1

	slots := make([]slot.Slot, count)
	for i := 0; i < count; i++ {
		video := filepath.Join(dir, "v"+strconv.Itoa(i)+".webm")
		if err := os.WriteFile(video, []byte("x"), 0o644); err != nil {
			t.Fatalf("write video: %v", err)
		}
		slots[i] = slot.Slot{
			Index:        i,
			SocketPath:   slot.SocketPath(cfg.Paths.RuntimeDir, i),
			VideoPath:    video,
			AudioEnabled: i == slot.PrimaryIndex(count),
		}
	}
	return &cfg, slots
}

func TestSpawnLaunchesOnePlayerPerSlot(t *testing.T) {
	cfg, slots := testSetup(t, 3)
	cfg.Sync.WarmupSeconds = 1
	launcher := &fakeLauncher{createSocket: true}
	sup := New(cfg, slots, nil, logging.NewNop(), WithLauncher(launcher))

	if err := sup.Spawn(context.Background()); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if len(launcher.launches) != 3 {
		t.Fatalf("expected 3 launches, got %d", len(launcher.launches))
	}
	for i := range slots {
		if _, err := os.Stat(slots[i].SocketPath); err != nil {
			t.Fatalf("socket %d missing after spawn: %v", i, err)
		}
	}
}

func TestSpawnArgsMuteAllButAudioSlot(t *testing.T) {
	cfg, slots := testSetup(t, 3)
	launcher := &fakeLauncher{createSocket: true}
	sup := New(cfg, slots, nil, logging.NewNop(), WithLauncher(launcher))

	if err := sup.Spawn(context.Background()); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	for i, launch := range launcher.launches {
		muted := false
		screenArg := false
		for _, arg := range launch {
			if arg == "--no-audio" {
				muted = true
			}
			if arg == "--screen="+strconv.Itoa(i) {
				screenArg = true
			}
		}
		if !screenArg {
			t.Fatalf("launch %d missing --screen arg: %v", i, launch)
		}
		if i == 1 && muted {
			t.Fatalf("audio slot %d should not be muted: %v", i, launch)
		}
		if i != 1 && !muted {
			t.Fatalf("slot %d should be muted: %v", i, launch)
		}
		if launch[len(launch)-1] != slots[i].VideoPath {
			t.Fatalf("launch %d should end with video path: %v", i, launch)
		}
	}
}

func TestSpawnFailsFastWhenSocketNeverAppears(t *testing.T) {
	cfg, slots := testSetup(t, 2)
	cfg.Sync.SocketWaitSeconds = 1
	launcher := &fakeLauncher{createSocket: false, cooperative: true}
	sup := New(cfg, slots, nil, logging.NewNop(), WithLauncher(launcher))

	if err := sup.Spawn(context.Background()); err == nil {
		t.Fatal("expected spawn failure when sockets never appear")
	}
}

func TestSpawnDetectsCrashOnLaunch(t *testing.T) {
	cfg, slots := testSetup(t, 2)
	launcher := &fakeLauncher{createSocket: true}
	sup := New(cfg, slots, nil, logging.NewNop(), WithLauncher(launcher))

	// Kill one player during the warm-up window.
	done := make(chan error, 1)
	go func() { done <- sup.Spawn(context.Background()) }()
	for {
		launcher.mu.Lock()
		launched := len(launcher.handles)
		launcher.mu.Unlock()
		if launched == 2 {
			break
		}
	}
	launcher.handles[1].exited.Store(true)

	err := <-done
	if !errors.Is(err, ErrSlotDied) {
		t.Fatalf("expected ErrSlotDied, got %v", err)
	}
}

func TestHealthCheckReportsDeadIndices(t *testing.T) {
	cfg, slots := testSetup(t, 3)
	launcher := &fakeLauncher{createSocket: true}
	sup := New(cfg, slots, nil, logging.NewNop(), WithLauncher(launcher))

	if err := sup.Spawn(context.Background()); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if dead := sup.HealthCheck(); len(dead) != 0 {
		t.Fatalf("expected no dead slots, got %v", dead)
	}

	launcher.handles[2].exited.Store(true)
	dead := sup.HealthCheck()
	if len(dead) != 1 || dead[0] != 2 {
		t.Fatalf("expected [2], got %v", dead)
	}
}

func TestTerminateGracefulQuitThenCleanup(t *testing.T) {
	cfg, slots := testSetup(t, 2)
	launcher := &fakeLauncher{createSocket: true}
	recorder := &quitRecorder{handles: launcher}
	sup := New(cfg, slots, recorder, logging.NewNop(), WithLauncher(launcher))

	if err := sup.Spawn(context.Background()); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := sup.Terminate(context.Background()); err != nil {
		t.Fatalf("terminate: %v", err)
	}

	if len(recorder.paths) != 2 {
		t.Fatalf("expected quit sent to 2 slots, got %d", len(recorder.paths))
	}
	for _, h := range launcher.handles {
		if len(h.signals) != 0 || h.killed {
			t.Fatal("cooperative players should not be signalled or killed")
		}
	}
	for _, sl := range slots {
		if _, err := os.Stat(sl.SocketPath); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("socket %s should be removed", sl.SocketPath)
		}
	}
}

func TestTerminateEscalatesToKill(t *testing.T) {
	cfg, slots := testSetup(t, 1)
	cfg.Sync.ShutdownGraceSeconds = 1
	launcher := &fakeLauncher{createSocket: true, cooperative: false}
	// Sender that does nothing: player ignores quit.
	recorder := &quitRecorder{}
	sup := New(cfg, slots, recorder, logging.NewNop(), WithLauncher(launcher))

	if err := sup.Spawn(context.Background()); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := sup.Terminate(context.Background()); err != nil {
		t.Fatalf("terminate: %v", err)
	}

	h := launcher.handles[0]
	if len(h.signals) == 0 {
		t.Fatal("expected SIGTERM escalation")
	}
	if !h.killed {
		t.Fatal("expected SIGKILL escalation for stubborn player")
	}
}

func TestTerminateIsIdempotent(t *testing.T) {
	cfg, slots := testSetup(t, 2)
	launcher := &fakeLauncher{createSocket: true}
	recorder := &quitRecorder{handles: launcher}
	sup := New(cfg, slots, recorder, logging.NewNop(), WithLauncher(launcher))

	if err := sup.Spawn(context.Background()); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := sup.Terminate(context.Background()); err != nil {
		t.Fatalf("first terminate: %v", err)
	}
	quitsAfterFirst := len(recorder.paths)

	if err := sup.Terminate(context.Background()); err != nil {
		t.Fatalf("second terminate: %v", err)
	}
	if len(recorder.paths) != quitsAfterFirst {
		t.Fatal("second terminate must not send more quit commands")
	}
	for _, sl := range slots {
		if _, err := os.Stat(sl.SocketPath); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("socket %s left behind", sl.SocketPath)
		}
	}
}

func TestTerminateToleratesDeadSlots(t *testing.T) {
	cfg, slots := testSetup(t, 2)
	launcher := &fakeLauncher{createSocket: true}
	recorder := &quitRecorder{handles: launcher}
	sup := New(cfg, slots, recorder, logging.NewNop(), WithLauncher(launcher))

	if err := sup.Spawn(context.Background()); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	launcher.handles[0].exited.Store(true)

	if err := sup.Terminate(context.Background()); err != nil {
		t.Fatalf("terminate with dead slot: %v", err)
	}
	if len(recorder.paths) != 1 {
		t.Fatalf("quit should target only the live slot, got %v", recorder.paths)
	}
}

func TestSpawnLaunchFailureTearsDownEarlierSlots(t *testing.T) {
	cfg, slots := testSetup(t, 3)
	launcher := &fakeLauncher{createSocket: true, failOn: 3, cooperative: true}
	recorder := &quitRecorder{handles: launcher}
	sup := New(cfg, slots, recorder, logging.NewNop(), WithLauncher(launcher))

	if err := sup.Spawn(context.Background()); err == nil {
		t.Fatal("expected spawn failure")
	}
	for _, h := range launcher.handles {
		if !h.Exited() {
			t.Fatal("earlier players should be torn down after launch failure")
		}
	}
}
