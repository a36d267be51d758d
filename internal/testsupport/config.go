package testsupport

import (
	"path/filepath"
	"testing"

	"videowall/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// WithScreens sets the screen count and seeds one stub video per screen.
func WithScreens(t testing.TB, count int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Screens.Count = count
		cfg.Screens.Videos = make([]string, count)
		for i := range cfg.Screens.Videos {
			video := filepath.Join(filepath.Dir(cfg.Paths.RuntimeDir), "videos",
				"screen"+string(rune('0'+i))+".webm")
			WriteFile(t, video, 1)
			cfg.Screens.Videos[i] = video
		}
	}
}

// WithFastSync shrinks every sync timing knob for tests.
func WithFastSync() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sync.WarmupSeconds = 0
		cfg.Sync.SocketWaitSeconds = 1
		cfg.Sync.ShutdownGraceSeconds = 0
		cfg.Sync.SettleDelayMillis = 1
	}
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.RuntimeDir = filepath.Join(base, "sockets")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.MappingFile = ""

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}
