package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	RuntimeDir  string `toml:"runtime_dir"`
	LogDir      string `toml:"log_dir"`
	StateDir    string `toml:"state_dir"`
	MappingFile string `toml:"mapping_file"`
}

// Player contains configuration for the mpv processes driven by the engine.
type Player struct {
	Binary      string   `toml:"binary"`
	VideoOutput string   `toml:"video_output"`
	ExtraArgs   []string `toml:"extra_args"`
}

// Screens describes the displays the wall is composed of.
type Screens struct {
	// Count is the number of displays, between 1 and 8.
	Count int `toml:"count"`
	// Videos lists one video file per screen, in screen order. When a
	// monitor mapping file is present the order is rearranged to match
	// physical positions.
	Videos []string `toml:"videos"`
	// AudioScreen selects which screen keeps audio. -1 picks the middle
	// screen of the ordered list.
	AudioScreen int `toml:"audio_screen"`
}

// Sync contains timing knobs for the barrier protocol and drift detection.
type Sync struct {
	PollIntervalSeconds  int     `toml:"poll_interval_seconds"`
	SettleDelayMillis    int     `toml:"settle_delay_millis"`
	CommandTimeoutMillis int     `toml:"command_timeout_millis"`
	CommandRetries       int     `toml:"command_retries"`
	RetryDelayMillis     int     `toml:"retry_delay_millis"`
	DriftSlackSeconds    float64 `toml:"drift_slack_seconds"`
	MaxSampleFailures    int     `toml:"max_sample_failures"`
	WarmupSeconds        int     `toml:"warmup_seconds"`
	SocketWaitSeconds    int     `toml:"socket_wait_seconds"`
	ShutdownGraceSeconds int     `toml:"shutdown_grace_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for videowall.
//
// Configuration sections by subsystem:
//   - Paths: runtime (socket) directory, log directory, state directory,
//     and the monitor mapping file produced by the calibration tool
//   - Player: mpv binary and launch options
//   - Screens: display count and per-screen video assignments
//   - Sync: barrier timing, retries, and drift detection thresholds
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Player  Player  `toml:"player"`
	Screens Screens `toml:"screens"`
	Sync    Sync    `toml:"sync"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/videowall/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("videowall.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the runtime, log, and state directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.RuntimeDir, c.Paths.LogDir, c.Paths.StateDir}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to the given path,
// refusing to overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		trimmed = filepath.Join(home, trimmed[2:])
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	return abs, nil
}
