package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePlayer()
	c.normalizeSync()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RuntimeDir) == "" {
		c.Paths.RuntimeDir = defaultRuntimeDir
	}
	if c.Paths.RuntimeDir, err = expandPath(c.Paths.RuntimeDir); err != nil {
		return fmt.Errorf("paths.runtime_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.MappingFile, err = expandPath(c.Paths.MappingFile); err != nil {
		return fmt.Errorf("paths.mapping_file: %w", err)
	}
	for i, video := range c.Screens.Videos {
		expanded, err := expandPath(video)
		if err != nil {
			return fmt.Errorf("screens.videos[%d]: %w", i, err)
		}
		c.Screens.Videos[i] = expanded
	}
	return nil
}

func (c *Config) normalizePlayer() {
	c.Player.Binary = strings.TrimSpace(c.Player.Binary)
	if c.Player.Binary == "" {
		c.Player.Binary = defaultPlayerBinary
	}
	c.Player.VideoOutput = strings.TrimSpace(c.Player.VideoOutput)
	if c.Player.VideoOutput == "" {
		c.Player.VideoOutput = defaultVideoOutput
	}
}

func (c *Config) normalizeSync() {
	if c.Sync.PollIntervalSeconds <= 0 {
		c.Sync.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Sync.SettleDelayMillis <= 0 {
		c.Sync.SettleDelayMillis = defaultSettleDelayMillis
	}
	if c.Sync.CommandTimeoutMillis <= 0 {
		c.Sync.CommandTimeoutMillis = defaultCommandTimeoutMillis
	}
	if c.Sync.CommandRetries <= 0 {
		c.Sync.CommandRetries = defaultCommandRetries
	}
	if c.Sync.RetryDelayMillis <= 0 {
		c.Sync.RetryDelayMillis = defaultRetryDelayMillis
	}
	if c.Sync.DriftSlackSeconds <= 0 {
		c.Sync.DriftSlackSeconds = defaultDriftSlackSeconds
	}
	if c.Sync.MaxSampleFailures <= 0 {
		c.Sync.MaxSampleFailures = defaultMaxSampleFailures
	}
	if c.Sync.WarmupSeconds <= 0 {
		c.Sync.WarmupSeconds = defaultWarmupSeconds
	}
	if c.Sync.SocketWaitSeconds <= 0 {
		c.Sync.SocketWaitSeconds = defaultSocketWaitSeconds
	}
	if c.Sync.ShutdownGraceSeconds <= 0 {
		c.Sync.ShutdownGraceSeconds = defaultShutdownGraceSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
