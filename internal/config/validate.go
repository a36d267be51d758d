package config

import (
	"errors"
	"fmt"
	"os"
)

// MaxScreens bounds how many displays one engine instance will drive.
const MaxScreens = 8

// Validate ensures the configuration is usable. Screen count and video paths
// are checked here so the engine never partially starts on bad input.
func (c *Config) Validate() error {
	if err := c.validateScreens(); err != nil {
		return err
	}
	if err := c.validatePlayer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScreens() error {
	if c.Screens.Count < 1 || c.Screens.Count > MaxScreens {
		return fmt.Errorf("screens.count must be between 1 and %d, got %d", MaxScreens, c.Screens.Count)
	}
	if len(c.Screens.Videos) == 0 {
		return errors.New("screens.videos must list one video file per screen")
	}
	if len(c.Screens.Videos) != c.Screens.Count {
		return fmt.Errorf("screens.videos lists %d entries but screens.count is %d", len(c.Screens.Videos), c.Screens.Count)
	}
	for i, video := range c.Screens.Videos {
		info, err := os.Stat(video)
		if err != nil {
			return fmt.Errorf("screens.videos[%d]: %s does not exist", i, video)
		}
		if info.IsDir() {
			return fmt.Errorf("screens.videos[%d]: %s is a directory", i, video)
		}
	}
	if c.Screens.AudioScreen < -1 || c.Screens.AudioScreen >= c.Screens.Count {
		return fmt.Errorf("screens.audio_screen must be -1 or between 0 and %d", c.Screens.Count-1)
	}
	return nil
}

func (c *Config) validatePlayer() error {
	if c.Player.Binary == "" {
		return errors.New("player.binary must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
