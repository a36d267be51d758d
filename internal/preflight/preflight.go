package preflight

import (
	"context"
	"fmt"

	"videowall/internal/config"
	"videowall/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config:
// required binaries, runtime directories, per-screen video files, and the
// monitor mapping when one is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	for _, status := range CheckSystemDeps(ctx, cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Command}
		if !status.Available {
			result.Detail = status.Detail
			if status.Optional {
				result.Passed = true
				result.Detail = status.Detail + " (optional)"
			}
		}
		results = append(results, result)
	}

	results = append(results, CheckDirectoryAccess("Runtime directory", cfg.Paths.RuntimeDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	for i, video := range cfg.Screens.Videos {
		results = append(results, CheckVideoFile(fmt.Sprintf("Screen %d video", i), video))
	}

	if cfg.Paths.MappingFile != "" {
		results = append(results, CheckMapping(cfg.Paths.MappingFile, cfg.Screens.Count))
	}

	return results
}

// AllPassed reports whether every check succeeded.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// CheckSystemDeps evaluates the external binaries the engine shells out to.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "mpv",
			Command:     cfg.Player.Binary,
			Description: "Plays one looping video per screen",
		},
		{
			Name:        "ffprobe",
			Command:     "ffprobe",
			Description: "Inspects video files for duration reporting",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(requirements)
}
