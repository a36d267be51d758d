package slot

import (
	"fmt"
	"os"
	"path/filepath"

	"videowall/internal/config"
)

// Slot is one (display, player process, control endpoint) triple. The set of
// slots is fixed at startup; a slot whose process dies is never respawned.
type Slot struct {
	Index        int
	SocketPath   string
	VideoPath    string
	AudioEnabled bool
}

// PrimaryIndex picks the audio-bearing slot for a wall of n screens: the
// middle index of the ordered list. This is a positional heuristic, not a
// semantic "center" label; calibration owns physical identity.
func PrimaryIndex(n int) int {
	if n <= 0 {
		return 0
	}
	return n / 2
}

// SocketPath returns the control endpoint path for a screen index under the
// given runtime directory.
func SocketPath(runtimeDir string, index int) string {
	return filepath.Join(runtimeDir, fmt.Sprintf("mpv_screen_%d.sock", index))
}

// Build constructs the slot list from validated configuration. Videos must
// already be ordered by screen index (the layout package applies any monitor
// mapping first). The count and file existence checks mirror config
// validation so the engine also fails fast when handed raw slices.
func Build(cfg *config.Config, videos []string) ([]Slot, error) {
	count := cfg.Screens.Count
	if count < 1 || count > config.MaxScreens {
		return nil, fmt.Errorf("screen count %d out of range [1, %d]", count, config.MaxScreens)
	}
	if len(videos) != count {
		return nil, fmt.Errorf("have %d videos for %d screens", len(videos), count)
	}

	audio := cfg.Screens.AudioScreen
	if audio < 0 {
		audio = PrimaryIndex(count)
	}

	slots := make([]Slot, 0, count)
	for i, video := range videos {
		if _, err := os.Stat(video); err != nil {
			return nil, fmt.Errorf("screen %d video %s: %w", i, video, err)
		}
		slots = append(slots, Slot{
			Index:        i,
			SocketPath:   SocketPath(cfg.Paths.RuntimeDir, i),
			VideoPath:    video,
			AudioEnabled: i == audio,
		})
	}
	return slots, nil
}

// SocketPaths collects the endpoint paths in slot order.
func SocketPaths(slots []Slot) []string {
	paths := make([]string, 0, len(slots))
	for _, s := range slots {
		paths = append(paths, s.SocketPath)
	}
	return paths
}
