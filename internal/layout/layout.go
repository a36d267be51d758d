package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrNoMapping reports that no mapping file exists at the configured path.
var ErrNoMapping = errors.New("monitor mapping not found")

// Entry assigns one video to one physical screen position.
type Entry struct {
	VideoPath    string `json:"video_path"`
	PositionName string `json:"position_name"`
	Screen       int    `json:"mpv_screen"`
}

// Mapping is the calibration output consumed as input: physical display
// identity to video assignment. The engine never writes this file.
type Mapping struct {
	Entries []Entry
}

type mappingFile struct {
	VideoMapping map[string]Entry `json:"video_mapping"`
}

// Load reads a monitors_mapping.json produced by the calibration tool.
func Load(path string) (*Mapping, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoMapping
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoMapping
		}
		return nil, fmt.Errorf("read mapping: %w", err)
	}

	var file mappingFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	if len(file.VideoMapping) == 0 {
		return nil, errors.New("mapping has no video assignments")
	}

	entries := make([]Entry, 0, len(file.VideoMapping))
	for _, entry := range file.VideoMapping {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Screen < entries[j].Screen })

	seen := map[int]struct{}{}
	for _, entry := range entries {
		if _, dup := seen[entry.Screen]; dup {
			return nil, fmt.Errorf("mapping assigns screen %d twice", entry.Screen)
		}
		seen[entry.Screen] = struct{}{}
	}

	return &Mapping{Entries: entries}, nil
}

// OrderedVideos returns one video path per screen index 0..count-1.
func (m *Mapping) OrderedVideos(count int) ([]string, error) {
	if len(m.Entries) != count {
		return nil, fmt.Errorf("mapping covers %d screens, need %d", len(m.Entries), count)
	}
	videos := make([]string, count)
	for _, entry := range m.Entries {
		if entry.Screen < 0 || entry.Screen >= count {
			return nil, fmt.Errorf("mapping screen %d out of range [0, %d)", entry.Screen, count)
		}
		videos[entry.Screen] = entry.VideoPath
	}
	return videos, nil
}

// PositionFor returns the position label for a screen index, empty when the
// mapping has no entry for it.
func (m *Mapping) PositionFor(screen int) string {
	for _, entry := range m.Entries {
		if entry.Screen == screen {
			return PositionLabel(entry.PositionName)
		}
	}
	return ""
}

var titleCaser = cases.Title(language.English)

// PositionLabel normalizes calibration position names ("CENTER", "left") for
// display.
func PositionLabel(name string) string {
	return titleCaser.String(strings.ToLower(strings.TrimSpace(name)))
}

// ResolveVideos orders the configured videos by physical position when a
// mapping file is available. Without one it falls back to config order, which
// leaves screen identity to however the window system enumerated displays.
func ResolveVideos(mappingPath string, configured []string, count int) ([]string, bool, error) {
	mapping, err := Load(mappingPath)
	if errors.Is(err, ErrNoMapping) {
		return configured, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	videos, err := mapping.OrderedVideos(count)
	if err != nil {
		return nil, false, err
	}
	return videos, true, nil
}
