package layout

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleMapping = `{
  "displays": {},
  "video_mapping": {
    "aaaa-1111": {"video_path": "/videos/center.webm", "position_name": "CENTER", "mpv_screen": 1},
    "bbbb-2222": {"video_path": "/videos/left.webm", "position_name": "LEFT", "mpv_screen": 0},
    "cccc-3333": {"video_path": "/videos/right.webm", "position_name": "RIGHT", "mpv_screen": 2}
  }
}`

func writeMapping(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monitors_mapping.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write mapping: %v", err)
	}
	return path
}

func TestLoadOrdersByScreen(t *testing.T) {
	mapping, err := Load(writeMapping(t, sampleMapping))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	videos, err := mapping.OrderedVideos(3)
	if err != nil {
		t.Fatalf("ordered videos: %v", err)
	}
	want := []string{"/videos/left.webm", "/videos/center.webm", "/videos/right.webm"}
	for i := range want {
		if videos[i] != want[i] {
			t.Fatalf("screen %d: got %q, want %q", i, videos[i], want[i])
		}
	}
}

func TestLoadMissingFileReturnsErrNoMapping(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, ErrNoMapping) {
		t.Fatalf("expected ErrNoMapping, got %v", err)
	}
}

func TestLoadRejectsDuplicateScreens(t *testing.T) {
	content := `{"video_mapping": {
		"a": {"video_path": "/a.webm", "position_name": "LEFT", "mpv_screen": 0},
		"b": {"video_path": "/b.webm", "position_name": "RIGHT", "mpv_screen": 0}
	}}`
	if _, err := Load(writeMapping(t, content)); err == nil {
		t.Fatal("expected duplicate screen error")
	}
}

func TestOrderedVideosRejectsCountMismatch(t *testing.T) {
	mapping, err := Load(writeMapping(t, sampleMapping))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := mapping.OrderedVideos(2); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestResolveVideosFallsBackWithoutMapping(t *testing.T) {
	configured := []string{"/a.webm", "/b.webm"}
	videos, mapped, err := ResolveVideos(filepath.Join(t.TempDir(), "absent.json"), configured, 2)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if mapped {
		t.Fatal("expected fallback, not mapping")
	}
	if videos[0] != "/a.webm" || videos[1] != "/b.webm" {
		t.Fatalf("expected config order preserved, got %v", videos)
	}
}

func TestResolveVideosUsesMapping(t *testing.T) {
	path := writeMapping(t, sampleMapping)
	videos, mapped, err := ResolveVideos(path, []string{"/x.webm", "/y.webm", "/z.webm"}, 3)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !mapped {
		t.Fatal("expected mapping to be used")
	}
	if videos[1] != "/videos/center.webm" {
		t.Fatalf("expected mapping order, got %v", videos)
	}
}

func TestPositionLabel(t *testing.T) {
	if got := PositionLabel("CENTER"); got != "Center" {
		t.Fatalf("expected Center, got %q", got)
	}
	if got := PositionLabel(" left "); got != "Left" {
		t.Fatalf("expected Left, got %q", got)
	}
}

func TestPositionFor(t *testing.T) {
	mapping, err := Load(writeMapping(t, sampleMapping))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := mapping.PositionFor(1); got != "Center" {
		t.Fatalf("expected Center for screen 1, got %q", got)
	}
	if got := mapping.PositionFor(9); got != "" {
		t.Fatalf("expected empty label for unmapped screen, got %q", got)
	}
}
