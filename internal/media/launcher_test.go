package media

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/chronicle/internal/config"
)

func TestIsImage(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		expected bool
	}{
		{name: "relative upload", ref: "/uploads/1-abc.jpg", expected: true},
		{name: "absolute png", ref: "http://example.com/map.png", expected: true},
		{name: "webp with query", ref: "http://example.com/coin.webp?size=large", expected: true},
		{name: "uppercase", ref: "http://example.com/BAYEUX.JPEG", expected: true},
		{name: "local path", ref: "/tmp/scan.bmp", expected: true},
		{name: "html", ref: "http://example.com/page.html", expected: false},
		{name: "no extension", ref: "http://example.com/resource", expected: false},
		{name: "empty", ref: "", expected: false},
		{name: "host only", ref: "http://example.com", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsImage(tt.ref))
		})
	}
}

func testLauncher(t *testing.T) (*Launcher, *[]*exec.Cmd) {
	t.Helper()
	cfg := config.TestConfig()
	cfg.API.BaseURL = "http://chronicle.test:3000/api/"
	l := NewLauncher(cfg)
	l.imageViewer = "feh"
	l.registry.goos = "linux"

	var started []*exec.Cmd
	l.start = func(cmd *exec.Cmd) error {
		started = append(started, cmd)
		return nil
	}
	return l, &started
}

func TestLauncher_Resolve(t *testing.T) {
	l, _ := testLauncher(t)

	assert.Equal(t, "http://chronicle.test:3000/uploads/1.jpg", l.Resolve("/uploads/1.jpg"))
	assert.Equal(t, "http://chronicle.test:3000/api/uploads/1.jpg", l.Resolve("uploads/1.jpg"))
	assert.Equal(t, "https://cdn.test/a.png", l.Resolve("https://cdn.test/a.png"))
}

func TestLauncher_OpenUsesViewerArgs(t *testing.T) {
	l, started := testLauncher(t)

	require.NoError(t, l.Open("/uploads/7-map.png"))
	require.Len(t, *started, 1)

	cmd := (*started)[0]
	assert.Equal(t, []string{"feh", "--scale-down", "--auto-zoom", "http://chronicle.test:3000/uploads/7-map.png"}, cmd.Args)
}

func TestLauncher_OpenRejectsNonImages(t *testing.T) {
	l, started := testLauncher(t)

	err := l.Open("/uploads/notes.txt")
	assert.ErrorIs(t, err, ErrNotImage)
	assert.Empty(t, *started)
}

func TestLauncher_OpenWrapsStartFailure(t *testing.T) {
	l, _ := testLauncher(t)
	boom := errors.New("exec format error")
	l.start = func(*exec.Cmd) error { return boom }

	err := l.Open("/uploads/1.jpg")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "feh")
}

func TestLauncher_FallsBackToDefaultOpener(t *testing.T) {
	cfg := config.TestConfig()
	cfg.Media.Darwin.Image = []string{"definitely-not-installed-viewer"}
	cfg.Media.Linux.Image = []string{"definitely-not-installed-viewer"}
	cfg.Media.Windows.Image = []string{"definitely-not-installed-viewer"}
	cfg.Media.DefaultOpener = "fallback-opener"

	l := NewLauncher(cfg)
	assert.Equal(t, "fallback-opener", l.Viewer())
}

func TestRegistry_EmbeddedTable(t *testing.T) {
	r, err := parseRegistry(viewersTOML)
	require.NoError(t, err)

	def, ok := r.Definition("feh")
	require.True(t, ok)
	assert.Contains(t, def.Platforms, "linux")

	assert.Equal(t, "open", r.Binary("preview"))
	assert.Equal(t, "eog", r.Binary("eog"))
	assert.Equal(t, "unknown", r.Binary("unknown"))
}

func TestRegistry_Command(t *testing.T) {
	r, err := parseRegistry(viewersTOML)
	require.NoError(t, err)

	r.goos = "darwin"
	cmd, err := r.Command("preview", "/tmp/a.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "-a", "Preview", "/tmp/a.png"}, cmd.Args)

	_, err = r.Command("feh", "/tmp/a.png")
	assert.Error(t, err, "feh is linux only")

	cmd, err = r.Command("my-viewer", "/tmp/a.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"my-viewer", "/tmp/a.png"}, cmd.Args)

	r.goos = "windows"
	cmd, err = r.Command("start", "C:\\a.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"cmd", "/c", "start", "", "C:\\a.png"}, cmd.Args)
}

func TestRegistry_MergeOverrides(t *testing.T) {
	r, err := parseRegistry(viewersTOML)
	require.NoError(t, err)
	r.goos = "linux"

	path := filepath.Join(t.TempDir(), "viewers.toml")
	override := `
[viewers.feh]
description = "feh fullscreen"
platforms = ["linux"]
args = ["-F"]

[viewers.imv]
platforms = ["linux"]
`
	require.NoError(t, os.WriteFile(path, []byte(override), 0o600))
	require.NoError(t, r.Merge(path))

	cmd, err := r.Command("feh", "x.jpg")
	require.NoError(t, err)
	assert.Equal(t, []string{"feh", "-F", "x.jpg"}, cmd.Args)

	_, ok := r.Definition("imv")
	assert.True(t, ok)

	assert.NoError(t, r.Merge(filepath.Join(t.TempDir(), "missing.toml")))

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[viewers\n"), 0o600))
	assert.Error(t, r.Merge(bad))
}
