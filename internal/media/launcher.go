package media

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"path"
	"runtime"
	"strings"

	"github.com/pders01/chronicle/internal/config"
	"github.com/pders01/chronicle/internal/debuglog"
	"github.com/pders01/chronicle/internal/validation"
)

var ErrNotImage = errors.New("not an image")

// Launcher opens article images in an external viewer.
type Launcher struct {
	imageViewer   string
	defaultOpener string
	base          *url.URL
	registry      *Registry
	start         func(*exec.Cmd) error
}

// NewLauncher picks the first installed viewer for this platform. Relative
// image references are resolved against the API base URL.
func NewLauncher(cfg *config.Config) *Launcher {
	registry, err := NewRegistry()
	if err != nil {
		debuglog.Warnf("viewer table unavailable: %v", err)
		registry = &Registry{viewers: make(map[string]ViewerDefinition), goos: runtime.GOOS}
	}

	l := &Launcher{
		defaultOpener: cfg.Media.DefaultOpener,
		registry:      registry,
		start:         startDetached,
	}
	if u, err := url.Parse(cfg.API.BaseURL); err == nil && u.Host != "" {
		l.base = u
	}

	var viewers config.ImageViewers
	switch runtime.GOOS {
	case "darwin":
		viewers = cfg.Media.Darwin
	case "linux":
		viewers = cfg.Media.Linux
	case "windows":
		viewers = cfg.Media.Windows
	default:
		viewers = cfg.Media.Linux
	}
	for _, name := range viewers.Image {
		if registry.Available(name) {
			l.imageViewer = name
			break
		}
	}
	if l.imageViewer == "" {
		l.imageViewer = l.defaultOpener
	}
	return l
}

// Viewer is the program Open will use.
func (l *Launcher) Viewer() string { return l.imageViewer }

// Resolve turns an image reference from an article into an absolute URL.
func (l *Launcher) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() || l.base == nil {
		return ref
	}
	return l.base.ResolveReference(u).String()
}

// Open launches the viewer on ref without waiting for it to exit.
func (l *Launcher) Open(ref string) error {
	if !IsImage(ref) {
		return fmt.Errorf("%w: %s", ErrNotImage, ref)
	}
	if l.imageViewer == "" {
		return fmt.Errorf("no image viewer found")
	}
	target := l.Resolve(ref)

	cmd, err := l.registry.Command(l.imageViewer, target)
	if err != nil {
		cmd = exec.Command(l.imageViewer, target)
	}
	debuglog.WithFields(map[string]any{"viewer": l.imageViewer, "target": target}).Debugf("opening image")

	if err := l.start(cmd); err != nil {
		return fmt.Errorf("failed to start %s: %w", l.imageViewer, err)
	}
	return nil
}

// IsImage reports whether ref points at a decodable image type. Query
// strings and fragments are ignored.
func IsImage(ref string) bool {
	p := ref
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	}
	if p == "" {
		return false
	}
	return validation.IsImagePath(path.Base(p))
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
