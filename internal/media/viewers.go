package media

import (
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

//go:embed viewers.toml
var viewersTOML []byte

// ViewerDefinition describes how an image viewer is invoked.
type ViewerDefinition struct {
	Description string   `toml:"description"`
	Platforms   []string `toml:"platforms"`
	Command     string   `toml:"command,omitempty"`
	Args        []string `toml:"args,omitempty"`
	ArgsDarwin  []string `toml:"args_darwin,omitempty"`
	ArgsLinux   []string `toml:"args_linux,omitempty"`
	ArgsWindows []string `toml:"args_windows,omitempty"`
}

type viewersFile struct {
	Viewers map[string]ViewerDefinition `toml:"viewers"`
}

// Registry holds the known viewer definitions.
type Registry struct {
	viewers map[string]ViewerDefinition
	goos    string
}

// NewRegistry parses the embedded table and merges the user's overrides.
func NewRegistry() (*Registry, error) {
	r, err := parseRegistry(viewersTOML)
	if err != nil {
		return nil, err
	}
	if home, err := os.UserHomeDir(); err == nil {
		_ = r.Merge(filepath.Join(home, ".config", "chronicle", "viewers.toml"))
	}
	return r, nil
}

func parseRegistry(data []byte) (*Registry, error) {
	var file viewersFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing viewers.toml: %w", err)
	}
	if file.Viewers == nil {
		file.Viewers = make(map[string]ViewerDefinition)
	}
	return &Registry{viewers: file.Viewers, goos: runtime.GOOS}, nil
}

// Merge loads definitions from path, replacing built-ins of the same name.
// A missing file is not an error.
func (r *Registry) Merge(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var file viewersFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	for name, def := range file.Viewers {
		r.viewers[name] = def
	}
	return nil
}

// Definition returns the definition registered under name.
func (r *Registry) Definition(name string) (ViewerDefinition, bool) {
	def, ok := r.viewers[name]
	return def, ok
}

// Binary is the executable a viewer runs.
func (r *Registry) Binary(name string) string {
	if def, ok := r.viewers[name]; ok && def.Command != "" {
		return def.Command
	}
	return name
}

// Available reports whether the viewer's binary is on PATH.
func (r *Registry) Available(name string) bool {
	_, err := exec.LookPath(r.Binary(name))
	return err == nil
}

// Command builds the invocation of viewer for target. Unknown viewers run
// with the target as their only argument.
func (r *Registry) Command(name, target string) (*exec.Cmd, error) {
	def, ok := r.viewers[name]
	if !ok {
		return exec.Command(name, target), nil
	}
	if len(def.Platforms) > 0 && !slices.Contains(def.Platforms, r.goos) {
		return nil, fmt.Errorf("%s not supported on %s", name, r.goos)
	}
	args := append(slices.Clone(r.args(def)), target)
	return exec.Command(r.Binary(name), args...), nil
}

func (r *Registry) args(def ViewerDefinition) []string {
	switch r.goos {
	case "darwin":
		if len(def.ArgsDarwin) > 0 {
			return def.ArgsDarwin
		}
	case "linux":
		if len(def.ArgsLinux) > 0 {
			return def.ArgsLinux
		}
	case "windows":
		if len(def.ArgsWindows) > 0 {
			return def.ArgsWindows
		}
	}
	return def.Args
}
