package validation

import (
	"fmt"
	"os"
	"path/filepath"
)

// PrepareDataPath validates a store, index or log path and creates its
// parent directory. ":memory:" and "" are returned unchanged.
func PrepareDataPath(path string) (string, error) {
	if path == "" || path == ":memory:" {
		return path, nil
	}
	if !IsPathSafe(path) {
		return "", fmt.Errorf("unsafe data path: %q", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot make path absolute: %w", err)
	}
	parent := filepath.Dir(abs)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return "", fmt.Errorf("parent is not a directory: %s", parent)
	}
	return abs, nil
}
