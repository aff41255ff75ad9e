package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ImageExtensions are the file types the upload codec can decode.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// ImagePathValidator vets a local file before it is staged for upload.
type ImagePathValidator struct {
	Extensions    []string
	MaxFileBytes  int64
	MaxPathLength int
	// AllowHomeExpansion determines if a leading ~/ is expanded
	AllowHomeExpansion bool
}

// NewImagePathValidator limits files to maxFileBytes; zero disables the limit.
func NewImagePathValidator(maxFileBytes int64) *ImagePathValidator {
	return &ImagePathValidator{
		Extensions:         ImageExtensions,
		MaxFileBytes:       maxFileBytes,
		MaxPathLength:      4096,
		AllowHomeExpansion: true,
	}
}

// ValidateFile returns the cleaned absolute path of an existing image file.
func (v *ImagePathValidator) ValidateFile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if len(path) > v.MaxPathLength {
		return "", fmt.Errorf("path too long (max %d characters)", v.MaxPathLength)
	}
	if !IsPathSafe(path) {
		return "", fmt.Errorf("path contains invalid characters")
	}

	clean, err := v.normalize(path)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(clean))
	if !slices.Contains(v.Extensions, ext) {
		return "", fmt.Errorf("unsupported image type %q", ext)
	}

	info, err := os.Stat(clean)
	if err != nil {
		return "", fmt.Errorf("checking image: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", clean)
	}
	if v.MaxFileBytes > 0 && info.Size() > v.MaxFileBytes {
		return "", fmt.Errorf("image is %d bytes, limit is %d", info.Size(), v.MaxFileBytes)
	}
	return clean, nil
}

func (v *ImagePathValidator) normalize(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		if !v.AllowHomeExpansion || !strings.HasPrefix(path, "~/") {
			return "", fmt.Errorf("tilde expansion not allowed or invalid tilde usage")
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot make path absolute: %w", err)
	}
	return filepath.Clean(abs), nil
}

// IsImagePath reports whether path has a decodable image extension.
func IsImagePath(path string) bool {
	return slices.Contains(ImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// IsPathSafe rejects null bytes, control characters and parent traversal.
func IsPathSafe(path string) bool {
	if strings.Contains(path, "\x00") {
		return false
	}
	for _, r := range path {
		if r < 32 && r != '\t' {
			return false
		}
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return false
		}
	}
	return len(path) <= 4096
}
