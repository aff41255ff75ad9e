// Package imagecodec turns a local image file into the inline form the
// article service accepts: a base64 JPEG, downscaled to a bounded size.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/pders01/chronicle/internal/config"
)

const (
	DefaultMaxDimension = 1600
	DefaultQuality      = 70
	DefaultMaxFileBytes = 15 << 20
)

type Encoder struct {
	maxDimension int
	quality      int
	maxFileBytes int64
}

func New(maxDimension, quality int, maxFileBytes int64) *Encoder {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	return &Encoder{maxDimension: maxDimension, quality: quality, maxFileBytes: maxFileBytes}
}

// NewFromConfig builds an encoder from the [upload] config section.
func NewFromConfig(cfg config.UploadConfig) *Encoder {
	return New(cfg.MaxDimension, cfg.JPEGQuality, cfg.MaxFileBytes)
}

// EncodeFile reads path and returns its base64 JPEG encoding.
func (e *Encoder) EncodeFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat image: %w", err)
	}
	if info.Size() > e.maxFileBytes {
		return "", fmt.Errorf("image is %d bytes, limit is %d", info.Size(), e.maxFileBytes)
	}

	data, err := e.JPEG(f)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// JPEG decodes any supported format from r and re-encodes it as JPEG.
// Images larger than the configured bound on either side are downscaled with
// their aspect ratio kept; smaller ones are never upscaled. Transparent
// pixels are flattened onto white.
func (e *Encoder) JPEG(r io.Reader) ([]byte, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	w, h := fit(img.Bounds().Dx(), img.Bounds().Dy(), e.maxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == img.Bounds().Dx() && h == img.Bounds().Dy() {
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		nh := h * limit / w
		return limit, max(nh, 1)
	}
	nw := w * limit / h
	return max(nw, 1), limit
}
