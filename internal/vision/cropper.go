// Package vision crops the counter region out of a captured frame.
package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

var (
	// ErrNotFound is returned when the input frame does not exist.
	ErrNotFound = errors.New("frame not found")

	// ErrEmptyRegion is returned when the crop rectangle does not overlap the frame.
	ErrEmptyRegion = errors.New("crop region outside frame")
)

// Cropper writes the counter region of each thumbnail to <dir>/<name>.png.
type Cropper struct {
	dir string
}

// NewCropper returns a Cropper writing into dir, creating it if needed.
func NewCropper(dir string) (*Cropper, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create crops dir: %w", err)
	}
	return &Cropper{dir: dir}, nil
}

// CropRegion crops rect out of the image at thumbnailPath and returns the path
// of the written crop. A missing input fails with ErrNotFound and writes nothing.
func (c *Cropper) CropRegion(ctx context.Context, thumbnailPath string, rect image.Rectangle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	base := filepath.Base(thumbnailPath)
	out := filepath.Join(c.dir, strings.TrimSuffix(base, filepath.Ext(base))+".png")

	// Never leave a previous cycle's crop behind for this stream.
	_ = os.Remove(out)

	if _, err := os.Stat(thumbnailPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, thumbnailPath)
		}
		return "", fmt.Errorf("stat frame: %w", err)
	}

	img, err := imaging.Open(thumbnailPath)
	if err != nil {
		return "", fmt.Errorf("decode frame: %w", err)
	}

	cropped, err := Crop(img, rect)
	if err != nil {
		return "", err
	}

	if err := writePNG(out, cropped); err != nil {
		return "", err
	}
	return out, nil
}

// Crop returns the part of img inside rect, with bounds starting at (0, 0).
func Crop(img image.Image, rect image.Rectangle) (image.Image, error) {
	b := img.Bounds()
	r := rect.Add(b.Min).Intersect(b)
	if r.Empty() {
		return nil, fmt.Errorf("%w: %v not in %v", ErrEmptyRegion, rect, b)
	}
	return imaging.Crop(img, r), nil
}

// writePNG encodes img to a temp file next to path and renames it into place.
func writePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".crop-*.png")
	if err != nil {
		return fmt.Errorf("create temp crop: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := imaging.Encode(tmp, img, imaging.PNG); err != nil {
		tmp.Close()
		return fmt.Errorf("encode crop: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close crop: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename crop: %w", err)
	}

	success = true
	return nil
}
