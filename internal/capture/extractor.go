package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultFrameOffset is the position in the clip the still is taken from.
	DefaultFrameOffset = time.Second

	// DefaultFFmpegTimeout bounds one ffmpeg invocation.
	DefaultFFmpegTimeout = 30 * time.Second

	frameExt = ".png"
)

// ExtractorConfig configures an Extractor.
type ExtractorConfig struct {
	// Bin is the ffmpeg executable ("ffmpeg" when empty).
	Bin string
	// Dir receives one still per stream.
	Dir     string
	Offset  time.Duration
	Timeout time.Duration
}

// Extractor writes a single still frame of a clip with ffmpeg.
type Extractor struct {
	cfg ExtractorConfig
}

// NewExtractor returns an Extractor, creating the thumbnails directory if needed.
func NewExtractor(cfg ExtractorConfig) (*Extractor, error) {
	if cfg.Bin == "" {
		cfg.Bin = "ffmpeg"
	}
	if cfg.Offset < 0 {
		cfg.Offset = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFFmpegTimeout
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnails dir: %w", err)
	}
	return &Extractor{cfg: cfg}, nil
}

func (e *Extractor) args(clip, output string) []string {
	return []string{
		"-y",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", e.cfg.Offset.Seconds()),
		"-i", clip,
		"-frames:v", "1",
		output,
	}
}

// ExtractFrame writes one still of clipPath to <Dir>/<name>.png. A missing clip
// fails with ErrNotFound. On any failure the clip is deleted so a partial
// recording is never read again.
func (e *Extractor) ExtractFrame(ctx context.Context, clipPath string) (thumb string, err error) {
	base := filepath.Base(clipPath)
	thumb = filepath.Join(e.cfg.Dir, strings.TrimSuffix(base, filepath.Ext(base))+frameExt)

	defer func() {
		if err != nil {
			os.Remove(clipPath)
			os.Remove(thumb)
		}
	}()

	if err := os.Remove(thumb); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("remove stale frame: %w", err)
	}

	if _, err := os.Stat(clipPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, clipPath)
		}
		return "", fmt.Errorf("stat clip: %w", err)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, e.cfg.Bin, e.args(clipPath, thumb)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	if info, err := os.Stat(thumb); err != nil || info.Size() == 0 {
		return "", fmt.Errorf("ffmpeg produced no output for %s", clipPath)
	}
	return thumb, nil
}
