// Package capture records short samples of live streams and pulls stills out of them.
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
	// DefaultSampleWindow is how long a stream is recorded.
	DefaultSampleWindow = 10 * time.Second

	// DefaultGrace is how long the capture tool may take to exit after being interrupted.
	DefaultGrace = 5 * time.Second

	clipExt = ".ts"

	// configName is the streamlink config file written next to the clips
	// when a user token is set.
	configName = ".streamlink-config"
)

var (
	// ErrCaptureFailed is returned when no usable clip was recorded.
	ErrCaptureFailed = errors.New("capture failed")

	// ErrNotFound is returned when an expected input file is missing.
	ErrNotFound = errors.New("file not found")
)

// SamplerConfig configures a Sampler.
type SamplerConfig struct {
	// Bin is the streamlink executable ("streamlink" when empty).
	Bin string
	// Dir receives one clip per stream.
	Dir string
	// Window is the recording time (DefaultSampleWindow when zero).
	Window time.Duration
	// Grace bounds the wait after the interrupt before the tool is killed.
	Grace time.Duration
	// Qualities are tried by streamlink in order.
	Qualities []string
	// UserToken is an optional Twitch user OAuth token forwarded to streamlink
	// through a private config file, never on the command line.
	UserToken string
}

// Sampler records a fixed window of a live stream with streamlink.
type Sampler struct {
	cfg SamplerConfig
	// configPath is empty unless a user token is set.
	configPath string
}

// NewSampler returns a Sampler, creating the clips directory if needed.
func NewSampler(cfg SamplerConfig) (*Sampler, error) {
	if cfg.Bin == "" {
		cfg.Bin = "streamlink"
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultSampleWindow
	}
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	if len(cfg.Qualities) == 0 {
		cfg.Qualities = []string{"best"}
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create clips dir: %w", err)
	}
	s := &Sampler{cfg: cfg}
	if cfg.UserToken != "" {
		path, err := writeConfig(cfg.Dir, cfg.UserToken)
		if err != nil {
			return nil, err
		}
		s.configPath = path
	}
	return s, nil
}

// writeConfig stores the Authorization header in a streamlink config file
// readable only by the current user, so the token does not show up in the
// process list.
func writeConfig(dir, token string) (string, error) {
	path := filepath.Join(dir, configName)
	body := "twitch-api-header=Authorization=OAuth " + strings.TrimPrefix(strings.TrimSpace(token), "oauth:") + "\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		return "", fmt.Errorf("write streamlink config: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return "", fmt.Errorf("write streamlink config: %w", err)
	}
	return path, nil
}

// Window returns the configured recording time.
func (s *Sampler) Window() time.Duration {
	return s.cfg.Window
}

// ClipPath returns where the clip of streamID is written.
func (s *Sampler) ClipPath(streamID string) string {
	return filepath.Join(s.cfg.Dir, streamID+clipExt)
}

func (s *Sampler) args(streamID, output string) []string {
	var args []string
	if s.configPath != "" {
		args = append(args, "--config", s.configPath)
	}
	args = append(args, "--twitch-disable-ads", "-Q", "-f", "-o", output)
	return append(args, "twitch.tv/"+streamID, strings.Join(s.cfg.Qualities, ","))
}

// Sample records streamID for the configured window and returns the clip path.
// The tool is interrupted when the window ends and killed if it is still
// running Grace later, so it never outlives the call.
func (s *Sampler) Sample(ctx context.Context, streamID string) (string, error) {
	clip := s.ClipPath(streamID)
	if err := os.Remove(clip); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("remove stale clip: %w", err)
	}

	windowCtx, cancel := context.WithTimeout(ctx, s.cfg.Window)
	defer cancel()

	cmd := exec.CommandContext(windowCtx, s.cfg.Bin, s.args(streamID, clip)...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = s.cfg.Grace

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		os.Remove(clip)
		return "", ctxErr
	}
	// Exiting on our interrupt is the normal end of a sample; an earlier
	// failure means the stream could not be opened.
	if err != nil && windowCtx.Err() == nil {
		os.Remove(clip)
		return "", fmt.Errorf("%w: %s: %v (stderr: %s)", ErrCaptureFailed, streamID, err, strings.TrimSpace(stderr.String()))
	}

	info, statErr := os.Stat(clip)
	if statErr != nil || info.Size() == 0 {
		os.Remove(clip)
		return "", fmt.Errorf("%w: %s: no clip written", ErrCaptureFailed, streamID)
	}
	return clip, nil
}
