package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single OCR invocation.
const DefaultTimeout = 10 * time.Second

// TesseractReader runs the tesseract CLI in single-word mode over a crop.
type TesseractReader struct {
	bin     string
	timeout time.Duration
}

// NewTesseractReader returns a reader using the tesseract binary at bin
// ("tesseract" when empty). A non-positive timeout uses DefaultTimeout.
func NewTesseractReader(bin string, timeout time.Duration) *TesseractReader {
	if bin == "" {
		bin = "tesseract"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TesseractReader{bin: bin, timeout: timeout}
}

// args builds the tesseract command line. psm 8 treats the crop as one word.
func (r *TesseractReader) args(cropPath string) []string {
	return []string{
		cropPath,
		"stdout",
		"--psm", "8",
		"-c", "tessedit_char_whitelist=0123456789",
	}
}

// ReadCounter implements Reader.
func (r *TesseractReader) ReadCounter(ctx context.Context, cropPath string) (Reading, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, r.bin, r.args(cropPath)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Reading{}, fmt.Errorf("tesseract failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	return ParseCount(stdout.String()), nil
}
