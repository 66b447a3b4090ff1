//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// GosseractAvailable reports whether this binary was built with the in-process engine.
const GosseractAvailable = true

// GosseractReader runs tesseract in-process through libtesseract. A client is
// not safe for concurrent use, so calls are serialised.
type GosseractReader struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewGosseractReader creates a client configured for a single line of digits.
func NewGosseractReader() (Reader, error) {
	client := gosseract.NewClient()
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_WORD); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page seg mode: %w", err)
	}
	if err := client.SetWhitelist("0123456789"); err != nil {
		client.Close()
		return nil, fmt.Errorf("set whitelist: %w", err)
	}
	return &GosseractReader{client: client}, nil
}

// ReadCounter implements Reader.
func (r *GosseractReader) ReadCounter(ctx context.Context, cropPath string) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.SetImage(cropPath); err != nil {
		return Reading{}, fmt.Errorf("gosseract set image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return Reading{}, fmt.Errorf("gosseract text: %w", err)
	}
	return ParseCount(text), nil
}

// Close releases the underlying tesseract handle.
func (r *GosseractReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}
