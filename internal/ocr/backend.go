package ocr

import (
	"fmt"
	"strings"
	"time"
)

// Backend names accepted by NewReader.
const (
	BackendTesseract = "tesseract"
	BackendService   = "service"
	BackendGosseract = "gosseract"
)

// Options selects and configures an OCR backend.
type Options struct {
	Backend       string
	TesseractPath string
	ServiceURL    string
	Timeout       time.Duration
	// DetectPreGame wraps the backend in a PreGameFilter.
	DetectPreGame bool
}

// NewReader builds the Reader described by opts.
func NewReader(opts Options) (Reader, error) {
	var (
		r   Reader
		err error
	)
	switch strings.ToLower(opts.Backend) {
	case "", BackendTesseract:
		r = NewTesseractReader(opts.TesseractPath, opts.Timeout)
	case BackendService:
		if opts.ServiceURL == "" {
			return nil, fmt.Errorf("ocr backend %q needs OCR_URL", BackendService)
		}
		r = NewServiceReader(opts.ServiceURL, opts.Timeout)
	case BackendGosseract:
		r, err = NewGosseractReader()
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown ocr backend %q", opts.Backend)
	}

	if opts.DetectPreGame {
		r = WithPreGameFilter(r)
	}
	return r, nil
}
