//go:build !gosseract

package ocr

import "errors"

// GosseractAvailable reports whether this binary was built with the in-process engine.
const GosseractAvailable = false

// NewGosseractReader fails unless the binary was built with -tags gosseract,
// which needs libtesseract and cgo.
func NewGosseractReader() (Reader, error) {
	return nil, errors.New("gosseract backend not compiled in; rebuild with -tags gosseract")
}
