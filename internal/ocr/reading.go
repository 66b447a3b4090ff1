// Package ocr turns a cropped counter image into a players-remaining count.
package ocr

import (
	"context"
	"strconv"
	"strings"
)

// UnreadableAlive is the count given to an unreadable crop when such entries
// are allowed to take part in a ranking. Real counts stay well below it.
const UnreadableAlive = 100

// Reading is the outcome of recognising one counter crop.
type Reading struct {
	// Alive is the parsed count; only meaningful when Readable is true.
	Alive int
	// Readable is false when the text was empty, non-numeric or not positive.
	Readable bool
	// Text is the raw engine output, kept for logging.
	Text string
}

// Unreadable returns a Reading that carries no count.
func Unreadable(text string) Reading {
	return Reading{Text: text}
}

// ParseCount applies the counter policy to raw OCR text: surrounding whitespace
// is trimmed, and anything that is not a positive integer is Unreadable. A zero
// is never a real in-game value, it is what OCR garbage usually parses to.
func ParseCount(text string) Reading {
	s := strings.TrimSpace(text)
	if s == "" {
		return Unreadable(text)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return Unreadable(text)
	}
	return Reading{Alive: n, Readable: true, Text: text}
}

// Reader recognises the counter in a crop. Implementations return an error
// only when the engine could not run at all; unparseable text is a Reading
// with Readable set to false.
type Reader interface {
	ReadCounter(ctx context.Context, cropPath string) (Reading, error)
}
