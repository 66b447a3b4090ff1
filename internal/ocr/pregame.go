package ocr

import (
	"context"
	"io"

	"stream-ranker/internal/vision"
)

// PreGameFilter wraps a Reader and reports crops showing the lobby banner
// ("NN | Joined") as unreadable, since the number shown there is the lobby
// size, often with its first digit cut off by the crop.
type PreGameFilter struct {
	next Reader
}

// WithPreGameFilter decorates next with the lobby banner check.
func WithPreGameFilter(next Reader) *PreGameFilter {
	return &PreGameFilter{next: next}
}

// ReadCounter implements Reader.
func (f *PreGameFilter) ReadCounter(ctx context.Context, cropPath string) (Reading, error) {
	pregame, err := vision.CropLooksPreGame(cropPath)
	if err != nil {
		return Reading{}, err
	}
	if pregame {
		return Unreadable("pregame"), nil
	}
	return f.next.ReadCounter(ctx, cropPath)
}

// Close closes the wrapped reader if it holds resources.
func (f *PreGameFilter) Close() error {
	if c, ok := f.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
