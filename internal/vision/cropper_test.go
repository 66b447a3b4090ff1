package vision

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func writeFrame(t *testing.T, path string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{0, 0, 0, 255})
	// Mark the default counter region so the crop is recognisable.
	for x := 28; x < 1190 && x < w; x++ {
		for y := 20; y < 25 && y < h; y++ {
			img.Set(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save frame: %v", err)
	}
}

func TestCropper_CropRegion(t *testing.T) {
	dir := t.TempDir()
	thumbs := filepath.Join(dir, "thumbnails")
	if err := os.MkdirAll(thumbs, 0o755); err != nil {
		t.Fatal(err)
	}
	c, err := NewCropper(filepath.Join(dir, "crops"))
	if err != nil {
		t.Fatalf("NewCropper: %v", err)
	}
	rect := image.Rect(28, 20, 1190, 25)

	t.Run("crops_fixed_rect", func(t *testing.T) {
		in := filepath.Join(thumbs, "shroud.png")
		writeFrame(t, in, 1280, 720)

		out, err := c.CropRegion(context.Background(), in, rect)
		if err != nil {
			t.Fatalf("CropRegion: %v", err)
		}
		if out != filepath.Join(dir, "crops", "shroud.png") {
			t.Errorf("unexpected output path %s", out)
		}
		img, err := imaging.Open(out)
		if err != nil {
			t.Fatalf("open crop: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 1190-28 || b.Dy() != 25-20 {
			t.Errorf("crop size: got %v", b)
		}
		if r, _, _, _ := img.At(0, 0).RGBA(); r != 0xffff {
			t.Errorf("crop should start inside the marked region, got r=%d", r)
		}
	})

	t.Run("missing_input_writes_nothing", func(t *testing.T) {
		_, err := c.CropRegion(context.Background(), filepath.Join(thumbs, "ghost.png"), rect)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "crops", "ghost.png")); !os.IsNotExist(err) {
			t.Errorf("no crop should be written for a missing input, stat err=%v", err)
		}
	})

	t.Run("region_outside_frame", func(t *testing.T) {
		in := filepath.Join(thumbs, "tiny.png")
		writeFrame(t, in, 16, 16)

		_, err := c.CropRegion(context.Background(), in, rect)
		if !errors.Is(err, ErrEmptyRegion) {
			t.Errorf("expected ErrEmptyRegion, got %v", err)
		}
	})

	t.Run("cancelled_context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := c.CropRegion(ctx, filepath.Join(thumbs, "shroud.png"), rect); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLooksPreGame(t *testing.T) {
	light := color.NRGBA{200, 200, 200, 255}
	dark := color.NRGBA{40, 40, 40, 255}

	tests := []struct {
		name   string
		center color.NRGBA
		right  color.NRGBA
		want   bool
	}{
		{"bar_present", dark, light, true},
		{"uniform", light, light, false},
		{"left_right_differ", dark, color.NRGBA{100, 100, 100, 255}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := imaging.New(22, 22, light)
			img.Set(16, 9, tt.center)
			img.Set(17, 9, tt.right)
			if got := LooksPreGame(img); got != tt.want {
				t.Errorf("LooksPreGame = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("too_small", func(t *testing.T) {
		if LooksPreGame(imaging.New(5, 5, light)) {
			t.Error("small crop cannot show the bar")
		}
	})
}
