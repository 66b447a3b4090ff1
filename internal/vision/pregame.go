package vision

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Probe points of the lobby banner check, relative to the crop origin.
// Before a match starts the HUD reads "NN | Joined" instead of "NN | Alive";
// the longer word pushes the bar into the middle of the crop, where it shows
// up as a dark pixel between two similar light ones.
var barProbe = struct{ y, left, center, right int }{y: 9, left: 15, center: 16, right: 17}

// LooksPreGame reports whether the counter crop shows the lobby separator bar.
func LooksPreGame(img image.Image) bool {
	b := img.Bounds()
	if b.Dx() <= barProbe.right || b.Dy() <= barProbe.y {
		return false
	}

	lum := func(x int) float64 {
		c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+barProbe.y)).(color.Gray)
		return float64(c.Y)
	}
	left, center, right := lum(barProbe.left), lum(barProbe.center), lum(barProbe.right)

	if left <= 0.90*right || left >= 1.10*right {
		return false
	}
	return center < 0.75*right
}

// CropLooksPreGame opens the crop at path and applies LooksPreGame.
func CropLooksPreGame(path string) (bool, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return false, fmt.Errorf("open crop: %w", err)
	}
	return LooksPreGame(img), nil
}
