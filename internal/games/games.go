// Package games holds per-game capture profiles: where the Twitch directory
// lists the game, and where on screen its "players remaining" counter lives.
package games

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

// DefaultKey is the profile used when no GAME is configured.
const DefaultKey = "pubg"

// ErrUnknownGame is returned by Catalog.Get for a key with no profile.
var ErrUnknownGame = errors.New("unknown game profile")

// Region is a pixel rectangle in frame coordinates.
type Region struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Profile describes how to find and read one game.
type Profile struct {
	Key      string
	Title    string
	GameID   string
	Language string
	// Counter is the HUD rectangle holding the players-remaining number.
	Counter Region
	// Qualities are passed to streamlink in order of preference.
	Qualities []string
	// DetectPreGame enables the lobby banner check on the cropped counter.
	DetectPreGame bool
}

// Validate reports the first problem that makes the profile unusable.
func (p Profile) Validate() error {
	if p.GameID == "" {
		return fmt.Errorf("game %q: game_id is required", p.Key)
	}
	if p.Counter.Width <= 0 || p.Counter.Height <= 0 || p.Counter.X < 0 || p.Counter.Y < 0 {
		return fmt.Errorf("game %q: counter region %+v is empty or negative", p.Key, p.Counter)
	}
	if len(p.Qualities) == 0 {
		return fmt.Errorf("game %q: at least one quality is required", p.Key)
	}
	return nil
}

// defaultQualities mirrors the 720p variants Twitch offers, with fallbacks.
var defaultQualities = []string{"720", "720p", "720p60", "720p60_alt", "best", "source"}

// Catalog is a set of profiles keyed by short name.
type Catalog map[string]Profile

// Defaults returns the built-in profiles.
func Defaults() Catalog {
	return Catalog{
		"pubg": {
			Key:       "pubg",
			Title:     "PLAYERUNKNOWN'S BATTLEGROUNDS",
			GameID:    "493057",
			Language:  "en",
			Counter:   Region{X: 28, Y: 20, Width: 1190 - 28, Height: 25 - 20},
			Qualities: defaultQualities,
		},
		// HUD crop of the 720p layout: the "NN | Alive" box in the top right.
		"pubg-hud": {
			Key:           "pubg-hud",
			Title:         "PLAYERUNKNOWN'S BATTLEGROUNDS",
			GameID:        "493057",
			Language:      "en",
			Counter:       Region{X: 1190, Y: 20, Width: 22, Height: 22},
			Qualities:     defaultQualities,
			DetectPreGame: true,
		},
	}
}

// fileFormat is the on-disk layout of a games file.
type fileFormat struct {
	Games map[string]fileProfile `yaml:"games"`
}

// fileProfile is one profile as written in a games file. Omitted fields keep
// the built-in value, so detect_pregame is a pointer: false must be able to
// switch the check off.
type fileProfile struct {
	Title         string   `yaml:"title"`
	GameID        string   `yaml:"game_id"`
	Language      string   `yaml:"language"`
	Counter       Region   `yaml:"counter"`
	Qualities     []string `yaml:"qualities"`
	DetectPreGame *bool    `yaml:"detect_pregame"`
}

// Load returns the built-in profiles overlaid with the profiles in path.
// Fields omitted in the file fall back to the built-in profile of the same key.
// An empty path returns the defaults.
func Load(path string) (Catalog, error) {
	catalog := Defaults()
	if path == "" {
		return catalog, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read games file: %w", err)
	}

	var f fileFormat
	if err := yaml.UnmarshalStrict(b, &f); err != nil {
		return nil, fmt.Errorf("parse games file %s: %w", path, err)
	}

	for key, p := range f.Games {
		catalog[key] = merge(catalog[key], p, key)
	}
	return catalog, nil
}

func merge(base Profile, over fileProfile, key string) Profile {
	out := base
	out.Key = key
	if over.Title != "" {
		out.Title = over.Title
	}
	if over.GameID != "" {
		out.GameID = over.GameID
	}
	if over.Language != "" {
		out.Language = over.Language
	}
	if over.Counter != (Region{}) {
		out.Counter = over.Counter
	}
	if len(over.Qualities) > 0 {
		out.Qualities = over.Qualities
	}
	if len(out.Qualities) == 0 {
		out.Qualities = defaultQualities
	}
	if over.DetectPreGame != nil {
		out.DetectPreGame = *over.DetectPreGame
	}
	return out
}

// Get returns the validated profile for key.
func (c Catalog) Get(key string) (Profile, error) {
	p, ok := c[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownGame, key, strings.Join(c.Keys(), ", "))
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Keys returns the profile keys in sorted order.
func (c Catalog) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
