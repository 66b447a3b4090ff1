package orchestrator

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"stream-ranker/internal/ocr"
)

// DefaultViewerURLTemplate is the embeddable player; {stream} is replaced by the login.
const DefaultViewerURLTemplate = "https://player.twitch.tv/?channel={stream}&parent=localhost"

// ViewerURL fills the {stream} placeholder of template.
func ViewerURL(template, stream string) string {
	if template == "" {
		template = DefaultViewerURLTemplate
	}
	return strings.ReplaceAll(template, "{stream}", url.QueryEscape(stream))
}

// RankOptions controls how results become a ranking.
type RankOptions struct {
	// IncludeUnreadable keeps streams whose counter could not be read, ranked
	// after every readable stream with ocr.UnreadableAlive as their count.
	IncludeUnreadable bool
	// URLTemplate builds stream_url, see ViewerURL.
	URLTemplate string
}

// Rank turns the completed results of a cycle into a ranking: fewest players
// remaining first, ties kept in discovery order. Failed results are dropped.
// The returned slice is empty when nothing qualifies.
func Rank(results []PipelineResult, opts RankOptions, now time.Time) []RankedEntry {
	kept := make([]PipelineResult, 0, len(results))
	for _, r := range results {
		if !r.OK() {
			continue
		}
		if !r.Readable && !opts.IncludeUnreadable {
			continue
		}
		kept = append(kept, r)
	}

	// Results arrive in completion order; discovery order is the tie-break.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Stream.Position < kept[j].Stream.Position
	})
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Readable != b.Readable {
			return a.Readable
		}
		if !a.Readable {
			return false
		}
		return a.Alive < b.Alive
	})

	entries := make([]RankedEntry, 0, len(kept))
	for _, r := range kept {
		alive := r.Alive
		if !r.Readable {
			alive = ocr.UnreadableAlive
		}
		entries = append(entries, RankedEntry{
			StreamName: r.Stream.Name,
			Alive:      alive,
			StreamURL:  ViewerURL(opts.URLTemplate, r.Stream.Name),
			Updated:    now,
		})
	}
	return entries
}

// Placeholder is the entry published before the first successful cycle.
// It carries no count, so it uses ocr.UnreadableAlive.
func Placeholder(stream, urlTemplate string, now time.Time) RankedEntry {
	return RankedEntry{
		StreamName: stream,
		Alive:      ocr.UnreadableAlive,
		StreamURL:  ViewerURL(urlTemplate, stream),
		Updated:    now,
	}
}
