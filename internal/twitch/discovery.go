package twitch

import (
	"context"
	"log/slog"
	"strings"
)

// DefaultMaxPages caps how far the directory listing is followed per poll.
const DefaultMaxPages = 3

// Filter decides which live streams are eligible. Identifiers are compared
// case-insensitively.
type Filter struct {
	allow map[string]struct{}
	deny  map[string]struct{}
}

// NewFilter builds a Filter. Empty lists disable the corresponding rule.
func NewFilter(allow, deny []string) Filter {
	return Filter{allow: toSet(allow), deny: toSet(deny)}
}

func toSet(names []string) map[string]struct{} {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// Apply keeps eligible streams, preserving order. Rules apply in order:
// mature content is dropped, then the allow-list keeps only listed streams,
// then the deny-list drops listed streams.
func (f Filter) Apply(streams []Stream) []Stream {
	out := make([]Stream, 0, len(streams))
	for _, s := range streams {
		if s.IsMature {
			continue
		}
		name := strings.ToLower(s.UserLogin)
		if f.allow != nil {
			if _, ok := f.allow[name]; !ok {
				continue
			}
		}
		if f.deny != nil {
			if _, ok := f.deny[name]; ok {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// Discoverer lists eligible live streams of one game.
type Discoverer struct {
	client   *Client
	gameID   string
	language string
	filter   Filter
	maxPages int
	log      *slog.Logger
}

// NewDiscoverer returns a Discoverer for gameID restricted to language.
// maxPages <= 0 uses DefaultMaxPages.
func NewDiscoverer(client *Client, gameID, language string, filter Filter, maxPages int, log *slog.Logger) *Discoverer {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Discoverer{
		client:   client,
		gameID:   gameID,
		language: language,
		filter:   filter,
		maxPages: maxPages,
		log:      log,
	}
}

// Discover returns the logins of eligible streams in directory order.
// Pages fetched before an error are discarded with it: a partial listing
// would silently bias the ranking towards the most watched streams.
func (d *Discoverer) Discover(ctx context.Context) ([]string, error) {
	var (
		all    []Stream
		cursor string
	)
	for page := 0; page < d.maxPages; page++ {
		streams, next, err := d.client.GetStreams(ctx, StreamsQuery{
			GameID:   d.gameID,
			Language: d.language,
			After:    cursor,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, streams...)
		if next == "" || len(streams) == 0 {
			break
		}
		cursor = next
	}

	eligible := d.filter.Apply(all)
	d.log.Debug("discovered streams",
		slog.Int("listed", len(all)),
		slog.Int("eligible", len(eligible)))

	seen := make(map[string]struct{}, len(eligible))
	names := make([]string, 0, len(eligible))
	for _, s := range eligible {
		// The listing can shift between pages and repeat a stream.
		if _, dup := seen[s.UserLogin]; dup {
			continue
		}
		seen[s.UserLogin] = struct{}{}
		names = append(names, s.UserLogin)
	}
	return names, nil
}
