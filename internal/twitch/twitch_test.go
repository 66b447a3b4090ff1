package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"golang.org/x/time/rate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFilter_Apply(t *testing.T) {
	streams := []Stream{
		{UserLogin: "alpha"},
		{UserLogin: "bravo", IsMature: true},
		{UserLogin: "Charlie"},
		{UserLogin: "delta"},
	}

	tests := []struct {
		name  string
		allow []string
		deny  []string
		want  []string
	}{
		{"mature_only", nil, nil, []string{"alpha", "Charlie", "delta"}},
		{"allow_list", []string{"CHARLIE", "bravo"}, nil, []string{"Charlie"}},
		{"deny_list", nil, []string{"alpha"}, []string{"Charlie", "delta"}},
		{"deny_after_allow", []string{"alpha", "delta"}, []string{"delta"}, []string{"alpha"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewFilter(tt.allow, tt.deny).Apply(streams)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d streams, want %v", len(got), tt.want)
			}
			for i := range got {
				if got[i].UserLogin != tt.want[i] {
					t.Errorf("position %d: got %s want %s", i, got[i].UserLogin, tt.want[i])
				}
			}
		})
	}
}

func newHelix(t *testing.T, pages map[string]streamsResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Client-Id") != "cid" || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		if r.URL.Path != "/streams" || q.Get("game_id") != "493057" || q.Get("language") != "en" || q.Get("type") != "live" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		page, ok := pages[q.Get("after")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(page)
	}))
}

func newTestClient(url, token string) *Client {
	return NewClient("cid", token, WithBaseURL(url), WithRateLimit(rate.Inf, 1))
}

func TestDiscoverer_Discover(t *testing.T) {
	srv := newHelix(t, map[string]streamsResponse{
		"": {
			Data:       []Stream{{UserLogin: "alpha"}, {UserLogin: "bravo", IsMature: true}},
			Pagination: pagination{Cursor: "p2"},
		},
		"p2": {
			Data: []Stream{{UserLogin: "charlie"}, {UserLogin: "alpha"}, {UserLogin: "delta"}},
		},
	})
	defer srv.Close()

	d := NewDiscoverer(newTestClient(srv.URL, "oauth:tok"), "493057", "en", NewFilter(nil, []string{"delta"}), 0, testLogger())
	got, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{"alpha", "charlie"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Discover: got %v want %v", got, want)
	}
}

func TestDiscoverer_maxPages(t *testing.T) {
	srv := newHelix(t, map[string]streamsResponse{
		"":   {Data: []Stream{{UserLogin: "alpha"}}, Pagination: pagination{Cursor: "p2"}},
		"p2": {Data: []Stream{{UserLogin: "bravo"}}, Pagination: pagination{Cursor: "p3"}},
	})
	defer srv.Close()

	d := NewDiscoverer(newTestClient(srv.URL, "tok"), "493057", "en", NewFilter(nil, nil), 1, testLogger())
	got, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 1 || got[0] != "alpha" {
		t.Errorf("expected only the first page, got %v", got)
	}
}

func TestDiscoverer_errors(t *testing.T) {
	srv := newHelix(t, map[string]streamsResponse{
		"": {Data: []Stream{{UserLogin: "alpha"}}, Pagination: pagination{Cursor: "missing"}},
	})
	defer srv.Close()

	t.Run("unauthorized", func(t *testing.T) {
		d := NewDiscoverer(newTestClient(srv.URL, "wrong"), "493057", "en", NewFilter(nil, nil), 0, testLogger())
		if _, err := d.Discover(context.Background()); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("failed_page_discards_listing", func(t *testing.T) {
		d := NewDiscoverer(newTestClient(srv.URL, "tok"), "493057", "en", NewFilter(nil, nil), 0, testLogger())
		got, err := d.Discover(context.Background())
		if !errors.Is(err, ErrStatus) {
			t.Errorf("expected ErrStatus, got %v", err)
		}
		if got != nil {
			t.Errorf("expected no streams on error, got %v", got)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		d := NewDiscoverer(newTestClient("http://127.0.0.1:1", "tok"), "493057", "en", NewFilter(nil, nil), 0, testLogger())
		if _, err := d.Discover(context.Background()); err == nil {
			t.Error("expected network error")
		}
	})
}
