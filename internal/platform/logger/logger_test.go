package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_levels(t *testing.T) {
	log := New("warn", "text")
	if log.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !log.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be enabled at warn level")
	}

	if !New("bogus", "json").Enabled(context.Background(), slog.LevelInfo) {
		t.Error("unknown level should default to info")
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	t.Run("generates_request_id", func(t *testing.T) {
		buf.Reset()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/current", nil))

		if rec.Header().Get(HeaderRequestID) == "" {
			t.Error("expected generated request id header")
		}

		var entry map[string]interface{}
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("log line is not json: %v (%s)", err, buf.String())
		}
		if entry["path"] != "/current" || entry["status"] != float64(http.StatusTeapot) {
			t.Errorf("unexpected log entry: %v", entry)
		}
		if entry["size"] != float64(len("short and stout")) {
			t.Errorf("unexpected size: %v", entry["size"])
		}
	})

	t.Run("keeps_incoming_request_id", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, "/all", nil)
		req.Header.Set(HeaderRequestID, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get(HeaderRequestID); got != "abc-123" {
			t.Errorf("request id: got %q", got)
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"abc-123"`)) {
			t.Errorf("log line missing request id: %s", buf.String())
		}
	})
}
