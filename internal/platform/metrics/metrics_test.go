package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveCycle(OutcomePublished, 12*time.Second)
	m.ObserveCycle(OutcomeSkipped, time.Second)
	m.IncStageFailure("capture")
	m.IncStageFailure("capture")
	m.IncExcluded(ReasonDeadline)
	m.IncExcluded(ReasonUnreadable)
	m.IncExcluded(ReasonUnreadable)

	called := false
	rec := httptest.NewRecorder()
	m.Handler(func() {
		called = true
		m.SetPublished(3, 7)
	}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !called {
		t.Error("updateGauges was not called before scrape")
	}
	body := rec.Body.String()
	for _, want := range []string{
		`stream_ranker_cycles_total{outcome="published"} 1`,
		`stream_ranker_cycles_total{outcome="skipped"} 1`,
		`stream_ranker_stage_failures_total{stage="capture"} 2`,
		`stream_ranker_streams_excluded_total{reason="deadline"} 1`,
		`stream_ranker_streams_excluded_total{reason="unreadable"} 2`,
		`stream_ranker_published_entries 3`,
		`stream_ranker_published_sequence 7`,
		`stream_ranker_cycle_duration_seconds_count 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/current", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	rec := httptest.NewRecorder()
	m.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "stream_ranker_requests_total 2") {
		t.Errorf("expected 2 requests: %s", body)
	}
	if !strings.Contains(body, "stream_ranker_errors_total 1") {
		t.Errorf("expected 1 error: %s", body)
	}
}
