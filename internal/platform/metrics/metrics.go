package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cycle outcomes recorded on the cycles counter.
const (
	OutcomePublished = "published"
	OutcomeSkipped   = "skipped"
	OutcomeNoStreams = "no_streams"
	OutcomeStale     = "stale"
)

// Reasons a stream is left out of a ranking without any stage failing.
const (
	// ReasonDeadline: the collect deadline passed before the stream finished.
	ReasonDeadline = "deadline"
	// ReasonUnreadable: the counter was recognized as not showing a number.
	ReasonUnreadable = "unreadable"
)

// Metrics holds Prometheus counters and gauges for the stream ranker.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    prometheus.Counter
	errorsTotal      prometheus.Counter
	cyclesTotal      *prometheus.CounterVec
	stageFailures    *prometheus.CounterVec
	streamsExcluded  *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	publishedEntries prometheus.Gauge
	publishedSeq     prometheus.Gauge
}

// New creates and registers Prometheus metrics for the ranker.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stream_ranker_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stream_ranker_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	cyclesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_ranker_cycles_total",
		Help: "Poll cycles by outcome",
	}, []string{"outcome"})
	stageFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_ranker_stage_failures_total",
		Help: "Per-stream pipeline failures by stage",
	}, []string{"stage"})
	streamsExcluded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_ranker_streams_excluded_total",
		Help: "Streams left out of a cycle's ranking without a stage failure, by reason",
	}, []string{"reason"})
	cycleDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stream_ranker_cycle_duration_seconds",
		Help:    "Wall time of a poll cycle from discovery to publish",
		Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 90, 120},
	})
	publishedEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stream_ranker_published_entries",
		Help: "Number of entries in the currently published ranking",
	})
	publishedSeq := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stream_ranker_published_sequence",
		Help: "Cycle sequence number of the currently published ranking",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		cyclesTotal,
		stageFailures,
		streamsExcluded,
		cycleDuration,
		publishedEntries,
		publishedSeq,
	)

	return &Metrics{
		registry:         registry,
		requestsTotal:    requestsTotal,
		errorsTotal:      errorsTotal,
		cyclesTotal:      cyclesTotal,
		stageFailures:    stageFailures,
		streamsExcluded:  streamsExcluded,
		cycleDuration:    cycleDuration,
		publishedEntries: publishedEntries,
		publishedSeq:     publishedSeq,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// ObserveCycle records the outcome and duration of one poll cycle.
func (m *Metrics) ObserveCycle(outcome string, d time.Duration) {
	m.cyclesTotal.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

// IncStageFailure counts a per-stream failure at the named stage.
func (m *Metrics) IncStageFailure(stage string) {
	m.stageFailures.WithLabelValues(stage).Inc()
}

// IncExcluded counts a stream dropped from a cycle for the given reason.
func (m *Metrics) IncExcluded(reason string) {
	m.streamsExcluded.WithLabelValues(reason).Inc()
}

// SetPublished records the size and sequence of the published ranking.
func (m *Metrics) SetPublished(entries int, seq uint64) {
	m.publishedEntries.Set(float64(entries))
	m.publishedSeq.Set(float64(seq))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
