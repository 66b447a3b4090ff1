package orchestrator

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"stream-ranker/internal/platform/metrics"
)

const jsonContentType = "application/json"

// Handler exposes the published ranking over HTTP using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// Current handles GET /current: the single best stream to watch.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.Current())
}

// All handles GET /all: the full ranking, best first.
func (h *Handler) All(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.All())
}

type healthResponse struct {
	Status      string    `json:"status"`
	Seq         uint64    `json:"seq"`
	Entries     int       `json:"entries"`
	PublishedAt time.Time `json:"published_at"`
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.svc.Snapshot()
	h.writeJSON(w, healthResponse{
		Status:      "ok",
		Seq:         snap.Seq,
		Entries:     len(snap.Entries),
		PublishedAt: snap.PublishedAt,
	})
}

// UpdateGauges refreshes the published-ranking gauges; passed to the /metrics handler.
func (h *Handler) UpdateGauges() {
	if h.metrics == nil {
		return
	}
	snap := h.svc.Snapshot()
	h.metrics.SetPublished(len(snap.Entries), snap.Seq)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.log.Error("encode response failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
