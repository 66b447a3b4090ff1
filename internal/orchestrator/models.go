package orchestrator

import "time"

// Stage names a step of the per-stream pipeline. Used in logs and metrics.
type Stage string

const (
	StageDiscovery Stage = "discovery"
	StageCapture   Stage = "capture"
	StageExtract   Stage = "extract"
	StageCrop      Stage = "crop"
	StageRecognize Stage = "recognize"
)

// StreamCandidate is a live stream found during one poll cycle.
type StreamCandidate struct {
	// Name is the stream identifier (the channel login).
	Name string
	// Position is the index in discovery order, used to keep ties stable.
	Position int
}

// PipelineResult is what one per-stream pipeline produced.
type PipelineResult struct {
	Stream   StreamCandidate
	Alive    int
	Readable bool

	// Err is set when a stage failed; FailedAt names that stage.
	Err      error
	FailedAt Stage
}

// OK reports whether the pipeline ran to completion.
func (r PipelineResult) OK() bool {
	return r.Err == nil
}

// RankedEntry is one published stream.
// This also matches the JSON served by /current and /all.
type RankedEntry struct {
	StreamName string    `json:"stream_name"`
	Alive      int       `json:"alive"`
	StreamURL  string    `json:"stream_url"`
	Updated    time.Time `json:"updated"`
}

// Snapshot is one complete published ranking. A published Snapshot is never
// modified; a new one replaces it.
type Snapshot struct {
	// Seq is the poll cycle that produced the ranking; 0 is the placeholder.
	Seq         uint64        `json:"seq"`
	Entries     []RankedEntry `json:"entries"`
	PublishedAt time.Time     `json:"published_at"`
}

// Current returns the head of the ranking.
func (s *Snapshot) Current() RankedEntry {
	if len(s.Entries) == 0 {
		return RankedEntry{}
	}
	return s.Entries[0]
}
