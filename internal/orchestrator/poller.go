package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"stream-ranker/internal/lockmap"
	"stream-ranker/internal/ocr"
	"stream-ranker/internal/platform/metrics"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPollInterval is the time between cycle starts.
	DefaultPollInterval = 30 * time.Second

	// DefaultMaxInFlightCycles bounds overlapping cycles.
	DefaultMaxInFlightCycles = 2

	// DefaultMaxConcurrentStreams bounds per-stream pipelines running at once within a cycle.
	DefaultMaxConcurrentStreams = 16

	// DefaultCollectTimeout is used when PollerConfig.CollectTimeout is zero.
	DefaultCollectTimeout = 90 * time.Second
)

var (
	// ErrDiscovery is returned by RunCycle when stream discovery failed.
	ErrDiscovery = errors.New("stream discovery failed")

	// ErrNoCandidates is returned by RunCycle when no live stream was found.
	ErrNoCandidates = errors.New("no live streams")
)

// Discoverer lists the identifiers of live streams to consider.
type Discoverer interface {
	Discover(ctx context.Context) ([]string, error)
}

// Sampler records a short clip of a stream.
type Sampler interface {
	Sample(ctx context.Context, streamID string) (clipPath string, err error)
}

// FrameExtractor writes one still of a clip.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, clipPath string) (thumbnailPath string, err error)
}

// RegionCropper cuts the counter region out of a still.
type RegionCropper interface {
	CropRegion(ctx context.Context, thumbnailPath string, rect image.Rectangle) (cropPath string, err error)
}

// CycleState is the phase a poll cycle is in.
type CycleState string

const (
	CycleIdle        CycleState = "idle"
	CycleDiscovering CycleState = "discovering"
	CycleFanningOut  CycleState = "fanning_out"
	CycleCollecting  CycleState = "collecting"
	CycleRanking     CycleState = "ranking"
	CyclePublished   CycleState = "published"
)

// Stages are the collaborators of the per-stream pipeline.
type Stages struct {
	Discoverer Discoverer
	Sampler    Sampler
	Extractor  FrameExtractor
	Cropper    RegionCropper
	Reader     ocr.Reader
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	Interval             time.Duration
	CollectTimeout       time.Duration
	MaxConcurrentStreams int
	MaxInFlightCycles    int
	// Region is the counter rectangle in the extracted still.
	Region image.Rectangle
}

// Poller runs poll cycles on a fixed interval. Each cycle discovers live
// streams, runs the per-stream pipeline for all of them concurrently, and
// publishes the ranking through the Service.
type Poller struct {
	cfg     PollerConfig
	stages  Stages
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics

	seq      atomic.Uint64
	inflight chan struct{}
	// streams serializes pipelines of the same stream across overlapping
	// cycles; the stages name their scratch files after the stream.
	streams *lockmap.LockMap
}

// NewPoller returns a Poller. Metrics may be nil. Cycle numbers continue
// after the sequence already published by svc, so a restored snapshot is
// replaced by the first new cycle.
func NewPoller(cfg PollerConfig, stages Stages, svc *Service, log *slog.Logger, m *metrics.Metrics) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.CollectTimeout <= 0 {
		cfg.CollectTimeout = DefaultCollectTimeout
	}
	if cfg.MaxConcurrentStreams <= 0 {
		cfg.MaxConcurrentStreams = DefaultMaxConcurrentStreams
	}
	if cfg.MaxInFlightCycles <= 0 {
		cfg.MaxInFlightCycles = DefaultMaxInFlightCycles
	}
	p := &Poller{
		cfg:      cfg,
		stages:   stages,
		svc:      svc,
		log:      log,
		metrics:  m,
		inflight: make(chan struct{}, cfg.MaxInFlightCycles),
		streams:  lockmap.New(),
	}
	p.seq.Store(svc.Seq())
	return p
}

// Run starts a cycle immediately and then on every tick until ctx is done.
// It returns after all running cycles have finished.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	p.launch(ctx, &wg)
	for {
		select {
		case <-ctx.Done():
			p.log.Info("poller stopping")
			return
		case <-ticker.C:
			p.launch(ctx, &wg)
		}
	}
}

// launch starts a cycle unless MaxInFlightCycles are already running.
func (p *Poller) launch(ctx context.Context, wg *sync.WaitGroup) {
	select {
	case p.inflight <- struct{}{}:
	default:
		p.log.Warn("cycle skipped: previous cycles still running",
			slog.Int("in_flight", len(p.inflight)))
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() { <-p.inflight }()
		p.RunCycle(ctx)
	}()
}

// InFlight returns the number of cycles currently running.
func (p *Poller) InFlight() int {
	return len(p.inflight)
}

// cycle tracks one poll cycle for logging.
type cycle struct {
	seq   uint64
	state CycleState
	log   *slog.Logger
}

func (c *cycle) enter(state CycleState) {
	c.log.Debug("cycle state", slog.String("from", string(c.state)), slog.String("to", string(state)))
	c.state = state
}

// RunCycle runs one complete cycle and returns the snapshot it published.
// A cycle that publishes nothing leaves the current ranking in place and
// returns ErrDiscovery, ErrNoCandidates, ErrNoResults or ErrStaleCycle.
func (p *Poller) RunCycle(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	c := &cycle{seq: p.seq.Add(1), state: CycleIdle}
	c.log = p.log.With(slog.Uint64("cycle", c.seq))

	c.enter(CycleDiscovering)
	names, err := p.stages.Discoverer.Discover(ctx)
	if err != nil {
		c.log.Warn("discovery failed", slog.String("error", err.Error()))
		p.stageFailed(StageDiscovery)
		p.observe(metrics.OutcomeNoStreams, start)
		c.enter(CycleIdle)
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	if len(names) == 0 {
		c.log.Info("no live streams found")
		p.observe(metrics.OutcomeNoStreams, start)
		c.enter(CycleIdle)
		return nil, ErrNoCandidates
	}

	candidates := make([]StreamCandidate, len(names))
	for i, name := range names {
		candidates[i] = StreamCandidate{Name: name, Position: i}
	}
	c.log.Info("cycle started", slog.Int("streams", len(candidates)))

	results := p.fanOut(ctx, c, candidates)

	c.enter(CycleRanking)
	snap, err := p.svc.Publish(ctx, c.seq, results)
	switch {
	case errors.Is(err, ErrNoResults):
		c.log.Info("publish skipped: no stream produced a count",
			slog.Int("results", len(results)))
		p.observe(metrics.OutcomeSkipped, start)
		c.enter(CycleIdle)
		return nil, err
	case errors.Is(err, ErrStaleCycle):
		c.log.Info("publish rejected: a newer cycle already published")
		p.observe(metrics.OutcomeStale, start)
		c.enter(CycleIdle)
		return nil, err
	case err != nil:
		c.log.Error("publish failed", slog.String("error", err.Error()))
		p.observe(metrics.OutcomeSkipped, start)
		c.enter(CycleIdle)
		return nil, err
	}

	c.enter(CyclePublished)
	c.log.Info("ranking published",
		slog.Int("entries", len(snap.Entries)),
		slog.String("current", snap.Current().StreamName),
		slog.Int("alive", snap.Current().Alive),
		slog.Duration("took", time.Since(start)))
	p.observe(metrics.OutcomePublished, start)
	if p.metrics != nil {
		p.metrics.SetPublished(len(snap.Entries), snap.Seq)
	}
	c.enter(CycleIdle)
	return snap, nil
}

// fanOut runs the pipeline for every candidate and returns the results that
// arrived before the collect deadline. Later results are dropped, and
// candidates not yet started at the deadline are never started.
func (p *Poller) fanOut(ctx context.Context, c *cycle, candidates []StreamCandidate) []PipelineResult {
	collectCtx, cancel := context.WithTimeout(ctx, p.cfg.CollectTimeout)
	defer cancel()

	col := &collector{}
	done := make(chan struct{})

	c.enter(CycleFanningOut)
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(p.cfg.MaxConcurrentStreams)
		for _, cand := range candidates {
			if collectCtx.Err() != nil {
				p.excluded(metrics.ReasonDeadline)
				continue
			}
			g.Go(func() error {
				// The slot may have opened only because the deadline cancelled a running pipeline.
				if collectCtx.Err() != nil {
					p.excluded(metrics.ReasonDeadline)
					return nil
				}
				col.add(p.process(collectCtx, c.log, cand))
				return nil
			})
		}
		g.Wait()
	}()

	c.enter(CycleCollecting)
	select {
	case <-done:
	case <-collectCtx.Done():
		c.log.Warn("collect deadline reached, discarding late results",
			slog.Int("collected", col.len()),
			slog.Int("streams", len(candidates)))
	}
	return col.close()
}

// process runs the stages for one stream, strictly in order. It holds the
// stream's lock throughout, so a pipeline for the same stream from an
// overlapping cycle waits instead of sharing its scratch files.
func (p *Poller) process(ctx context.Context, log *slog.Logger, cand StreamCandidate) PipelineResult {
	log = log.With(slog.String("stream", cand.Name))
	res := PipelineResult{Stream: cand}

	fail := func(stage Stage, err error) PipelineResult {
		res.Err = err
		res.FailedAt = stage
		if ctx.Err() != nil {
			// Cut off by the collect deadline or shutdown: not the stage's fault.
			log.Debug("pipeline stopped at deadline", slog.String("stage", string(stage)))
			p.excluded(metrics.ReasonDeadline)
			return res
		}
		log.Debug("pipeline stage failed",
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()))
		p.stageFailed(stage)
		return res
	}

	unlock, err := p.streams.Lock(ctx, cand.Name)
	if err != nil {
		return fail(StageCapture, err)
	}
	defer unlock()

	clip, err := p.stages.Sampler.Sample(ctx, cand.Name)
	if err != nil {
		return fail(StageCapture, err)
	}
	thumb, err := p.stages.Extractor.ExtractFrame(ctx, clip)
	if err != nil {
		return fail(StageExtract, err)
	}
	crop, err := p.stages.Cropper.CropRegion(ctx, thumb, p.cfg.Region)
	if err != nil {
		return fail(StageCrop, err)
	}

	reading, err := p.stages.Reader.ReadCounter(ctx, crop)
	if err != nil {
		if ctx.Err() != nil {
			return fail(StageRecognize, ctx.Err())
		}
		// A broken OCR backend costs this stream its count, nothing more.
		log.Warn("counter recognition failed", slog.String("error", err.Error()))
		p.stageFailed(StageRecognize)
		reading = ocr.Unreadable("")
	} else if !reading.Readable {
		log.Debug("counter unreadable", slog.String("text", reading.Text))
		p.excluded(metrics.ReasonUnreadable)
	}

	res.Alive = reading.Alive
	res.Readable = reading.Readable
	log.Debug("pipeline finished", slog.Int("alive", res.Alive), slog.Bool("readable", res.Readable))
	return res
}

func (p *Poller) stageFailed(stage Stage) {
	if p.metrics != nil {
		p.metrics.IncStageFailure(string(stage))
	}
}

func (p *Poller) excluded(reason string) {
	if p.metrics != nil {
		p.metrics.IncExcluded(reason)
	}
}

func (p *Poller) observe(outcome string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveCycle(outcome, time.Since(start))
	}
}

// collector gathers results for one cycle. Once closed it drops anything
// added later.
type collector struct {
	mu      sync.Mutex
	closed  bool
	results []PipelineResult
}

func (c *collector) add(r PipelineResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.results = append(c.results, r)
	return true
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func (c *collector) close() []PipelineResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	out := c.results
	c.results = nil
	return out
}
