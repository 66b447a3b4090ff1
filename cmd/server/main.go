package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"stream-ranker/internal/capture"
	"stream-ranker/internal/games"
	"stream-ranker/internal/ocr"
	"stream-ranker/internal/orchestrator"
	"stream-ranker/internal/platform/config"
	"stream-ranker/internal/platform/logger"
	"stream-ranker/internal/platform/metrics"
	"stream-ranker/internal/twitch"
	"stream-ranker/internal/vision"

	"github.com/go-chi/chi/v5"
)

const (
	shutdownTimeout = 10 * time.Second
	restoreTimeout  = 5 * time.Second
	// collectMargin is added on top of the stage timeouts for the default collect deadline.
	collectMargin = 10 * time.Second
)

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	clientID, err := config.RequireEnv("TWITCH_CLIENT_ID")
	if err != nil {
		fatal(log, "invalid configuration", err)
	}
	token, err := config.RequireEnv("TWITCH_TOKEN")
	if err != nil {
		fatal(log, "invalid configuration", err)
	}

	catalog := games.Defaults()
	if path := config.GetEnv("GAMES_FILE", ""); path != "" {
		if catalog, err = games.Load(path); err != nil {
			fatal(log, "load games file", err)
		}
	}
	game, err := catalog.Get(config.GetEnv("GAME", games.DefaultKey))
	if err != nil {
		fatal(log, "select game", err, slog.Any("available", catalog.Keys()))
	}

	scratch := config.GetEnv("SCRATCH_DIR", filepath.Join(os.TempDir(), "stream-ranker"))
	window := config.GetEnvDuration("SAMPLE_WINDOW", capture.DefaultSampleWindow)
	grace := config.GetEnvDuration("CAPTURE_GRACE", capture.DefaultGrace)
	ffmpegTimeout := config.GetEnvDuration("FFMPEG_TIMEOUT", capture.DefaultFFmpegTimeout)
	ocrTimeout := config.GetEnvDuration("OCR_TIMEOUT", ocr.DefaultTimeout)

	sampler, err := capture.NewSampler(capture.SamplerConfig{
		Bin:       config.GetEnv("STREAMLINK_PATH", "streamlink"),
		Dir:       filepath.Join(scratch, "clips"),
		Window:    window,
		Grace:     grace,
		Qualities: game.Qualities,
		UserToken: config.GetEnv("TWITCH_USER_TOKEN", ""),
	})
	if err != nil {
		fatal(log, "create sampler", err)
	}
	extractor, err := capture.NewExtractor(capture.ExtractorConfig{
		Bin:     config.GetEnv("FFMPEG_PATH", "ffmpeg"),
		Dir:     filepath.Join(scratch, "thumbnails"),
		Offset:  config.GetEnvDuration("FRAME_OFFSET", capture.DefaultFrameOffset),
		Timeout: ffmpegTimeout,
	})
	if err != nil {
		fatal(log, "create extractor", err)
	}
	cropper, err := vision.NewCropper(filepath.Join(scratch, "crops"))
	if err != nil {
		fatal(log, "create cropper", err)
	}
	reader, err := ocr.NewReader(ocr.Options{
		Backend:       config.GetEnv("OCR_BACKEND", ocr.BackendTesseract),
		TesseractPath: config.GetEnv("TESSERACT_PATH", "tesseract"),
		ServiceURL:    config.GetEnv("OCR_URL", ""),
		Timeout:       ocrTimeout,
		DetectPreGame: game.DetectPreGame,
	})
	if err != nil {
		fatal(log, "create ocr reader", err)
	}
	if c, ok := reader.(io.Closer); ok {
		defer c.Close()
	}

	client := twitch.NewClient(clientID, token)
	discoverer := twitch.NewDiscoverer(client, game.GameID, game.Language,
		twitch.NewFilter(config.GetEnvList("STREAM_ALLOWLIST"), config.GetEnvList("STREAM_DENYLIST")),
		config.GetEnvInt("TWITCH_MAX_PAGES", twitch.DefaultMaxPages),
		log)

	urlTemplate := config.GetEnv("VIEWER_URL_TEMPLATE", orchestrator.DefaultViewerURLTemplate)
	placeholder := config.GetEnv("PLACEHOLDER_STREAM", "pubg")

	var store orchestrator.Store
	if addr := config.GetEnv("REDIS_ADDR", ""); addr != "" {
		rs, err := orchestrator.NewRedisStore(orchestrator.RedisConfig{
			Address:  addr,
			Password: config.GetEnv("REDIS_PASSWORD", ""),
			DB:       config.GetEnvInt("REDIS_DB", 0),
			Key:      config.GetEnv("REDIS_KEY", orchestrator.DefaultRedisKey),
		})
		if err != nil {
			fatal(log, "connect redis", err)
		}
		defer rs.Close()
		store = rs
	}

	state := orchestrator.NewPublishedState(orchestrator.Placeholder(placeholder, urlTemplate, time.Now().UTC()))
	svc := orchestrator.NewService(state, store, orchestrator.RankOptions{
		IncludeUnreadable: config.GetEnvBool("INCLUDE_UNREADABLE", false),
		URLTemplate:       urlTemplate,
	}, log)

	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), restoreTimeout)
	if ok, err := svc.Restore(restoreCtx); err != nil {
		log.Warn("restore snapshot failed, starting from placeholder", "error", err)
	} else if ok {
		log.Info("snapshot restored", "seq", svc.Seq(), "current", svc.Current().StreamName)
	}
	cancelRestore()

	met := metrics.New()
	pollInterval := config.GetEnvDuration("POLL_INTERVAL", orchestrator.DefaultPollInterval)
	collectTimeout := config.GetEnvDuration("COLLECT_TIMEOUT", window+grace+ffmpegTimeout+ocrTimeout+collectMargin)
	poller := orchestrator.NewPoller(orchestrator.PollerConfig{
		Interval:             pollInterval,
		CollectTimeout:       collectTimeout,
		MaxConcurrentStreams: config.GetEnvInt("MAX_CONCURRENT_STREAMS", orchestrator.DefaultMaxConcurrentStreams),
		MaxInFlightCycles:    config.GetEnvInt("MAX_INFLIGHT_CYCLES", orchestrator.DefaultMaxInFlightCycles),
		Region:               game.Counter.Rect(),
	}, orchestrator.Stages{
		Discoverer: discoverer,
		Sampler:    sampler,
		Extractor:  extractor,
		Cropper:    cropper,
		Reader:     reader,
	}, svc, log, met)

	h := orchestrator.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get(metrics.ScrapePath, met.Handler(h.UpdateGauges).ServeHTTP)
	r.Get("/healthz", h.Health)
	r.Get("/current", h.Current)
	r.Get("/all", h.All)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	pollCtx, stopPolling := context.WithCancel(context.Background())
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		poller.Run(pollCtx)
	}()

	log.Info("server starting",
		"port", port,
		"game", game.Key,
		"game_id", game.GameID,
		"poll_interval", pollInterval.String(),
		"collect_timeout", collectTimeout.String(),
		"redis", store != nil,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping poller and draining connections")
	stopPolling()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}

	select {
	case <-pollDone:
	case <-ctx.Done():
		log.Warn("poller did not stop before the shutdown timeout")
	}

	log.Info("server stopped")
}

func fatal(log *slog.Logger, msg string, err error, attrs ...any) {
	log.Error(msg, append([]any{"error", err}, attrs...)...)
	os.Exit(1)
}
