package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scribe/internal/config"
	"scribe/internal/coordinator"
	"scribe/internal/logging"
	"scribe/internal/media/audio"
	"scribe/internal/notifications"
	"scribe/internal/pipeline"
	"scribe/internal/preflight"
	"scribe/internal/retrieval"
	"scribe/internal/services/actionpoints"
	"scribe/internal/services/whisper"
	"scribe/internal/taskstore"
	"scribe/internal/worker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, path, exists, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !exists {
		log.Printf("no config file found, using defaults (looked at %s)", path)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := taskstore.Open(ctx, cfg)
	if err != nil {
		logger.Error("open task store", logging.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	if failures := preflight.Run(ctx, cfg, store); len(failures) > 0 {
		for _, failure := range failures {
			logger.Error("preflight check failed",
				logging.String("check", failure.Name),
				logging.String("detail", failure.Detail))
		}
		os.Exit(1)
	}

	w, err := buildWorker(cfg, store, logger)
	if err != nil {
		logger.Error("assemble worker", logging.Error(err))
		os.Exit(1)
	}

	logger.Info("scribed starting",
		logging.String("store", cfg.Store.Backend),
		logging.String("queue", cfg.Queue.Name))

	if err := w.Run(ctx); err != nil {
		logger.Error("worker stopped", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("scribed stopped")
}

func buildWorker(cfg *config.Config, store taskstore.Store, logger *slog.Logger) (*worker.Worker, error) {
	httpClient := &http.Client{
		Timeout: time.Duration(cfg.Download.SocketTimeoutSeconds*4) * time.Second,
	}
	direct := retrieval.NewDirectStrategy(httpClient, cfg.Download.UserAgent)

	strategies := []retrieval.Strategy{
		retrieval.NewYtdlpStrategy(cfg.YtdlpBinary(), cfg.Download),
	}
	if cfg.Browser.Enabled {
		strategies = append(strategies, retrieval.NewBrowserStrategy(cfg.Browser, direct))
	}
	strategies = append(strategies, direct)

	objectStore, err := retrieval.NewObjectStoreFetcher(cfg.ObjectStore)
	if err != nil {
		return nil, err
	}

	chain := retrieval.NewChain(
		cfg.Download,
		strategies,
		objectStore,
		retrieval.NewValidator(cfg.FFprobeBinary()),
		logger,
	)

	processor := pipeline.New(
		cfg.Paths.ScratchDir,
		chain,
		audio.NewExtractor(cfg.FFmpegBinary()),
		whisper.NewService(cfg.Whisper),
		actionpoints.NewClient(cfg.LLM.APIKey,
			actionpoints.WithBaseURL(cfg.LLM.BaseURL),
			actionpoints.WithModel(cfg.LLM.Model),
			actionpoints.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
			}),
		),
		logger,
	)

	return worker.New(
		cfg,
		coordinator.New(store, logger),
		processor,
		notifications.NewService(cfg.Webhook, logger),
		logger,
	), nil
}
