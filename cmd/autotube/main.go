package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/numbleroot/autotube/internal/config"
	"github.com/numbleroot/autotube/internal/feed"
	"github.com/numbleroot/autotube/internal/fetchtool"
	"github.com/numbleroot/autotube/internal/handler"
	"github.com/numbleroot/autotube/internal/metrics"
	"github.com/numbleroot/autotube/internal/publisher"
	"github.com/numbleroot/autotube/internal/queue"
	"github.com/numbleroot/autotube/internal/storage/postgres"
	"github.com/numbleroot/autotube/internal/trigger"
	"github.com/numbleroot/autotube/internal/worker"
	"github.com/numbleroot/autotube/internal/youtube"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Refuse to start without a working download tool on PATH.
	tool := fetchtool.NewRunner(cfg.Jobs.ToolBinary, logger)
	if err := tool.Check(ctx); err != nil {
		logger.Error("download tool unavailable", "binary", cfg.Jobs.ToolBinary, "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Storage.VideoDir, 0o755); err != nil {
		logger.Error("failed to create video directory", "path", cfg.Storage.VideoDir, "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Storage.TmpDir, 0o755); err != nil {
		logger.Error("failed to create tmp directory", "path", cfg.Storage.TmpDir, "error", err)
		os.Exit(1)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	// Publishing archived-video events is optional.
	var events worker.EventPublisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		events = rabbitMQ
	}

	channels := postgres.NewChannelStore(db)
	feeds := feed.NewClient(feed.Config{
		Timeout:        cfg.Feed.Timeout,
		InitialBackoff: cfg.Feed.Retry.InitialBackoff,
		MaxBackoff:     cfg.Feed.Retry.MaxBackoff,
		MaxElapsed:     cfg.Feed.Retry.MaxElapsed,
	}, logger)
	collector := metrics.NewCollector()
	jobs := queue.New(cfg.Jobs.QueueSize)

	wrk := worker.New(
		worker.Config{
			VideoDir:    cfg.Storage.VideoDir,
			TmpDir:      cfg.Storage.TmpDir,
			MaxAttempts: cfg.Jobs.MaxAttempts,
		},
		jobs.Jobs(),
		jobs,
		channels,
		feeds,
		tool,
		events,
		collector,
		logger,
	)

	trig := trigger.New(
		trigger.Config{
			Often:     cfg.Trigger.Often,
			Sometimes: cfg.Trigger.Sometimes,
			Rarely:    cfg.Trigger.Rarely,
		},
		channels,
		jobs,
		collector,
		logger,
	)

	api := handler.New(jobs, channels, youtube.NewChannelResolver(cfg.Feed.Timeout), collector, logger)
	srv := &http.Server{
		Addr:    cfg.Listen.Addr(),
		Handler: api.Router(),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		wrk.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		trig.Run(ctx)
	}()

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	logger.Info("started autotube",
		"queue_size", cfg.Jobs.QueueSize,
		"max_attempts", cfg.Jobs.MaxAttempts,
		"video_dir", cfg.Storage.VideoDir,
	)

	<-ctx.Done()
	logger.Info("received shutdown signal")

	// Stop taking requests first, then wait for the trigger loops and the
	// worker's in-flight jobs before tearing down the queue.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", "error", err)
	}

	wg.Wait()
	jobs.Close()

	logger.Info("shut down cleanly")
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
