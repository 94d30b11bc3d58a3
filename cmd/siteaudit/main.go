// Package main wires together the siteaudit analysis service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/visibleai/siteaudit/internal/aiengine"
	"github.com/visibleai/siteaudit/internal/analysis"
	"github.com/visibleai/siteaudit/internal/api"
	"github.com/visibleai/siteaudit/internal/checks"
	"github.com/visibleai/siteaudit/internal/clock/system"
	"github.com/visibleai/siteaudit/internal/config"
	"github.com/visibleai/siteaudit/internal/dispatcher"
	collyfetcher "github.com/visibleai/siteaudit/internal/fetcher/colly"
	"github.com/visibleai/siteaudit/internal/id/uuid"
	"github.com/visibleai/siteaudit/internal/logging"
	"github.com/visibleai/siteaudit/internal/pipeline"
	"github.com/visibleai/siteaudit/internal/progress"
	"github.com/visibleai/siteaudit/internal/progress/sinks"
	queueMemory "github.com/visibleai/siteaudit/internal/queue/memory"
	memoryStorage "github.com/visibleai/siteaudit/internal/storage/memory"
	postgresStorage "github.com/visibleai/siteaudit/internal/storage/postgres"
	"github.com/visibleai/siteaudit/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store analysis.RunStore
	switch cfg.Storage.Provider {
	case "postgres":
		pgStore, closePool, err := postgresStorage.New(ctx, cfg.Storage.DSN)
		if err != nil {
			logger.Fatal("postgres store init failed", zap.Error(err))
		}
		defer closePool()
		store = pgStore
	default:
		store = memoryStorage.NewRunStore()
	}

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("prometheus sink init failed", zap.Error(err))
	}
	publisher := progress.NewPublisher(
		logger.Named("progress"),
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)

	queue := queueMemory.NewQueue(cfg.Pipeline.QueueDepth)
	clock := system.New()
	idGen := uuid.New()
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})

	var scorer aiengine.Scorer
	switch cfg.AIEngine.Provider {
	case "openai":
		scorer = aiengine.NewOpenAIScorer(cfg.AIEngine.APIKey, cfg.AIEngine.Model)
	default:
		scorer = aiengine.NewStaticScorer()
	}

	orchestrator := pipeline.New(
		store,
		fetcher,
		publisher,
		clock,
		checks.Stages(scorer),
		cfg.Pipeline.CheckConcurrency,
		logger.Named("pipeline"),
	)
	retry := analysis.NewRetryPolicy(cfg.Pipeline.MaxAttempts, 500*time.Millisecond, 10*time.Second)
	workerCfg := worker.Config{AttemptBudget: cfg.AttemptBudget()}

	var workers []*worker.Worker
	for i := 0; i < cfg.Pipeline.Workers; i++ {
		workers = append(workers, worker.New(
			queue,
			store,
			orchestrator,
			publisher,
			retry,
			clock,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	apiServer := api.NewServer(store, dispatch, publisher, idGen, clock, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", cfg.Pipeline.Workers))
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	if err := publisher.Close(shutdownCtx); err != nil {
		logger.Error("publisher close error", zap.Error(err))
	}
}
