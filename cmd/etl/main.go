package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/gridsource"
	httpadapter "github.com/couchcryptid/climate-anomaly-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/climate-anomaly-etl/internal/adapter/kafka"
	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/report"
	"github.com/couchcryptid/climate-anomaly-etl/internal/config"
	"github.com/couchcryptid/climate-anomaly-etl/internal/observability"
	"github.com/couchcryptid/climate-anomaly-etl/internal/pipeline"
)

func main() {
	once := flag.Bool("once", false, "run a single pipeline cycle and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	var source pipeline.GridSource = gridsource.NewClient(cfg.GridBaseURL, cfg.FetchTimeout, logger)
	if cfg.CacheDir != "" {
		source = gridsource.NewCachedSource(source, cfg.CacheDir, cfg.CacheTTL, cfg.SnapshotCodec, logger, metrics)
		logger.Info("snapshot cache enabled", "dir", cfg.CacheDir, "ttl", cfg.CacheTTL)
	}

	// Kafka sink is feature-flagged via KAFKA_ENABLED.
	var writer pipeline.RecordWriter
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		writer = kafkaWriter
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka sink disabled")
	}

	var renderer pipeline.ReportRenderer
	if cfg.ReportDir != "" {
		renderer = report.NewRenderer(cfg.ReportDir, logger)
		logger.Info("report rendering enabled", "dir", cfg.ReportDir)
	} else {
		logger.Info("report rendering disabled")
	}

	runner := pipeline.New(source, writer, renderer, cfg, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		err := runner.RunOnce(ctx)
		if kafkaWriter != nil {
			if cerr := kafkaWriter.Close(); cerr != nil {
				logger.Error("kafka writer close error", "error", cerr)
			}
		}
		if err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, runner, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start pipeline loop.
	go func() {
		if err := runner.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
