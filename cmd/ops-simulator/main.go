package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isectech/ops-simulator/config"
	"github.com/isectech/ops-simulator/metrics"
	"github.com/isectech/ops-simulator/usecase"
)

// Version information (set by build)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	mode := flag.String("mode", usecase.ModeDev, "run mode: dev (reduced volume) or full (target scale)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting ops simulator",
		zap.String("service", cfg.Service.Name),
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
		zap.String("mode", *mode),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := usecase.NewSimulator(cfg, logger)
	summary, err := sim.Run(ctx, *mode)
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}

	if cfg.Metrics.Enabled && cfg.Metrics.PushGateway != "" {
		if err := metrics.Push(cfg.Metrics.PushGateway, cfg.Metrics.JobName); err != nil {
			// Metrics delivery is best-effort; the dataset is already complete.
			logger.Warn("metrics push failed", zap.Error(err))
		}
	}

	logger.Info("done",
		zap.String("run_id", summary.RunID),
		zap.Int("case_rows", summary.Generated.CaseRows),
		zap.Int("event_rows", summary.Generated.EventRows),
		zap.Float64("missing_event_ts_pct", summary.DataQuality.MissingEventTSPct),
		zap.Float64("duplicate_pct", summary.DataQuality.DuplicatePct),
	)
}

// buildLogger constructs the zap logger from logging configuration.
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
