// Package main is the entry point for the MEV bundler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fd1az/mev-bundler/business/attribution"
	"github.com/fd1az/mev-bundler/business/bundle"
	"github.com/fd1az/mev-bundler/business/market"
	"github.com/fd1az/mev-bundler/business/network"
	"github.com/fd1az/mev-bundler/business/opportunity"
	"github.com/fd1az/mev-bundler/business/ordering"
	"github.com/fd1az/mev-bundler/business/pipeline"
	pipelineDI "github.com/fd1az/mev-bundler/business/pipeline/di"
	"github.com/fd1az/mev-bundler/internal/apm"
	"github.com/fd1az/mev-bundler/internal/config"
	"github.com/fd1az/mev-bundler/internal/health"
	"github.com/fd1az/mev-bundler/internal/logger"
	"github.com/fd1az/mev-bundler/internal/metrics"
	"github.com/fd1az/mev-bundler/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	replayFile := flag.String("replay", "", "Replay snapshots from an NDJSON file instead of the live feed")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mev-bundler %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	if *replayFile != "" {
		os.Setenv("MEV_REPLAY_FILE", *replayFile)
		os.Setenv("MEV_EVENT_TIME", "true")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out, closer, err := logger.Output(logger.FileConfig{
		Path:       cfg.App.LogFile,
		MaxSizeMB:  cfg.App.LogMaxSize,
		MaxBackups: cfg.App.LogBackups,
		MaxAgeDays: cfg.App.LogMaxAge,
		Compress:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer closer.Close()

	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting MEV bundler",
		"version", version,
		"environment", cfg.App.Environment,
		"strategy", cfg.Bundle.Strategy,
	)

	if cfg.Telemetry.Enabled {
		tp, err := apm.NewTraceProvider(ctx, apm.Config{
			Provider:    apm.Provider(cfg.Telemetry.TraceProvider),
			Endpoint:    cfg.Telemetry.OTLPEndpoint,
			Headers:     cfg.Telemetry.OTLPHeaders,
			ServiceName: cfg.Telemetry.ServiceName,
			SampleRatio: cfg.Telemetry.SampleRatio,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to start tracing: %w", err)
		}
		defer tp.Stop()

		mp, err := metrics.NewMetricProvider(ctx,
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to start metrics: %w", err)
		}
		defer mp.Shutdown(context.Background())

		prom := metrics.NewPrometheusServer(cfg.Telemetry.PrometheusPort, log)
		prom.Start(ctx)
		defer stop(prom.Stop)
	}

	healthServer := health.NewServer(cfg.Health.Port, version, log)
	healthServer.Start(ctx)
	defer stop(healthServer.Stop)

	mono := monolith.New(cfg, log, healthServer)
	defer func() {
		if err := mono.Close(); err != nil {
			log.Error(ctx, "failed to release resources", "error", err)
		}
	}()

	// Dependency order: each module only resolves services registered before it.
	modules := []monolith.Module{
		&market.Module{},
		&network.Module{},
		&attribution.Module{},
		&opportunity.Module{},
		&bundle.Module{},
		&ordering.Module{},
		&pipeline.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	log.Info(ctx, "all modules started, beginning detection")
	return pipelineDI.GetEngine(mono.Services()).Run(ctx)
}

func stop(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = fn(ctx)
}
