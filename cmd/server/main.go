package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/api"
	"github.com/kjannette/portfolio-analytics/internal/app"
	"github.com/kjannette/portfolio-analytics/internal/config"
	"github.com/kjannette/portfolio-analytics/internal/db"
	"github.com/kjannette/portfolio-analytics/internal/logging"
	"github.com/kjannette/portfolio-analytics/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
)

const banner = `
╔══════════════════════════════════════╗
║     Portfolio Analytics v0.3         ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	logger := logging.For("main")

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reg prometheus.Registerer
	if cfg.MetricsEnabled {
		reg = prometheus.DefaultRegisterer
	}

	a, err := app.Build(ctx, cfg, app.Options{RequireDB: true, Registerer: reg})
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	if err := db.TestConnection(ctx, a.Pool); err != nil {
		logger.Fatal().Err(err).Msg("database test query failed")
	}

	// 1. API server
	apiOpts := api.Options{
		Port:       cfg.APIPort,
		APIKey:     cfg.APIKey,
		CORSOrigin: cfg.CORSAllowOrigin,
		Reports:    a.Store,
		DB:         a.Pool,
		Metrics:    a.MetricsHTTP,
	}
	if a.RedisCache != nil {
		apiOpts.Cache = a.RedisCache
	}
	srv := api.NewServer(a.Service, apiOpts)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("API server error")
		}
	}()

	// 2. Scheduled re-analysis
	var sched *scheduler.AnalysisScheduler
	if len(cfg.ScheduledPortfolios) > 0 {
		sched = scheduler.NewAnalysisScheduler(a.Service, scheduler.AnalysisSchedulerConfig{
			Schedule:   cfg.Schedule,
			Portfolios: cfg.ScheduledPortfolios,
			Timeframe:  cfg.ScheduledTimeframe,
			RunOnStart: true,
		})
		if err := sched.Start(); err != nil {
			logger.Fatal().Err(err).Msg("scheduler start failed")
		}
	} else {
		logger.Info().Msg("scheduler skipped, no SCHEDULED_PORTFOLIOS configured")
	}

	logger.Info().Msg("all services started")

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info().Msg("shutting down gracefully")

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API shutdown error")
	}
	logger.Info().Msg("shutdown complete")
}
