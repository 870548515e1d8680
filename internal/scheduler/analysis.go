package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/logging"
	"github.com/kjannette/portfolio-analytics/internal/models"
	"github.com/robfig/cron/v3"
)

type PortfolioAnalyzer interface {
	AnalyzePortfolio(ctx context.Context, portfolioID, timeframe string) (*models.PortfolioReport, error)
}

type AnalysisSchedulerConfig struct {
	Schedule   string   // standard cron or descriptor, e.g. "@every 1h"
	Portfolios []string // portfolio ids analyzed on every run
	Timeframe  string
	RunTimeout time.Duration
	RunOnStart bool
	OnReport   func(report *models.PortfolioReport)
}

// AnalysisScheduler re-runs portfolio analysis on a cron schedule so stored
// reports stay fresh. Runs never overlap; a tick that arrives while the
// previous run is still going is skipped.
type AnalysisScheduler struct {
	analyzer PortfolioAnalyzer
	cfg      AnalysisSchedulerConfig

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc

	runMu sync.Mutex
}

func NewAnalysisScheduler(analyzer PortfolioAnalyzer, cfg AnalysisSchedulerConfig) *AnalysisScheduler {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1h"
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "30d"
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	return &AnalysisScheduler{analyzer: analyzer, cfg: cfg}
}

func (s *AnalysisScheduler) Start() error {
	logger := logging.For("scheduler")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		logger.Warn().Msg("already running")
		return nil
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.cfg.Schedule, s.tick); err != nil {
		return fmt.Errorf("schedule %q: %w", s.cfg.Schedule, err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = c
	s.running = true
	c.Start()

	if s.cfg.RunOnStart {
		go s.tick()
	}

	logger.Info().
		Str("schedule", s.cfg.Schedule).
		Strs("portfolios", s.cfg.Portfolios).
		Str("timeframe", s.cfg.Timeframe).
		Msg("started")
	return nil
}

// Stop cancels any in-flight run and waits for it to return.
func (s *AnalysisScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	done := s.cron.Stop()
	s.mu.Unlock()

	<-done.Done()
	s.runMu.Lock()
	s.runMu.Unlock()
	logging.For("scheduler").Info().Msg("stopped")
}

func (s *AnalysisScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow analyzes every configured portfolio outside the normal schedule,
// waiting for an in-flight scheduled run to finish first. Per-portfolio
// failures are joined into the returned error.
func (s *AnalysisScheduler) RunNow(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	logging.For("scheduler").Info().Msg("manual run triggered")
	return s.run(ctx)
}

func (s *AnalysisScheduler) tick() {
	if !s.runMu.TryLock() {
		logging.For("scheduler").Warn().Msg("previous run still in progress, skipping tick")
		return
	}
	defer s.runMu.Unlock()

	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()
	if parent == nil || parent.Err() != nil {
		return
	}

	if err := s.run(parent); err != nil {
		logging.For("scheduler").Error().Err(err).Msg("scheduled run finished with errors")
	}
}

func (s *AnalysisScheduler) run(parent context.Context) error {
	logger := logging.For("scheduler")
	if len(s.cfg.Portfolios) == 0 {
		logger.Debug().Msg("no portfolios configured")
		return nil
	}

	ctx, cancel := context.WithTimeout(parent, s.cfg.RunTimeout)
	defer cancel()

	var errs []error
	for _, id := range s.cfg.Portfolios {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("portfolio %s: %w", id, ctx.Err()))
			continue
		}
		report, err := s.analyzer.AnalyzePortfolio(ctx, id, s.cfg.Timeframe)
		if err != nil {
			logger.Error().Err(err).Str("portfolio", id).Msg("analysis failed")
			errs = append(errs, fmt.Errorf("portfolio %s: %w", id, err))
			continue
		}
		logger.Info().
			Str("portfolio", id).
			Float64("totalValue", report.TotalValue).
			Bool("rebalanceNeeded", report.RebalanceNeeded).
			Int("failedAssets", len(report.FailedAssets)).
			Msg("analysis stored")
		if s.cfg.OnReport != nil {
			s.cfg.OnReport(report)
		}
	}
	return errors.Join(errs...)
}
