package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/app"
	"github.com/kjannette/portfolio-analytics/internal/config"
	"github.com/kjannette/portfolio-analytics/internal/logging"
	"github.com/kjannette/portfolio-analytics/internal/models"
	"github.com/spf13/cobra"
)

type analyzer interface {
	AnalyzePortfolio(ctx context.Context, portfolioID, timeframe string) (*models.PortfolioReport, error)
	AnalyzeToken(ctx context.Context, tokenID, timeframe string) (*models.TokenReport, error)
	Prices(ctx context.Context, ids []string) (map[string]models.SimplePriceQuote, error)
}

// builder returns a ready analyzer and a cleanup func.
type builder func(ctx context.Context, requireDB bool) (analyzer, func(), error)

func buildAnalyzer(ctx context.Context, requireDB bool) (analyzer, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	a, err := app.Build(ctx, cfg, app.Options{RequireDB: requireDB})
	if err != nil {
		return nil, nil, err
	}
	return a.Service, a.Close, nil
}

type rootFlags struct {
	timeout time.Duration
	output  string
	compact bool
}

func newRootCmd(build builder) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "analyze",
		Short: "Run portfolio and token analytics from the command line",
		Long: `Run a single analysis against live market data and print the report as JSON.

Examples:
  analyze portfolio main --timeframe 90d
  analyze token bitcoin --timeframe 24h
  analyze prices bitcoin,ethereum --output prices.json`,
		SilenceUsage: true,
	}
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", 3*time.Minute, "Overall deadline for the analysis")
	root.PersistentFlags().StringVar(&flags.output, "output", "", "Output file (default: stdout)")
	root.PersistentFlags().BoolVar(&flags.compact, "compact", false, "Print single-line JSON")

	root.AddCommand(
		portfolioCmd(build, flags),
		tokenCmd(build, flags),
		pricesCmd(build, flags),
	)
	return root
}

func portfolioCmd(build builder, flags *rootFlags) *cobra.Command {
	var timeframe string
	cmd := &cobra.Command{
		Use:   "portfolio <portfolio-id>",
		Short: "Analyze a stored portfolio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, build, true, flags, func(ctx context.Context, a analyzer) (any, error) {
				return a.AnalyzePortfolio(ctx, args[0], timeframe)
			})
		},
	}
	cmd.Flags().StringVar(&timeframe, "timeframe", "30d", "Timeframe (30d|90d|1y)")
	return cmd
}

func tokenCmd(build builder, flags *rootFlags) *cobra.Command {
	var timeframe string
	cmd := &cobra.Command{
		Use:   "token <token-id>",
		Short: "Analyze a single token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, build, false, flags, func(ctx context.Context, a analyzer) (any, error) {
				return a.AnalyzeToken(ctx, args[0], timeframe)
			})
		},
	}
	cmd.Flags().StringVar(&timeframe, "timeframe", "7d", "Timeframe (24h|7d|30d)")
	return cmd
}

func pricesCmd(build builder, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "prices <id>[,<id>...]",
		Aliases: []string{"price"},
		Short:   "Print current prices for one or more tokens",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ids []string
			for _, arg := range args {
				for _, id := range strings.Split(arg, ",") {
					if id = strings.TrimSpace(id); id != "" {
						ids = append(ids, id)
					}
				}
			}
			return run(cmd, build, false, flags, func(ctx context.Context, a analyzer) (any, error) {
				return a.Prices(ctx, ids)
			})
		},
	}
}

func run(cmd *cobra.Command, build builder, requireDB bool, flags *rootFlags, fn func(context.Context, analyzer) (any, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
	defer cancel()

	a, cleanup, err := build(ctx, requireDB)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	result, err := fn(ctx, a)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flags.output != "" {
		f, err := os.Create(flags.output)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return writeJSON(out, result, !flags.compact)
}

func writeJSON(w io.Writer, v any, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
