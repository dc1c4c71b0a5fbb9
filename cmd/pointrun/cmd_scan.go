package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/pointrun/internal/config"
	"github.com/sawpanic/pointrun/internal/domain/scoring"
	"github.com/sawpanic/pointrun/internal/domain/signals"
	"github.com/sawpanic/pointrun/internal/market"
	"github.com/sawpanic/pointrun/internal/report"
)

type scanFlags struct {
	data     dataFlags
	at       string
	lookback int
	optimize bool
}

func newScanCmd(a *app) *cobra.Command {
	f := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Rank symbols by their current points",
		Long:  "Scores the latest window of every symbol with the scan profile (EMA, DI and Fibonacci crossings) and lists them highest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, f)
		},
	}

	f.data.register(cmd.Flags())
	cmd.Flags().StringVar(&f.at, "at", "", "Scan as of this time, YYYY-MM-DD or RFC3339 (default now)")
	cmd.Flags().IntVar(&f.lookback, "lookback", 0, "Bars fetched per symbol (default twice the scorer minimum)")
	cmd.Flags().BoolVar(&f.optimize, "optimizer-profile", false, "Score with strategy.scoring instead of strategy.scan")
	return cmd
}

// scanWindow returns the fetch range ending at `at` that covers lookback bars
func scanWindow(interval string, at time.Time, lookback int) (time.Time, time.Time, error) {
	step, err := market.ParseInterval(interval)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return at.Add(-time.Duration(lookback) * step), at, nil
}

func (a *app) runScan(cmd *cobra.Command, f *scanFlags) error {
	cfg := a.cfg
	f.data.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	profile := cfg.Strategy.Scan
	if f.optimize {
		profile = cfg.Strategy.Scoring
	}
	scorer, err := scoring.NewScorer(profile)
	if err != nil {
		return err
	}

	at := time.Now().UTC()
	if f.at != "" {
		if at, err = config.ParseTime(f.at); err != nil {
			return fmt.Errorf("--at: %w", err)
		}
	}
	lookback := f.lookback
	if lookback <= 0 {
		lookback = 2 * scorer.MinBars()
	}
	start, end, err := scanWindow(cfg.Data.Interval, at, lookback)
	if err != nil {
		return err
	}

	provider, closer, err := a.openProvider()
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	candles := make(map[string]market.Bars, len(cfg.Data.Symbols))
	var failed []signals.Ranked
	for _, symbol := range cfg.Data.Symbols {
		bars, err := provider.FetchBars(ctx, symbol, cfg.Data.Interval, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Str("symbol", symbol).Msg("Fetch failed, symbol not ranked")
			failed = append(failed, signals.Ranked{Symbol: symbol, Err: err})
			continue
		}
		candles[symbol] = bars
	}

	ranked := append(signals.Rank(scorer, candles), failed...)
	log.Info().Int("symbols", len(cfg.Data.Symbols)).Int("failed", len(failed)).Time("at", at).Msg("Scan complete")
	return report.WriteScan(cmd.OutOrStdout(), ranked)
}
