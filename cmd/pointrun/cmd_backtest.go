package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/pointrun/internal/backtest"
	"github.com/sawpanic/pointrun/internal/backtest/sim"
	"github.com/sawpanic/pointrun/internal/domain/scoring"
	"github.com/sawpanic/pointrun/internal/domain/signals"
	"github.com/sawpanic/pointrun/internal/market"
	"github.com/sawpanic/pointrun/internal/persistence"
	"github.com/sawpanic/pointrun/internal/report"
)

type backtestFlags struct {
	data       dataFlags
	long       float64
	short      float64
	mode       string
	skipFailed bool
	showTrades bool
	tradesCSV  string
}

func newBacktestCmd(a *app) *cobra.Command {
	f := &backtestFlags{}
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Backtest the configured parameter set",
		Long:  "Fetches bars per symbol, builds the points signal stream, simulates trades and prints the ledger and summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBacktest(cmd, f)
		},
	}

	f.data.register(cmd.Flags())
	cmd.Flags().Float64Var(&f.long, "long", 0, "Long threshold (overrides strategy.long_threshold)")
	cmd.Flags().Float64Var(&f.short, "short", 0, "Short threshold (overrides strategy.short_threshold)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "Signal mode: recompute or precomputed (overrides data.mode)")
	cmd.Flags().BoolVar(&f.skipFailed, "skip-failed", false, "Skip symbols whose data cannot be fetched")
	cmd.Flags().BoolVar(&f.showTrades, "show-trades", true, "Print the per-symbol trade ledger")
	cmd.Flags().StringVar(&f.tradesCSV, "trades-csv", "", "Export the combined ledger to this CSV file")
	return cmd
}

func (a *app) runBacktest(cmd *cobra.Command, f *backtestFlags) error {
	cfg := a.cfg
	f.data.apply(cfg)
	if cmd.Flags().Changed("long") {
		cfg.Strategy.LongThreshold = f.long
	}
	if cmd.Flags().Changed("short") {
		cfg.Strategy.ShortThreshold = f.short
	}
	if f.mode != "" {
		cfg.Data.Mode = f.mode
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := cmd.Context()
	start, end, err := cfg.Data.Range()
	if err != nil {
		return err
	}
	mode, err := signals.ParseMode(cfg.Data.Mode)
	if err != nil {
		return err
	}
	scorer, err := scoring.NewScorer(cfg.Strategy.Scoring)
	if err != nil {
		return err
	}
	simulator, err := sim.NewSimulator(cfg.Simulation)
	if err != nil {
		return err
	}

	provider, closer, err := a.openProvider()
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	runner := &backtest.Runner{
		Provider: provider,
		Builder: &signals.Builder{
			Scorer:         scorer,
			LongThreshold:  cfg.Strategy.LongThreshold,
			ShortThreshold: cfg.Strategy.ShortThreshold,
			MinPeriods:     cfg.Data.MinPeriods,
			Mode:           mode,
		},
		Simulator: simulator,
		Interval:  cfg.Data.Interval,
		Start:     start,
		End:       end,
		Observer:  a.metrics,
	}

	rep, err := runner.Run(ctx, cfg.Data.Symbols, f.skipFailed)
	if err != nil {
		return err
	}

	barsPerDay, err := market.BarsPerDay(cfg.Data.Interval)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var ledger []persistence.SymbolTrade
	for _, res := range rep.Symbols {
		if res.Err != nil {
			fmt.Fprintf(out, "\n%s: skipped (%v)\n", res.Symbol, res.Err)
			continue
		}
		for _, t := range res.Result.Trades {
			ledger = append(ledger, persistence.SymbolTrade{Symbol: res.Symbol, Trade: t})
		}

		fmt.Fprintf(out, "\n%s  bars=%d trades=%d final=%.2f max_drawdown=%.2f margin_called=%t\n",
			res.Symbol, res.Bars, len(res.Result.Trades), res.Result.FinalBalance, res.Result.MaxDrawdown, res.Result.MarginCalled)
		if f.showTrades && len(res.Result.Trades) > 0 {
			if err := report.WriteTrades(out, res.Result.Trades, barsPerDay); err != nil {
				return err
			}
		}
	}

	fmt.Fprintln(out)
	if rep.Summary != nil {
		if err := report.WriteSummary(out, *rep.Summary); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, "No trades were closed in the window.")
	}

	if f.tradesCSV != "" {
		if err := report.WriteTradesFile(f.tradesCSV, ledger); err != nil {
			return err
		}
		log.Info().Str("path", f.tradesCSV).Int("trades", len(ledger)).Msg("Trade ledger exported")
	}

	run := persistence.Run{
		ID:         rep.RunID,
		Kind:       persistence.KindBacktest,
		Interval:   rep.Interval,
		Symbols:    cfg.Data.Symbols,
		Start:      rep.Start,
		End:        rep.End,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
	}
	if rep.Summary != nil {
		run.Summary = rawJSON(rep.Summary)
	}
	if err := store.Runs().SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err := store.Runs().SaveTrades(ctx, run.ID, ledger); err != nil {
		return fmt.Errorf("save trades: %w", err)
	}

	log.Info().Str("run_id", run.ID).Int("trades", len(ledger)).Int("failed", len(rep.Failed)).Msg("Backtest complete")
	return nil
}
