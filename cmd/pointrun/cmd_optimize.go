package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/pointrun/internal/domain/signals"
	"github.com/sawpanic/pointrun/internal/persistence"
	"github.com/sawpanic/pointrun/internal/report"
	"github.com/sawpanic/pointrun/internal/tune/grid"
)

type optimizeFlags struct {
	data        dataFlags
	parallelism int
	top         int
	reportPath  string
}

func newOptimizeCmd(a *app) *cobra.Command {
	f := &optimizeFlags{}
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Grid-search thresholds and rule weights",
		Long:  "Evaluates every grid combination on a bounded worker pool, ranks viable trials by fitness and reports the best parameter set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOptimize(cmd, f)
		},
	}

	f.data.register(cmd.Flags())
	cmd.Flags().IntVar(&f.parallelism, "parallelism", 0, "Concurrent trials (overrides optimizer.parallelism, 0 = NumCPU)")
	cmd.Flags().IntVar(&f.top, "top", 10, "Rows shown in the ranking table")
	cmd.Flags().StringVar(&f.reportPath, "report", "", "Write a markdown report to this path")
	return cmd
}

func (a *app) runOptimize(cmd *cobra.Command, f *optimizeFlags) error {
	cfg := a.cfg
	f.data.apply(cfg)
	if cmd.Flags().Changed("parallelism") {
		cfg.Optimizer.Parallelism = f.parallelism
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

	optimizer := &grid.Optimizer{
		Evaluator: &grid.PipelineEvaluator{
			Provider:   provider,
			Symbols:    cfg.Data.Symbols,
			Interval:   cfg.Data.Interval,
			Start:      start,
			End:        end,
			Scoring:    cfg.Strategy.Scoring,
			Simulation: cfg.Simulation,
			Mode:       mode,
			MinPeriods: cfg.Data.MinPeriods,
		},
		Parallelism:       cfg.Optimizer.Parallelism,
		MaxAvgHoldingDays: cfg.Optimizer.MaxAvgHoldingDays,
		Observer:          a.metrics,
		ProgressEvery:     cfg.Optimizer.ProgressEvery,
	}

	summary, err := optimizer.Optimize(ctx, cfg.Optimizer.Grid)
	if err != nil && !errors.Is(err, grid.ErrNoViableCandidate) {
		return err
	}
	searchErr := err

	out := cmd.OutOrStdout()
	if summary.Best != nil {
		fmt.Fprintf(out, "\nBest: %s  fitness=%.6f trades=%d\n\n", summary.Best.Params, summary.Best.Score, summary.Best.TotalTrades)
		if err := report.WriteRanking(out, summary.Ranked, f.top); err != nil {
			return err
		}
	}

	if f.reportPath != "" {
		if err := report.NewGenerator().WriteOptimizerReport(f.reportPath, summary); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		log.Info().Str("path", f.reportPath).Msg("Optimizer report written")
	}

	run := persistence.Run{
		ID:         summary.RunID,
		Kind:       persistence.KindOptimize,
		Interval:   cfg.Data.Interval,
		Symbols:    cfg.Data.Symbols,
		Start:      start,
		End:        end,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.StartedAt.Add(summary.Duration),
	}
	if summary.Best != nil {
		run.Summary = rawJSON(summary.Best)
	}
	if err := store.Runs().SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err := store.Runs().SaveFitness(ctx, run.ID, summary.Ranked); err != nil {
		return fmt.Errorf("save fitness: %w", err)
	}

	log.Info().
		Str("run_id", run.ID).
		Int("trials", len(summary.Trials)).
		Int("viable", len(summary.Ranked)).
		Dur("duration", summary.Duration.Round(time.Millisecond)).
		Msg("Optimization complete")

	return searchErr
}
