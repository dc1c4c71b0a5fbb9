package grid

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/pointrun/internal/backtest/sim"
	"github.com/sawpanic/pointrun/internal/domain/scoring"
	"github.com/sawpanic/pointrun/internal/domain/signals"
	"github.com/sawpanic/pointrun/internal/market"
)

// Evaluator runs one trial
type Evaluator interface {
	Evaluate(ctx context.Context, params ParameterSet) (TrialOutcome, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface
type EvaluatorFunc func(ctx context.Context, params ParameterSet) (TrialOutcome, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, params ParameterSet) (TrialOutcome, error) {
	return f(ctx, params)
}

// PipelineEvaluator fetches, scores and simulates every symbol for a trial.
// Each call builds its own scorer, builder and simulator and fetches its own
// bars, so concurrent trials share nothing.
type PipelineEvaluator struct {
	Provider   market.Provider
	Symbols    []string
	Interval   string
	Start      time.Time
	End        time.Time
	Scoring    scoring.Config
	Simulation sim.Config
	Mode       signals.Mode
	MinPeriods int
}

func (e *PipelineEvaluator) Evaluate(ctx context.Context, params ParameterSet) (TrialOutcome, error) {
	cfg := e.Scoring
	cfg.Weights = params.Weights
	scorer, err := scoring.NewScorer(cfg)
	if err != nil {
		return TrialOutcome{}, err
	}
	simulator, err := sim.NewSimulator(e.Simulation)
	if err != nil {
		return TrialOutcome{}, err
	}
	builder := &signals.Builder{
		Scorer:         scorer,
		LongThreshold:  params.LongThreshold,
		ShortThreshold: params.ShortThreshold,
		MinPeriods:     e.MinPeriods,
		Mode:           e.Mode,
	}

	outcome := TrialOutcome{Instruments: make([]InstrumentOutcome, 0, len(e.Symbols))}
	for _, symbol := range e.Symbols {
		if err := ctx.Err(); err != nil {
			return TrialOutcome{}, err
		}

		bars, err := e.Provider.FetchBars(ctx, symbol, e.Interval, e.Start, e.End)
		if err != nil {
			return TrialOutcome{}, fmt.Errorf("fetch %s: %w", symbol, err)
		}
		stream, err := builder.Build(bars)
		if err != nil {
			return TrialOutcome{}, fmt.Errorf("signals %s: %w", symbol, err)
		}
		res, err := simulator.Run(bars, stream)
		if err != nil {
			return TrialOutcome{}, fmt.Errorf("simulate %s: %w", symbol, err)
		}
		outcome.Instruments = append(outcome.Instruments, InstrumentOutcome{Symbol: symbol, Trades: res.Trades})
	}
	return outcome, nil
}
