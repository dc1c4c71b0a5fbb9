package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/pointrun/internal/backtest/sim"
	"github.com/sawpanic/pointrun/internal/backtest/stats"
	"github.com/sawpanic/pointrun/internal/domain/signals"
	"github.com/sawpanic/pointrun/internal/market"
)

// TradeObserver receives every closed trade, e.g. for metrics
type TradeObserver interface {
	ObserveTrade(symbol string, trade sim.Trade)
}

// Clock interface for time operations (injectable for testing)
type Clock interface {
	Now() time.Time
}

// Runner fetches bars, builds the signal stream and simulates each symbol
type Runner struct {
	Provider  market.Provider
	Builder   *signals.Builder
	Simulator *sim.Simulator
	Interval  string
	Start     time.Time
	End       time.Time
	Observer  TradeObserver
	Clock     Clock
}

// SymbolResult is the outcome for one instrument
type SymbolResult struct {
	Symbol string         `json:"symbol"`
	Bars   int            `json:"bars"`
	Result sim.Result     `json:"result"`
	Stream signals.Stream `json:"-"`
	Err    error          `json:"-"`
}

// Report is the outcome of a multi-symbol backtest run
type Report struct {
	RunID      string            `json:"run_id"`
	Interval   string            `json:"interval"`
	Start      time.Time         `json:"start"`
	End        time.Time         `json:"end"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Symbols    []SymbolResult    `json:"symbols"`
	Trades     []sim.Trade       `json:"trades"`
	Summary    *stats.Summary    `json:"summary,omitempty"`
	Failed     map[string]string `json:"failed,omitempty"`
}

func (r *Runner) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock.Now()
}

// RunSymbol backtests a single instrument. Upstream errors are returned unchanged.
func (r *Runner) RunSymbol(ctx context.Context, symbol string) (SymbolResult, error) {
	out := SymbolResult{Symbol: symbol}

	bars, err := r.Provider.FetchBars(ctx, symbol, r.Interval, r.Start, r.End)
	if err != nil {
		return out, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	out.Bars = len(bars)

	stream, err := r.Builder.Build(bars)
	if err != nil {
		return out, fmt.Errorf("signals %s: %w", symbol, err)
	}
	out.Stream = stream

	res, err := r.Simulator.Run(bars, stream)
	if err != nil {
		return out, fmt.Errorf("simulate %s: %w", symbol, err)
	}
	out.Result = res

	if r.Observer != nil {
		for _, t := range res.Trades {
			r.Observer.ObserveTrade(symbol, t)
		}
	}

	log.Info().
		Str("symbol", symbol).
		Int("bars", len(bars)).
		Int("trades", len(res.Trades)).
		Float64("final_balance", res.FinalBalance).
		Float64("max_drawdown", res.MaxDrawdown).
		Bool("margin_called", res.MarginCalled).
		Msg("Symbol backtest complete")
	return out, nil
}

// Run backtests every symbol in order. With skipFailed a failing symbol is
// logged and recorded in Report.Failed; otherwise the first error aborts the run.
func (r *Runner) Run(ctx context.Context, symbols []string, skipFailed bool) (*Report, error) {
	if len(symbols) == 0 {
		return nil, errors.New("no symbols to backtest")
	}

	report := &Report{
		RunID:     uuid.New().String(),
		Interval:  r.Interval,
		Start:     r.Start,
		End:       r.End,
		StartedAt: r.now(),
	}

	log.Info().
		Str("run_id", report.RunID).
		Str("symbols", strings.Join(symbols, ",")).
		Str("interval", r.Interval).
		Time("start", r.Start).
		Time("end", r.End).
		Msg("Starting backtest")

	instruments := 0
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := r.RunSymbol(ctx, symbol)
		if err != nil {
			if !skipFailed {
				return nil, err
			}
			log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping symbol")
			if report.Failed == nil {
				report.Failed = make(map[string]string)
			}
			report.Failed[symbol] = err.Error()
			res.Err = err
			report.Symbols = append(report.Symbols, res)
			continue
		}

		instruments++
		report.Symbols = append(report.Symbols, res)
		report.Trades = append(report.Trades, res.Result.Trades...)
	}

	barsPerDay, err := market.BarsPerDay(r.Interval)
	if err != nil {
		return nil, err
	}

	summary, err := stats.Summarize(report.Trades, instruments, barsPerDay)
	switch {
	case err == nil:
		report.Summary = &summary
	case errors.Is(err, stats.ErrEmptyLedger):
		log.Info().Str("run_id", report.RunID).Msg("Backtest produced no trades")
	default:
		return nil, err
	}

	report.FinishedAt = r.now()
	return report, nil
}
