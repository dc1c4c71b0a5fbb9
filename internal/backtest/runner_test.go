package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pointrun/internal/backtest/sim"
	"github.com/sawpanic/pointrun/internal/domain/scoring"
	"github.com/sawpanic/pointrun/internal/domain/signals"
	"github.com/sawpanic/pointrun/internal/market"
)

var t0 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func barsFrom(closes []float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		ts := t0.Add(time.Duration(i) * 24 * time.Hour)
		bars[i] = market.Bar{OpenTime: ts, Open: c, High: c, Low: c, Close: c, Volume: 1, CloseTime: ts.Add(24*time.Hour - time.Millisecond)}
	}
	return bars
}

// breakoutCloses jumps from 10 to 16 and back, crossing every Fibonacci level twice
func breakoutCloses() []float64 {
	closes := make([]float64, 50)
	for i := range closes {
		switch {
		case i >= 30 && i < 40:
			closes[i] = 16
		default:
			closes[i] = 10
		}
	}
	return closes
}

type recorder struct {
	trades map[string]int
}

func (r *recorder) ObserveTrade(symbol string, trade sim.Trade) {
	if r.trades == nil {
		r.trades = make(map[string]int)
	}
	r.trades[symbol]++
}

// stepClock advances by one minute on every reading
type stepClock struct {
	next time.Time
}

func (c *stepClock) Now() time.Time {
	now := c.next
	c.next = c.next.Add(time.Minute)
	return now
}

func newRunner(t *testing.T, provider market.Provider) *Runner {
	t.Helper()
	cfg := scoring.ScanProfile()
	cfg.Weights = scoring.Weights{Fib: 1.2}
	cfg.MinBars = 25
	scorer, err := scoring.NewScorer(cfg)
	require.NoError(t, err)

	simulator, err := sim.NewSimulator(sim.DefaultConfig())
	require.NoError(t, err)

	return &Runner{
		Provider:  provider,
		Builder:   &signals.Builder{Scorer: scorer, LongThreshold: 1.2, ShortThreshold: 0.5},
		Simulator: simulator,
		Interval:  "1d",
		Start:     t0,
		End:       t0.Add(50 * 24 * time.Hour),
	}
}

func TestRunSymbol_Breakout(t *testing.T) {
	provider := market.ProviderFunc(func(ctx context.Context, symbol, interval string, start, end time.Time) ([]market.Bar, error) {
		assert.Equal(t, "1d", interval)
		return barsFrom(breakoutCloses()), nil
	})
	r := newRunner(t, provider)
	rec := &recorder{}
	r.Observer = rec

	res, err := r.RunSymbol(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 50, res.Bars)
	require.Len(t, res.Result.Trades, 2)

	long := res.Result.Trades[0]
	assert.Equal(t, sim.Long, long.Side)
	assert.Equal(t, 16.0, long.EntryPrice)
	assert.Equal(t, 10.0, long.ExitPrice)
	assert.InDelta(t, -0.375, long.PnL, 1e-12)

	short := res.Result.Trades[1]
	assert.Equal(t, sim.Short, short.Side)
	assert.Equal(t, 0.0, short.PnL)
	assert.Equal(t, long.ExitBalance, short.EntryBalance)

	assert.InDelta(t, 62.5, res.Result.FinalBalance, 1e-9)
	assert.Equal(t, 2, rec.trades["BTCUSDT"])
}

func TestRun_SkipsFailedSymbols(t *testing.T) {
	upstream := &market.UpstreamError{Provider: "test", Symbol: "BADUSDT", Op: "fetch", Err: errors.New("boom")}
	provider := market.ProviderFunc(func(ctx context.Context, symbol, interval string, start, end time.Time) ([]market.Bar, error) {
		if symbol == "BADUSDT" {
			return nil, upstream
		}
		return barsFrom(breakoutCloses()), nil
	})
	r := newRunner(t, provider)

	report, err := r.Run(context.Background(), []string{"BTCUSDT", "BADUSDT", "ETHUSDT"}, true)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Len(t, report.Symbols, 3)
	assert.Contains(t, report.Failed, "BADUSDT")
	assert.Len(t, report.Trades, 4)

	require.NotNil(t, report.Summary)
	assert.Equal(t, 4, report.Summary.TradeCount)
	assert.Equal(t, 2, report.Summary.Instruments)
	assert.InDelta(t, 2.0, report.Summary.AvgTradesPerInstrument, 1e-12)
}

func TestRun_PropagatesUpstreamError(t *testing.T) {
	upstream := &market.UpstreamError{Provider: "test", Symbol: "BADUSDT", Op: "fetch", StatusCode: 500, Err: errors.New("boom")}
	provider := market.ProviderFunc(func(ctx context.Context, symbol, interval string, start, end time.Time) ([]market.Bar, error) {
		return nil, upstream
	})
	r := newRunner(t, provider)

	_, err := r.Run(context.Background(), []string{"BADUSDT"}, false)
	require.Error(t, err)
	assert.True(t, market.IsUpstream(err))
}

func TestRun_NoTradesLeavesSummaryEmpty(t *testing.T) {
	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 5
	}
	provider := market.ProviderFunc(func(ctx context.Context, symbol, interval string, start, end time.Time) ([]market.Bar, error) {
		return barsFrom(flat), nil
	})
	r := newRunner(t, provider)

	report, err := r.Run(context.Background(), []string{"XRPUSDT"}, false)
	require.NoError(t, err)
	assert.Nil(t, report.Summary)
	assert.Empty(t, report.Trades)
	assert.Equal(t, 100.0, report.Symbols[0].Result.FinalBalance)
}

func TestRun_NoSymbols(t *testing.T) {
	r := newRunner(t, market.ProviderFunc(nil))
	_, err := r.Run(context.Background(), nil, false)
	assert.Error(t, err)
}

func TestRun_StampsTimesFromClock(t *testing.T) {
	provider := market.ProviderFunc(func(ctx context.Context, symbol, interval string, start, end time.Time) ([]market.Bar, error) {
		return barsFrom(breakoutCloses()), nil
	})
	r := newRunner(t, provider)
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.Clock = &stepClock{next: started}

	report, err := r.Run(context.Background(), []string{"BTCUSDT"}, false)
	require.NoError(t, err)
	assert.Equal(t, started, report.StartedAt)
	assert.Equal(t, started.Add(time.Minute), report.FinishedAt)
}
