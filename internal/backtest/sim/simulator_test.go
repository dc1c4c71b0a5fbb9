package sim

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pointrun/internal/domain/signals"
	"github.com/sawpanic/pointrun/internal/market"
)

func makeBars(closes ...float64) market.Bars {
	start := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make(market.Bars, len(closes))
	for i, c := range closes {
		ts := start.Add(time.Duration(i) * 24 * time.Hour)
		bars[i] = market.Bar{OpenTime: ts, Open: c, High: c, Low: c, Close: c, CloseTime: ts.Add(24*time.Hour - time.Millisecond)}
	}
	return bars
}

func streamOf(points ...float64) signals.Stream {
	long, short := signals.Triggers(points, 1.2, 0.5)
	return signals.Stream{Points: points, Long: long, Short: short}
}

func newSim(t *testing.T, leverage float64) *Simulator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Leverage = leverage
	s, err := NewSimulator(cfg)
	require.NoError(t, err)
	return s
}

func TestRun_LongTenPercent(t *testing.T) {
	bars := makeBars(100, 101, 99, 102, 105, 110)
	stream := streamOf(2, 1, 1, 1, 1, 0.5)

	res, err := newSim(t, 1).Run(bars, stream)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, Long, tr.Side)
	assert.Equal(t, 100.0, tr.EntryPrice)
	assert.Equal(t, 110.0, tr.ExitPrice)
	assert.InDelta(t, 0.10, tr.PnL, 1e-12)
	assert.Equal(t, 100.0, tr.EntryBalance)
	assert.InDelta(t, 110.0, tr.ExitBalance, 1e-9)
	assert.Equal(t, 2.0, tr.EntryPoints)
	assert.Equal(t, bars[0].OpenTime, tr.EntryTime)
	assert.Equal(t, bars[5].CloseTime, tr.ExitTime)
	assert.True(t, tr.ExitTime.After(tr.EntryTime))

	assert.InDelta(t, 110.0, res.FinalBalance, 1e-9)
	assert.Equal(t, 0.0, res.MaxDrawdown)
	assert.False(t, res.MarginCalled)
	// the exit bar is also a short signal but must not reopen
	assert.Nil(t, res.Open)
}

func TestRun_FlatStreamHasNoTrades(t *testing.T) {
	closes := make([]float64, 250)
	points := make([]float64, 250)
	for i := range closes {
		closes[i] = 100
		points[i] = 1
	}

	res, err := newSim(t, 1).Run(makeBars(closes...), streamOf(points...))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 100.0, res.FinalBalance)
	assert.Equal(t, 0.0, res.MaxDrawdown)
	assert.Nil(t, res.Open)
}

func TestRun_LongWinsTie(t *testing.T) {
	bars := makeBars(100, 120)
	stream := signals.Stream{
		Points: []float64{1, 0.1},
		Long:   []bool{true, false},
		Short:  []bool{true, false},
	}

	res, err := newSim(t, 1).Run(bars, stream)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, Long, res.Trades[0].Side)
	assert.InDelta(t, 0.2, res.Trades[0].PnL, 1e-12)
}

func TestRun_ShortPnL(t *testing.T) {
	bars := makeBars(100, 95, 90)
	stream := streamOf(0.4, 0.6, 0.7)

	res, err := newSim(t, 2).Run(bars, stream)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, Short, tr.Side)
	// 0.6 is not above the exit threshold, so the short survives bar 1
	assert.Equal(t, 90.0, tr.ExitPrice)
	assert.InDelta(t, 0.2, tr.PnL, 1e-12)
	assert.InDelta(t, 120.0, res.FinalBalance, 1e-9)
}

func TestRun_BalanceContinuityAndDrawdown(t *testing.T) {
	bars := makeBars(100, 110, 110, 99, 99, 99, 90, 90, 80)
	stream := streamOf(
		1.5, 0.3, // long 100 -> 110, +10%
		1.5, 0.3, // long 110 -> 99, -10%
		0.9,
		0.4, 0.9, // short 99 -> 90
		1.3, 0.5, // long 90 -> 80
	)

	res, err := newSim(t, 1).Run(bars, stream)
	require.NoError(t, err)
	require.Len(t, res.Trades, 4)

	assert.Equal(t, []Side{Long, Long, Short, Long}, []Side{res.Trades[0].Side, res.Trades[1].Side, res.Trades[2].Side, res.Trades[3].Side})
	for i := 1; i < len(res.Trades); i++ {
		assert.Equal(t, res.Trades[i-1].ExitBalance, res.Trades[i].EntryBalance, "trade %d", i)
	}
	assert.Equal(t, res.Trades[3].ExitBalance, res.FinalBalance)

	assert.InDelta(t, 110.0, res.HighestBalance, 1e-9)
	// 110 -> 99 -> 108 -> 96
	want := 110 - res.FinalBalance
	assert.InDelta(t, want, res.MaxDrawdown, 1e-9)
	assert.Greater(t, res.MaxDrawdown, 11.0)
}

func TestRun_MarginCallIsPermanent(t *testing.T) {
	bars := makeBars(100, 85, 90, 95, 100, 110)
	stream := streamOf(2, 0.3, 2, 0.3, 2, 0.3)

	res, err := newSim(t, 10).Run(bars, stream)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	assert.InDelta(t, -1.5, res.Trades[0].PnL, 1e-12)
	assert.True(t, res.MarginCalled)
	assert.InDelta(t, -50.0, res.FinalBalance, 1e-9)
	assert.InDelta(t, 150.0, res.MaxDrawdown, 1e-9)
	assert.Nil(t, res.Open)

	for _, tr := range res.Trades[1:] {
		assert.LessOrEqual(t, tr.EntryBalance, 0.0)
	}
}

func TestRun_OpenPositionNotRecorded(t *testing.T) {
	bars := makeBars(100, 150, 200)
	stream := streamOf(2, 1, 1)

	res, err := newSim(t, 1).Run(bars, stream)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 100.0, res.FinalBalance)
	require.NotNil(t, res.Open)
	assert.Equal(t, Long, res.Open.Side)
	assert.Equal(t, 100.0, res.Open.EntryPrice)
}

func TestRun_NaNPointsAreNoSignal(t *testing.T) {
	nan := math.NaN()
	bars := makeBars(100, 100, 105, 106, 107)
	stream := streamOf(nan, 2, nan, nan, 0.1)

	res, err := newSim(t, 1).Run(bars, stream)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, 100.0, res.Trades[0].EntryPrice)
	assert.Equal(t, 107.0, res.Trades[0].ExitPrice)
}

func TestRun_LengthMismatch(t *testing.T) {
	_, err := newSim(t, 1).Run(makeBars(1, 2, 3), streamOf(1, 1))
	assert.Error(t, err)
}

func TestRun_RejectsMalformedBars(t *testing.T) {
	nonFinite := makeBars(100, 101, 102)
	nonFinite[1].Close = math.NaN()

	noCloseTime := makeBars(100, 101, 102)
	noCloseTime[2].CloseTime = time.Time{}

	for name, bars := range map[string]market.Bars{"non-finite close": nonFinite, "zero close time": noCloseTime} {
		t.Run(name, func(t *testing.T) {
			_, err := newSim(t, 1).Run(bars, streamOf(2, 1, 0.1))
			assert.Error(t, err)
		})
	}
}

func TestNewSimulator_Validate(t *testing.T) {
	_, err := NewSimulator(Config{Leverage: 0, InitialBalance: 100})
	assert.Error(t, err)
	_, err = NewSimulator(Config{Leverage: 1, InitialBalance: -1})
	assert.Error(t, err)
}
