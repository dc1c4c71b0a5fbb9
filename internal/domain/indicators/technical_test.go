package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pointrun/internal/market"
)

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSMA(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-12)
	assert.InDelta(t, 3.0, out[3], 1e-12)
	assert.InDelta(t, 4.0, out[4], 1e-12)
}

func TestSMA_SkipsLeadingNaN(t *testing.T) {
	out := SMA([]float64{math.NaN(), math.NaN(), 2, 4, 6}, 2)
	assert.True(t, math.IsNaN(out[2]))
	assert.InDelta(t, 3.0, out[3], 1e-12)
	assert.InDelta(t, 5.0, out[4], 1e-12)
}

func TestEMA_SeededWithSMA(t *testing.T) {
	out := EMA([]float64{2, 4, 6, 8}, 3)
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 4.0, out[2], 1e-12)
	// k = 0.5
	assert.InDelta(t, 6.0, out[3], 1e-12)
}

func TestEMA_ShortInput(t *testing.T) {
	out := EMA([]float64{1, 2}, 5)
	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}
}

func TestRSI(t *testing.T) {
	t.Run("monotonic rise", func(t *testing.T) {
		closes := make([]float64, 30)
		for i := range closes {
			closes[i] = float64(100 + i)
		}
		out := RSI(closes, 14)
		assert.True(t, math.IsNaN(out[13]))
		assert.InDelta(t, 100.0, out[14], 1e-9)
		assert.InDelta(t, 100.0, out[29], 1e-9)
	})

	t.Run("monotonic fall", func(t *testing.T) {
		closes := make([]float64, 30)
		for i := range closes {
			closes[i] = float64(100 - i)
		}
		out := RSI(closes, 14)
		assert.InDelta(t, 0.0, out[20], 1e-9)
	})

	t.Run("flat", func(t *testing.T) {
		out := RSI(flat(30, 50), 14)
		assert.Equal(t, 0.0, out[20])
	})

	t.Run("alternating", func(t *testing.T) {
		closes := make([]float64, 40)
		for i := range closes {
			if i%2 == 0 {
				closes[i] = 100
			} else {
				closes[i] = 101
			}
		}
		out := RSI(closes, 14)
		assert.InDelta(t, 50.0, out[39], 5.0)
	})
}

func TestMACD_FlatIsZero(t *testing.T) {
	res := MACD(flat(60, 10), 12, 26, 9)
	assert.True(t, math.IsNaN(res.MACD[32]))
	assert.True(t, math.IsNaN(res.Signal[32]))
	assert.Equal(t, 0.0, res.MACD[33])
	assert.Equal(t, 0.0, res.Signal[33])
	assert.Equal(t, 0.0, res.Histogram[59])
}

func TestMACD_Uptrend(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + float64(i)*float64(i)*0.01
	}
	res := MACD(closes, 12, 26, 9)
	assert.Greater(t, res.MACD[79], 0.0)
	assert.Greater(t, res.MACD[79], res.Signal[79])
}

func TestDirectional(t *testing.T) {
	t.Run("flat has no direction", func(t *testing.T) {
		res := Directional(flat(40, 10), flat(40, 10), flat(40, 10), 14)
		assert.True(t, math.IsNaN(res.PlusDI[13]))
		assert.Equal(t, 0.0, res.PlusDI[14])
		assert.Equal(t, 0.0, res.MinusDI[14])
		assert.True(t, math.IsNaN(res.ADX[26]))
		assert.Equal(t, 0.0, res.ADX[27])
	})

	t.Run("uptrend favours plus", func(t *testing.T) {
		n := 50
		highs, lows, closes := make([]float64, n), make([]float64, n), make([]float64, n)
		for i := 0; i < n; i++ {
			closes[i] = 100 + float64(i)
			highs[i] = closes[i] + 1
			lows[i] = closes[i] - 1
		}
		res := Directional(highs, lows, closes, 14)
		assert.Greater(t, res.PlusDI[49], res.MinusDI[49])
		assert.Equal(t, 0.0, res.MinusDI[49])
		assert.InDelta(t, 100.0, res.ADX[49], 1e-9)
	})

	t.Run("mismatched lengths", func(t *testing.T) {
		res := Directional(flat(10, 1), flat(9, 1), flat(10, 1), 3)
		assert.True(t, math.IsNaN(res.PlusDI[9]))
	})
}

func TestFibonacciLevels(t *testing.T) {
	levels := FibonacciLevels([]float64{10, 20, 15}, []float64{5, 12, 0}, []float64{0.236, 0.5, 0.786})
	require.Len(t, levels, 3)
	assert.InDelta(t, 20-0.236*20, levels[0], 1e-12)
	assert.InDelta(t, 10.0, levels[1], 1e-12)
	assert.InDelta(t, 20-0.786*20, levels[2], 1e-12)

	empty := FibonacciLevels(nil, nil, []float64{0.5})
	assert.True(t, math.IsNaN(empty[0]))
}

func TestCompute(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make(market.Bars, 60)
	for i := range bars {
		ts := start.Add(time.Duration(i) * 24 * time.Hour)
		bars[i] = market.Bar{OpenTime: ts, Open: 10, High: 10, Low: 10, Close: 10, CloseTime: ts.Add(24*time.Hour - time.Millisecond)}
	}

	s := Compute(bars, DefaultPeriods())
	for _, name := range []string{EMAFast, EMASlow, RSIName, RSIMA, MACDLine, MACDSignal, MACDHist, PlusDIName, MinusDIName, ADXName} {
		require.Contains(t, s, name)
		assert.Len(t, s[name], len(bars), name)
	}
	assert.Equal(t, s[EMAFast][59], s[EMASlow][59])
	// RSI first defined at 14, its 14-period SMA at 27
	assert.True(t, math.IsNaN(s[RSIMA][26]))
	assert.Equal(t, 0.0, s[RSIMA][27])
}
