package indicators

import (
	"math"
)

// All series functions return a slice of the same length as their input,
// front-padded with NaN until enough history exists for the lookback.
// Leading NaN values in the input are skipped, so indicators can be chained
// (for example SMA over RSI).

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// firstValid returns the index of the first non-NaN value, or len(values)
func firstValid(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return len(values)
}

// SMA calculates the simple moving average over period values
func SMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	begin := firstValid(values)
	if len(values)-begin < period {
		return out
	}

	sum := 0.0
	for i := begin; i < begin+period; i++ {
		sum += values[i]
	}
	out[begin+period-1] = sum / float64(period)
	for i := begin + period; i < len(values); i++ {
		sum += values[i] - values[i-period]
		out[i] = sum / float64(period)
	}
	return out
}

// EMA calculates the exponential moving average, seeded with the SMA of the
// first period values
func EMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	begin := firstValid(values)
	if len(values)-begin < period {
		return out
	}

	k := 2.0 / float64(period+1)
	seed := 0.0
	for i := begin; i < begin+period; i++ {
		seed += values[i]
	}
	prev := seed / float64(period)
	out[begin+period-1] = prev
	for i := begin + period; i < len(values); i++ {
		prev = (values[i]-prev)*k + prev
		out[i] = prev
	}
	return out
}

// RSI calculates the Relative Strength Index using Wilder's smoothing.
// A window with no price movement at all yields 0.
func RSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 {
		return out
	}
	begin := firstValid(closes)
	if len(closes)-begin <= period {
		return out
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := begin + 1; i <= begin+period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[begin+period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := begin + period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	total := avgGain + avgLoss
	if total == 0 {
		return 0
	}
	return 100 * avgGain / total
}

// MACDResult holds the three MACD lines
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD calculates the moving average convergence/divergence lines
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	n := len(closes)
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)

	line := nanSeries(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(fastEMA[i]) || math.IsNaN(slowEMA[i]) {
			continue
		}
		line[i] = fastEMA[i] - slowEMA[i]
	}

	sig := EMA(line, signal)
	hist := nanSeries(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(sig[i]) {
			continue
		}
		hist[i] = line[i] - sig[i]
	}

	// Match the conventional output: MACD is only reported where the signal exists
	for i := 0; i < n; i++ {
		if math.IsNaN(sig[i]) {
			line[i] = math.NaN()
		}
	}

	return MACDResult{MACD: line, Signal: sig, Histogram: hist}
}

// FibonacciLevels returns retracement levels high - ratio*(high-low) computed
// from the extremes of the given highs and lows. NaN entries are ignored.
func FibonacciLevels(highs, lows []float64, ratios []float64) []float64 {
	high := math.Inf(-1)
	low := math.Inf(1)
	for _, h := range highs {
		if !math.IsNaN(h) && h > high {
			high = h
		}
	}
	for _, l := range lows {
		if !math.IsNaN(l) && l < low {
			low = l
		}
	}

	levels := make([]float64, len(ratios))
	if math.IsInf(high, -1) || math.IsInf(low, 1) {
		for i := range levels {
			levels[i] = math.NaN()
		}
		return levels
	}

	diff := high - low
	for i, r := range ratios {
		levels[i] = high - r*diff
	}
	return levels
}
