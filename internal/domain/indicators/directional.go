package indicators

import "math"

// DirectionalResult holds the Wilder directional movement system
type DirectionalResult struct {
	PlusDI  []float64
	MinusDI []float64
	ADX     []float64
}

// Directional calculates +DI, -DI and ADX with Wilder smoothing.
// DI values are reported from index period; ADX from index 2*period-1.
// Bars with no true range produce 0 rather than NaN.
func Directional(highs, lows, closes []float64, period int) DirectionalResult {
	n := len(closes)
	res := DirectionalResult{
		PlusDI:  nanSeries(n),
		MinusDI: nanSeries(n),
		ADX:     nanSeries(n),
	}
	if period <= 0 || n <= period || len(highs) != n || len(lows) != n {
		return res
	}

	p := float64(period)
	var smTR, smPlus, smMinus float64
	dx := nanSeries(n)

	for i := 1; i < n; i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]

		plusDM, minusDM := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}

		tr := math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))

		if i <= period {
			smTR += tr
			smPlus += plusDM
			smMinus += minusDM
			if i < period {
				continue
			}
		} else {
			smTR = smTR - smTR/p + tr
			smPlus = smPlus - smPlus/p + plusDM
			smMinus = smMinus - smMinus/p + minusDM
		}

		pdi, mdi := 0.0, 0.0
		if smTR != 0 {
			pdi = 100 * smPlus / smTR
			mdi = 100 * smMinus / smTR
		}
		res.PlusDI[i] = pdi
		res.MinusDI[i] = mdi

		if sum := pdi + mdi; sum != 0 {
			dx[i] = 100 * math.Abs(pdi-mdi) / sum
		} else {
			dx[i] = 0
		}
	}

	// ADX: mean of the first period DX values, then Wilder smoothing
	first := 2*period - 1
	if n <= first {
		return res
	}
	adx := 0.0
	for i := period; i <= first; i++ {
		adx += dx[i]
	}
	adx /= p
	res.ADX[first] = adx
	for i := first + 1; i < n; i++ {
		adx = (adx*(p-1) + dx[i]) / p
		res.ADX[i] = adx
	}
	return res
}

// PlusDI is a convenience wrapper around Directional
func PlusDI(highs, lows, closes []float64, period int) []float64 {
	return Directional(highs, lows, closes, period).PlusDI
}

func MinusDI(highs, lows, closes []float64, period int) []float64 {
	return Directional(highs, lows, closes, period).MinusDI
}

func ADX(highs, lows, closes []float64, period int) []float64 {
	return Directional(highs, lows, closes, period).ADX
}
