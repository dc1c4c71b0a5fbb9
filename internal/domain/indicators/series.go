package indicators

import (
	"github.com/sawpanic/pointrun/internal/market"
)

// Series names produced by Compute
const (
	EMAFast     = "ema_fast"
	EMASlow     = "ema_slow"
	RSIName     = "rsi"
	RSIMA       = "rsi_ma"
	MACDLine    = "macd"
	MACDSignal  = "macd_signal"
	MACDHist    = "macd_hist"
	PlusDIName  = "plus_di"
	MinusDIName = "minus_di"
	ADXName     = "adx"
)

// Periods configures indicator lookbacks
type Periods struct {
	EMAFast    int `yaml:"ema_fast"`
	EMASlow    int `yaml:"ema_slow"`
	RSI        int `yaml:"rsi"`
	RSIMA      int `yaml:"rsi_ma"`
	MACDFast   int `yaml:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow"`
	MACDSignal int `yaml:"macd_signal"`
	DI         int `yaml:"di"`
}

// DefaultPeriods returns the conventional lookbacks
func DefaultPeriods() Periods {
	return Periods{
		EMAFast:    5,
		EMASlow:    10,
		RSI:        14,
		RSIMA:      14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		DI:         14,
	}
}

// Series maps indicator name to values index-aligned with the bars
type Series map[string][]float64

// Compute evaluates every configured indicator over bars
func Compute(bars market.Bars, p Periods) Series {
	closes := bars.Closes()
	highs := bars.Highs()
	lows := bars.Lows()

	rsi := RSI(closes, p.RSI)
	macd := MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	dir := Directional(highs, lows, closes, p.DI)

	return Series{
		EMAFast:     EMA(closes, p.EMAFast),
		EMASlow:     EMA(closes, p.EMASlow),
		RSIName:     rsi,
		RSIMA:       SMA(rsi, p.RSIMA),
		MACDLine:    macd.MACD,
		MACDSignal:  macd.Signal,
		MACDHist:    macd.Histogram,
		PlusDIName:  dir.PlusDI,
		MinusDIName: dir.MinusDI,
		ADXName:     dir.ADX,
	}
}
