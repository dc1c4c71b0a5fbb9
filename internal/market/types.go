package market

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Bar represents one OHLCV candle for a fixed period
type Bar struct {
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	CloseTime time.Time `json:"close_time"`
}

// Check rejects a bar with a non-finite price or volume, or whose close
// time is not after its open time
func (b Bar) Check() error {
	fields := [...]struct {
		name  string
		value float64
	}{
		{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}, {"volume", b.Volume},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s is not finite: %v", f.name, f.value)
		}
	}
	if !b.CloseTime.After(b.OpenTime) {
		return fmt.Errorf("close time %s not after open time %s",
			b.CloseTime.Format(time.RFC3339Nano), b.OpenTime.Format(time.RFC3339Nano))
	}
	return nil
}

// Bars is an ordered bar sequence, one per period
type Bars []Bar

// Provider supplies historical bars for a symbol/interval/time range.
// Implementations paginate internally and treat an empty page as end-of-data.
type Provider interface {
	FetchBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]Bar, error)
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func(ctx context.Context, symbol, interval string, start, end time.Time) ([]Bar, error)

func (f ProviderFunc) FetchBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]Bar, error) {
	return f(ctx, symbol, interval, start, end)
}

func (b Bars) Closes() []float64 {
	out := make([]float64, len(b))
	for i, bar := range b {
		out[i] = bar.Close
	}
	return out
}

func (b Bars) Highs() []float64 {
	out := make([]float64, len(b))
	for i, bar := range b {
		out[i] = bar.High
	}
	return out
}

func (b Bars) Lows() []float64 {
	out := make([]float64, len(b))
	for i, bar := range b {
		out[i] = bar.Low
	}
	return out
}

func (b Bars) Volumes() []float64 {
	out := make([]float64, len(b))
	for i, bar := range b {
		out[i] = bar.Volume
	}
	return out
}

// Validate checks that open times are strictly increasing
func (b Bars) Validate() error {
	for i := 1; i < len(b); i++ {
		if !b[i].OpenTime.After(b[i-1].OpenTime) {
			return fmt.Errorf("bar %d open time %s not after bar %d open time %s",
				i, b[i].OpenTime.Format(time.RFC3339), i-1, b[i-1].OpenTime.Format(time.RFC3339))
		}
	}
	return nil
}

// AllPricesMissing reports whether no bar carries a usable close price
func (b Bars) AllPricesMissing() bool {
	for _, bar := range b {
		if !math.IsNaN(bar.Close) {
			return false
		}
	}
	return true
}
