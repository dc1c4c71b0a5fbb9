package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/sawpanic/pointrun/internal/domain/indicators"
	"github.com/sawpanic/pointrun/internal/market"
)

var (
	// ErrInsufficientHistory is returned when the window is shorter than MinBars
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrNoPriceData is returned when every close in the window is missing
	ErrNoPriceData = errors.New("no price data")
)

// DefaultMinBars covers the slowest indicator lookback
const DefaultMinBars = 200

// Weights are the multiplicative factors applied by each crossover rule.
// A zero weight disables the rule.
type Weights struct {
	EMA  float64 `yaml:"ema" json:"ema"`
	RSI  float64 `yaml:"rsi" json:"rsi"`
	MACD float64 `yaml:"macd" json:"macd"`
	DI   float64 `yaml:"di" json:"di"`
	Fib  float64 `yaml:"fib" json:"fib"`
}

// Config controls the composite scorer
type Config struct {
	Weights       Weights            `yaml:"weights"`
	RSIOversold   float64            `yaml:"rsi_oversold"`
	RSIOverbought float64            `yaml:"rsi_overbought"`
	MACDNeutral   float64            `yaml:"macd_neutral"`
	FibWindow     int                `yaml:"fib_window"`
	FibRatios     []float64          `yaml:"fib_ratios"`
	Offsets       int                `yaml:"offsets"`
	MinBars       int                `yaml:"min_bars"`
	Periods       indicators.Periods `yaml:"periods"`
}

func baseConfig() Config {
	return Config{
		RSIOversold:   40,
		RSIOverbought: 70,
		MACDNeutral:   0,
		FibWindow:     50,
		FibRatios:     []float64{0.236, 0.382, 0.5, 0.618, 0.786},
		Offsets:       3,
		MinBars:       DefaultMinBars,
		Periods:       indicators.DefaultPeriods(),
	}
}

// OptimizerProfile scores RSI-vs-average and MACD-vs-signal crossovers,
// the rule set searched by the grid optimizer
func OptimizerProfile(rsiWeight, macdWeight float64) Config {
	c := baseConfig()
	c.Weights = Weights{RSI: rsiWeight, MACD: macdWeight}
	return c
}

// ScanProfile scores EMA, directional movement and Fibonacci crossings,
// the rule set used for ranking instruments
func ScanProfile() Config {
	c := baseConfig()
	c.Weights = Weights{EMA: 1.2, DI: 1.2, Fib: 1.2}
	return c
}

// DefaultConfig returns the optimizer profile with its default weights
func DefaultConfig() Config {
	return OptimizerProfile(1.8, 1.8)
}

// Validate checks the configuration for consistency
func (c Config) Validate() error {
	w := c.Weights
	for name, v := range map[string]float64{"ema": w.EMA, "rsi": w.RSI, "macd": w.MACD, "di": w.DI, "fib": w.Fib} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("weight %s must be non-negative, got %v", name, v)
		}
	}
	if c.Offsets < 1 {
		return fmt.Errorf("offsets must be at least 1, got %d", c.Offsets)
	}
	if c.MinBars <= c.Offsets {
		return fmt.Errorf("min_bars %d must exceed offsets %d", c.MinBars, c.Offsets)
	}
	if w.Fib != 0 && c.FibWindow < 1 {
		return fmt.Errorf("fib_window must be positive, got %d", c.FibWindow)
	}
	return nil
}

// Breakdown is the per-rule product across all evaluated offsets
type Breakdown struct {
	EMA  float64 `json:"ema"`
	RSI  float64 `json:"rsi"`
	MACD float64 `json:"macd"`
	DI   float64 `json:"di"`
	Fib  float64 `json:"fib"`
}

// Result is the composite points value for one window
type Result struct {
	Points    float64   `json:"points"`
	Breakdown Breakdown `json:"breakdown"`
}

// Scorer turns a bar window into a multiplicative points value.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	config Config
}

// NewScorer validates config and returns a Scorer
func NewScorer(config Config) (*Scorer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scorer config: %w", err)
	}
	return &Scorer{config: config}, nil
}

// Config returns the scorer configuration
func (s *Scorer) Config() Config {
	return s.config
}

// MinBars returns the smallest window the scorer accepts
func (s *Scorer) MinBars() int {
	return s.config.MinBars
}

// Score evaluates the window ending at the last bar
func (s *Scorer) Score(bars market.Bars) (Result, error) {
	if bars.AllPricesMissing() {
		return Result{}, ErrNoPriceData
	}
	if len(bars) < s.config.MinBars {
		return Result{}, fmt.Errorf("%w: have %d bars, need %d", ErrInsufficientHistory, len(bars), s.config.MinBars)
	}

	series := indicators.Compute(bars, s.config.Periods)
	return s.ScoreSeries(series, bars.Closes(), bars.Highs(), bars.Lows(), len(bars)-1)
}

// ScoreSeries evaluates the window [0, end] against indicator arrays that
// were computed once over a longer history. Indicators are causal, so the
// values up to end are the same as recomputing over bars[:end+1].
func (s *Scorer) ScoreSeries(series indicators.Series, closes, highs, lows []float64, end int) (Result, error) {
	if end < 0 || end >= len(closes) {
		return Result{}, fmt.Errorf("window end %d out of range [0,%d)", end, len(closes))
	}
	if allNaN(closes[:end+1]) {
		return Result{}, ErrNoPriceData
	}
	if end+1 < s.config.MinBars {
		return Result{}, fmt.Errorf("%w: have %d bars, need %d", ErrInsufficientHistory, end+1, s.config.MinBars)
	}

	c := s.config
	w := c.Weights
	bd := Breakdown{EMA: 1, RSI: 1, MACD: 1, DI: 1, Fib: 1}

	var levels []float64
	if w.Fib != 0 {
		from := end - c.FibWindow + 1
		if from < 0 {
			from = 0
		}
		levels = indicators.FibonacciLevels(highs[from:end+1], lows[from:end+1], c.FibRatios)
	}

	points := 1.0
	for off := c.Offsets - 1; off >= 0; off-- {
		i := end - off
		offset := 1.0

		if w.EMA != 0 {
			p := crossPoints(series[indicators.EMAFast], series[indicators.EMASlow], i, w.EMA)
			bd.EMA *= p
			offset *= p
		}

		if w.RSI != 0 {
			rsi, ma := series[indicators.RSIName], series[indicators.RSIMA]
			p := 1.0
			if crossedUp(rsi, ma, i) && rsi[i] < c.RSIOversold {
				p *= w.RSI
			} else if crossedDown(rsi, ma, i) && rsi[i] > c.RSIOverbought {
				p /= w.RSI
			}
			bd.RSI *= p
			offset *= p
		}

		if w.MACD != 0 {
			macd, sig := series[indicators.MACDLine], series[indicators.MACDSignal]
			p := 1.0
			if crossedUp(macd, sig, i) && macd[i] < c.MACDNeutral {
				p *= w.MACD
			} else if crossedDown(macd, sig, i) && macd[i] > c.MACDNeutral {
				p /= w.MACD
			}
			bd.MACD *= p
			offset *= p
		}

		if w.DI != 0 {
			p := crossPoints(series[indicators.PlusDIName], series[indicators.MinusDIName], i, w.DI)
			bd.DI *= p
			offset *= p
		}

		if w.Fib != 0 {
			p := 1.0
			for _, level := range levels {
				if closes[i] > level && level > closes[i-1] {
					p *= w.Fib
				} else if closes[i] < level && level < closes[i-1] {
					p /= w.Fib
				}
			}
			bd.Fib *= p
			offset *= p
		}

		points *= offset
	}

	return Result{Points: points, Breakdown: bd}, nil
}

// crossPoints multiplies by k on an upward cross of a over b and divides on a downward one
func crossPoints(a, b []float64, i int, k float64) float64 {
	switch {
	case crossedUp(a, b, i):
		return k
	case crossedDown(a, b, i):
		return 1 / k
	}
	return 1
}

// Comparisons are strict so NaN operands never register a cross.
func crossedUp(a, b []float64, i int) bool {
	if i < 1 || i >= len(a) || i >= len(b) {
		return false
	}
	return a[i] > b[i] && a[i-1] < b[i-1]
}

func crossedDown(a, b []float64, i int) bool {
	if i < 1 || i >= len(a) || i >= len(b) {
		return false
	}
	return a[i] < b[i] && a[i-1] > b[i-1]
}

func allNaN(values []float64) bool {
	for _, v := range values {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}
