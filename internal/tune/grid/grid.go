package grid

import (
	"fmt"

	"github.com/sawpanic/pointrun/internal/domain/scoring"
)

// ParameterSet is one immutable optimizer trial configuration
type ParameterSet struct {
	LongThreshold  float64         `json:"long_threshold" yaml:"long_threshold"`
	ShortThreshold float64         `json:"short_threshold" yaml:"short_threshold"`
	Weights        scoring.Weights `json:"weights" yaml:"weights"`
}

func (p ParameterSet) String() string {
	return fmt.Sprintf("long>=%.4g short<=%.4g rsi=%.4g macd=%.4g ema=%.4g di=%.4g fib=%.4g",
		p.LongThreshold, p.ShortThreshold, p.Weights.RSI, p.Weights.MACD, p.Weights.EMA, p.Weights.DI, p.Weights.Fib)
}

// Grid lists candidate values per tunable. An empty axis contributes the
// Base value only.
type Grid struct {
	Base            ParameterSet `yaml:"base"`
	LongThresholds  []float64    `yaml:"long_thresholds"`
	ShortThresholds []float64    `yaml:"short_thresholds"`
	RSIWeights      []float64    `yaml:"rsi_weights"`
	MACDWeights     []float64    `yaml:"macd_weights"`
	EMAWeights      []float64    `yaml:"ema_weights"`
	DIWeights       []float64    `yaml:"di_weights"`
	FibWeights      []float64    `yaml:"fib_weights"`
}

// DefaultGrid searches long thresholds and the RSI/MACD factors
func DefaultGrid() Grid {
	return Grid{
		Base: ParameterSet{
			LongThreshold:  2,
			ShortThreshold: 0.5,
			Weights:        scoring.Weights{RSI: 1.8, MACD: 1.8},
		},
		LongThresholds:  []float64{1.2, 1.8},
		ShortThresholds: []float64{0.5},
		RSIWeights:      []float64{1.8, 1.2},
		MACDWeights:     []float64{1.8, 1.2},
	}
}

// Validate rejects negative weights and inverted thresholds
func (g Grid) Validate() error {
	for _, p := range g.Combinations() {
		if p.LongThreshold <= p.ShortThreshold {
			return fmt.Errorf("long threshold %v must exceed short threshold %v", p.LongThreshold, p.ShortThreshold)
		}
		w := p.Weights
		if w.RSI < 0 || w.MACD < 0 || w.EMA < 0 || w.DI < 0 || w.Fib < 0 {
			return fmt.Errorf("negative weight in %s", p)
		}
	}
	return nil
}

// Size returns the number of combinations
func (g Grid) Size() int {
	n := 1
	for _, axis := range g.axes() {
		if len(axis) > 0 {
			n *= len(axis)
		}
	}
	return n
}

func (g Grid) axes() [][]float64 {
	return [][]float64{g.LongThresholds, g.ShortThresholds, g.RSIWeights, g.MACDWeights, g.EMAWeights, g.DIWeights, g.FibWeights}
}

// Combinations enumerates the Cartesian product in lexicographic order:
// long threshold varies slowest, then short, rsi, macd, ema, di, fib.
func (g Grid) Combinations() []ParameterSet {
	axisOr := func(axis []float64, base float64) []float64 {
		if len(axis) == 0 {
			return []float64{base}
		}
		return axis
	}
	b := g.Base

	out := make([]ParameterSet, 0, g.Size())
	for _, long := range axisOr(g.LongThresholds, b.LongThreshold) {
		for _, short := range axisOr(g.ShortThresholds, b.ShortThreshold) {
			for _, rsi := range axisOr(g.RSIWeights, b.Weights.RSI) {
				for _, macd := range axisOr(g.MACDWeights, b.Weights.MACD) {
					for _, ema := range axisOr(g.EMAWeights, b.Weights.EMA) {
						for _, di := range axisOr(g.DIWeights, b.Weights.DI) {
							for _, fib := range axisOr(g.FibWeights, b.Weights.Fib) {
								out = append(out, ParameterSet{
									LongThreshold:  long,
									ShortThreshold: short,
									Weights:        scoring.Weights{EMA: ema, RSI: rsi, MACD: macd, DI: di, Fib: fib},
								})
							}
						}
					}
				}
			}
		}
	}
	return out
}
