package grid

import (
	"errors"
	"fmt"

	"github.com/sawpanic/pointrun/internal/backtest/sim"
	"github.com/sawpanic/pointrun/internal/backtest/stats"
)

var (
	// ErrNonViable marks a trial excluded from ranking
	ErrNonViable = errors.New("non-viable parameter set")
	// ErrNoViableCandidate is returned when every trial was non-viable or failed
	ErrNoViableCandidate = errors.New("no viable parameter set")
)

// DefaultMaxAvgHoldingDays is the holding period ceiling for a viable trial
const DefaultMaxAvgHoldingDays = 45

// InstrumentOutcome is one instrument's ledger within a trial
type InstrumentOutcome struct {
	Symbol string      `json:"symbol"`
	Trades []sim.Trade `json:"trades"`
}

// TrialOutcome is everything an evaluator produced for one ParameterSet
type TrialOutcome struct {
	Instruments []InstrumentOutcome `json:"instruments"`
}

// Trades concatenates every instrument's ledger
func (o TrialOutcome) Trades() []sim.Trade {
	var all []sim.Trade
	for _, in := range o.Instruments {
		all = append(all, in.Trades...)
	}
	return all
}

// Spread is a median/min/max triple
type Spread struct {
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func spreadOf(values []float64) Spread {
	min, max := stats.MinMax(values)
	return Spread{Median: stats.Median(values), Min: min, Max: max}
}

// FitnessRecord scores one viable ParameterSet
type FitnessRecord struct {
	Score           float64      `json:"score"`
	Params          ParameterSet `json:"params"`
	TradeCount      Spread       `json:"trade_count"`
	ProfitableRatio float64      `json:"profitable_ratio"`
	PnL             Spread       `json:"pnl"`
	TotalTrades     int          `json:"total_trades"`
	AvgHoldingDays  float64      `json:"avg_holding_days"`
}

// Fitness computes the composite fitness of a trial: the profitable trade
// ratio times the normalized median pnl times the normalized median trade
// count across instruments. Trials with no trades or an average holding
// period above maxAvgHoldingDays are non-viable.
func Fitness(params ParameterSet, outcome TrialOutcome, maxAvgHoldingDays float64) (FitnessRecord, error) {
	trades := outcome.Trades()
	if len(trades) == 0 {
		return FitnessRecord{}, fmt.Errorf("%w: no trades", ErrNonViable)
	}

	avgDays := stats.AvgHoldingDays(trades)
	if avgDays > maxAvgHoldingDays {
		return FitnessRecord{}, fmt.Errorf("%w: average holding %.1f days exceeds %.1f", ErrNonViable, avgDays, maxAvgHoldingDays)
	}

	pnls := make([]float64, len(trades))
	profitable := 0
	for i, t := range trades {
		pnls[i] = t.PnL
		if t.PnL > 0 {
			profitable++
		}
	}

	counts := make([]int, len(outcome.Instruments))
	for i, in := range outcome.Instruments {
		counts[i] = len(in.Trades)
	}

	rec := FitnessRecord{
		Params:          params,
		TradeCount:      spreadOf(stats.Ints(counts)),
		ProfitableRatio: float64(profitable) / float64(len(trades)),
		PnL:             spreadOf(pnls),
		TotalTrades:     len(trades),
		AvgHoldingDays:  avgDays,
	}

	normPnL := stats.Normalize(rec.PnL.Median, rec.PnL.Min, rec.PnL.Max)
	normCount := stats.Normalize(rec.TradeCount.Median, rec.TradeCount.Min, rec.TradeCount.Max)
	rec.Score = rec.ProfitableRatio * normPnL * normCount
	return rec, nil
}
