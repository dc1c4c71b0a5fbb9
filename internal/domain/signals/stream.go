package signals

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sawpanic/pointrun/internal/domain/indicators"
	"github.com/sawpanic/pointrun/internal/domain/scoring"
	"github.com/sawpanic/pointrun/internal/market"
)

// DefaultMinPeriods is the first window length the builder evaluates
const DefaultMinPeriods = 20

// Mode selects how indicator history is produced for each window
type Mode int

const (
	// Recompute rebuilds every indicator from scratch for each expanding
	// window. Cost is O(n^2) in the number of bars.
	Recompute Mode = iota
	// Precomputed computes indicators once over the full history and reads
	// each window's prefix. Output is identical because indicators are causal.
	Precomputed
)

func (m Mode) String() string {
	switch m {
	case Recompute:
		return "recompute"
	case Precomputed:
		return "precomputed"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode converts a config string into a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "recompute":
		return Recompute, nil
	case "precomputed", "cached":
		return Precomputed, nil
	}
	return Recompute, fmt.Errorf("unknown signal mode %q", s)
}

// Stream holds the points series and its long/short triggers, index-aligned with the bars
type Stream struct {
	Points []float64
	Long   []bool
	Short  []bool
}

// Len returns the number of bars covered
func (s Stream) Len() int {
	return len(s.Points)
}

// Builder applies a Scorer over an expanding window
type Builder struct {
	Scorer         *scoring.Scorer
	LongThreshold  float64
	ShortThreshold float64
	MinPeriods     int
	Mode           Mode
}

// Build scores every expanding window bars[:i+1] and thresholds the result.
// Windows the scorer cannot evaluate yield NaN points and no signal.
func (b *Builder) Build(bars market.Bars) (Stream, error) {
	if b.Scorer == nil {
		return Stream{}, errors.New("signal builder has no scorer")
	}
	if err := bars.Validate(); err != nil {
		return Stream{}, fmt.Errorf("invalid bars: %w", err)
	}

	minPeriods := b.MinPeriods
	if minPeriods < 1 {
		minPeriods = DefaultMinPeriods
	}

	n := len(bars)
	points := make([]float64, n)
	for i := range points {
		points[i] = math.NaN()
	}

	var (
		series              indicators.Series
		closes, highs, lows []float64
	)
	if b.Mode == Precomputed {
		series = indicators.Compute(bars, b.Scorer.Config().Periods)
		closes, highs, lows = bars.Closes(), bars.Highs(), bars.Lows()
	}

	for i := minPeriods - 1; i < n; i++ {
		var (
			res scoring.Result
			err error
		)
		if b.Mode == Precomputed {
			res, err = b.Scorer.ScoreSeries(series, closes, highs, lows, i)
		} else {
			res, err = b.Scorer.Score(bars[:i+1])
		}
		if err != nil {
			if errors.Is(err, scoring.ErrInsufficientHistory) || errors.Is(err, scoring.ErrNoPriceData) {
				continue
			}
			return Stream{}, fmt.Errorf("score window ending at bar %d: %w", i, err)
		}
		points[i] = res.Points
	}

	long, short := Triggers(points, b.LongThreshold, b.ShortThreshold)
	return Stream{Points: points, Long: long, Short: short}, nil
}

// Triggers thresholds a points series: long when points >= longThreshold,
// short when points <= shortThreshold. NaN points trigger neither.
func Triggers(points []float64, longThreshold, shortThreshold float64) (long, short []bool) {
	long = make([]bool, len(points))
	short = make([]bool, len(points))
	for i, p := range points {
		long[i] = p >= longThreshold
		short[i] = p <= shortThreshold
	}
	return long, short
}
