package signals

import (
	"sort"
	"time"

	"github.com/sawpanic/pointrun/internal/domain/scoring"
	"github.com/sawpanic/pointrun/internal/market"
)

// Ranked is one instrument's current composite score
type Ranked struct {
	Symbol    string            `json:"symbol"`
	Time      time.Time         `json:"time"`
	Price     float64           `json:"price"`
	Points    float64           `json:"points"`
	Breakdown scoring.Breakdown `json:"breakdown"`
	Err       error             `json:"-"`
}

// Rank scores the latest window of each instrument. Scored instruments come
// first ordered by points descending; instruments that could not be scored
// follow in symbol order with Err set.
func Rank(scorer *scoring.Scorer, candles map[string]market.Bars) []Ranked {
	out := make([]Ranked, 0, len(candles))
	for symbol, bars := range candles {
		r := Ranked{Symbol: symbol}
		res, err := scorer.Score(bars)
		if err != nil {
			r.Err = err
			out = append(out, r)
			continue
		}
		last := bars[len(bars)-1]
		r.Time = last.OpenTime
		r.Price = last.Close
		r.Points = res.Points
		r.Breakdown = res.Breakdown
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if a.Err == nil && a.Points != b.Points {
			return a.Points > b.Points
		}
		return a.Symbol < b.Symbol
	})
	return out
}
