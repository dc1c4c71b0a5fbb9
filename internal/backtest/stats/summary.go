package stats

import (
	"errors"
	"math"

	"github.com/sawpanic/pointrun/internal/backtest/sim"
)

// ErrEmptyLedger is returned when there are no trades to summarize
var ErrEmptyLedger = errors.New("empty trade ledger")

// Extreme is a best or worst trade
type Extreme struct {
	PnL         float64 `json:"pnl"`
	HoldingDays int     `json:"holding_days"`
}

// Summary aggregates one or more trade ledgers
type Summary struct {
	TradeCount             int     `json:"trade_count"`
	Instruments            int     `json:"instruments"`
	AvgPnL                 float64 `json:"avg_pnl"`
	WinRate                float64 `json:"win_rate"`
	Best                   Extreme `json:"best"`
	Worst                  Extreme `json:"worst"`
	AvgTradesPerInstrument float64 `json:"avg_trades_per_instrument"`
	MaxConsecutiveWins     int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses   int     `json:"max_consecutive_losses"`
	AvgHoldingDays         float64 `json:"avg_holding_days"`
	AvgBarsPerTrade        float64 `json:"avg_bars_per_trade"`
}

// HoldingDays returns the whole days between entry and exit
func HoldingDays(t sim.Trade) int {
	return int(math.Floor(t.ExitTime.Sub(t.EntryTime).Hours() / 24))
}

// Summarize reduces trades from one or more instruments. A trade with
// pnl > 0 is a win; every other trade counts as a loss.
func Summarize(trades []sim.Trade, instruments int, barsPerDay float64) (Summary, error) {
	if len(trades) == 0 {
		return Summary{}, ErrEmptyLedger
	}
	if instruments < 1 {
		instruments = 1
	}

	s := Summary{
		TradeCount:  len(trades),
		Instruments: instruments,
		Best:        Extreme{PnL: math.Inf(-1)},
		Worst:       Extreme{PnL: math.Inf(1)},
	}

	var sumPnL float64
	var sumDays, wins, streak int
	streakWin := false
	for i, t := range trades {
		days := HoldingDays(t)
		sumPnL += t.PnL
		sumDays += days

		// first occurrence wins ties
		if t.PnL > s.Best.PnL {
			s.Best = Extreme{PnL: t.PnL, HoldingDays: days}
		}
		if t.PnL < s.Worst.PnL {
			s.Worst = Extreme{PnL: t.PnL, HoldingDays: days}
		}

		win := t.PnL > 0
		if win {
			wins++
		}
		if i == 0 || win != streakWin {
			s.flushStreak(streakWin, streak)
			streak = 0
			streakWin = win
		}
		streak++
	}
	s.flushStreak(streakWin, streak)

	n := float64(len(trades))
	s.AvgPnL = sumPnL / n
	s.WinRate = float64(wins) / n
	s.AvgTradesPerInstrument = n / float64(instruments)
	s.AvgHoldingDays = float64(sumDays) / n
	s.AvgBarsPerTrade = s.AvgHoldingDays * barsPerDay
	return s, nil
}

func (s *Summary) flushStreak(win bool, n int) {
	if win {
		if n > s.MaxConsecutiveWins {
			s.MaxConsecutiveWins = n
		}
	} else if n > s.MaxConsecutiveLosses {
		s.MaxConsecutiveLosses = n
	}
}

// AvgHoldingDays returns the mean whole-day holding period, or 0 for no trades
func AvgHoldingDays(trades []sim.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	total := 0
	for _, t := range trades {
		total += HoldingDays(t)
	}
	return float64(total) / float64(len(trades))
}
