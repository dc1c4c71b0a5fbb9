package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/sawpanic/pointrun/internal/backtest/sim"
	"github.com/sawpanic/pointrun/internal/backtest/stats"
	"github.com/sawpanic/pointrun/internal/domain/signals"
	"github.com/sawpanic/pointrun/internal/tune/grid"
)

// TimeLayout is used for every timestamp rendered by this package
const TimeLayout = "2006-01-02 15:04:05"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// WriteTrades renders a trade ledger, one row per closed trade.
// Bars is derived from whole holding days and barsPerDay.
func WriteTrades(w io.Writer, trades []sim.Trade, barsPerDay float64) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ENTRY\tEXIT\tSIDE\tENTRY PRICE\tEXIT PRICE\tDAYS\tBARS\tPNL %\tENTRY BAL\tEXIT BAL\tPOINTS")
	for _, t := range trades {
		days := stats.HoldingDays(t)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f\t%d\t%.0f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			t.EntryTime.UTC().Format(TimeLayout),
			t.ExitTime.UTC().Format(TimeLayout),
			t.Side,
			t.EntryPrice,
			t.ExitPrice,
			days,
			math.Floor(float64(days)*barsPerDay),
			t.PnL*100,
			t.EntryBalance,
			t.ExitBalance,
			t.EntryPoints,
		)
	}
	return tw.Flush()
}

// WriteSummary renders the ledger statistics block
func WriteSummary(w io.Writer, s stats.Summary) error {
	tw := newTable(w)
	rows := []struct {
		label string
		value string
	}{
		{"Trades", fmt.Sprintf("%d", s.TradeCount)},
		{"Instruments", fmt.Sprintf("%d", s.Instruments)},
		{"Avg trades/instrument", fmt.Sprintf("%.2f", s.AvgTradesPerInstrument)},
		{"Avg PnL", fmt.Sprintf("%.2f%%", s.AvgPnL*100)},
		{"Win rate", fmt.Sprintf("%.1f%%", s.WinRate*100)},
		{"Best trade", fmt.Sprintf("%.2f%% (%d days)", s.Best.PnL*100, s.Best.HoldingDays)},
		{"Worst trade", fmt.Sprintf("%.2f%% (%d days)", s.Worst.PnL*100, s.Worst.HoldingDays)},
		{"Max consecutive wins", fmt.Sprintf("%d", s.MaxConsecutiveWins)},
		{"Max consecutive losses", fmt.Sprintf("%d", s.MaxConsecutiveLosses)},
		{"Avg holding days", fmt.Sprintf("%.2f", s.AvgHoldingDays)},
		{"Avg bars/trade", fmt.Sprintf("%.1f", s.AvgBarsPerTrade)},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r.label, r.value)
	}
	return tw.Flush()
}

// WriteRanking renders the top n fitness records; n <= 0 renders all
func WriteRanking(w io.Writer, records []grid.FitnessRecord, n int) error {
	if n <= 0 || n > len(records) {
		n = len(records)
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "RANK\tSCORE\tLONG\tSHORT\tRSI\tMACD\tEMA\tDI\tFIB\tTRADES\tWIN %\tMEDIAN PNL %\tAVG DAYS")
	for i, r := range records[:n] {
		p := r.Params
		fmt.Fprintf(tw, "%d\t%.4f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%.1f\t%.2f\t%.2f\n",
			i+1, r.Score,
			p.LongThreshold, p.ShortThreshold,
			p.Weights.RSI, p.Weights.MACD, p.Weights.EMA, p.Weights.DI, p.Weights.Fib,
			r.TotalTrades, r.ProfitableRatio*100, r.PnL.Median*100, r.AvgHoldingDays,
		)
	}
	return tw.Flush()
}

// WriteScan renders a snapshot ranking; failed instruments list their error
func WriteScan(w io.Writer, ranked []signals.Ranked) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "SYMBOL\tTIME\tPRICE\tPOINTS\tEMA\tRSI\tMACD\tDI\tFIB")
	for _, r := range ranked {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\terror: %v\t\t\t\t\t\n", r.Symbol, r.Err)
			continue
		}
		b := r.Breakdown
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			r.Symbol, r.Time.UTC().Format(TimeLayout), r.Price, r.Points,
			b.EMA, b.RSI, b.MACD, b.DI, b.Fib,
		)
	}
	return tw.Flush()
}
