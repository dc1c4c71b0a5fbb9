package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sawpanic/pointrun/internal/backtest/stats"
	"github.com/sawpanic/pointrun/internal/persistence"
)

var tradeHeader = []string{
	"symbol", "entry_time", "exit_time", "side", "entry_price", "exit_price",
	"holding_days", "pnl", "entry_balance", "exit_balance", "entry_points",
}

// ExportTradesCSV writes a ledger with full float precision
func ExportTradesCSV(w io.Writer, trades []persistence.SymbolTrade) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(tradeHeader); err != nil {
		return err
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, t := range trades {
		row := []string{
			t.Symbol,
			t.EntryTime.UTC().Format(TimeLayout),
			t.ExitTime.UTC().Format(TimeLayout),
			string(t.Side),
			f(t.EntryPrice),
			f(t.ExitPrice),
			strconv.Itoa(stats.HoldingDays(t.Trade)),
			f(t.PnL),
			f(t.EntryBalance),
			f(t.ExitBalance),
			f(t.EntryPoints),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteTradesFile exports a ledger to path, truncating any existing file
func WriteTradesFile(path string, trades []persistence.SymbolTrade) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trades file: %w", err)
	}
	if err := ExportTradesCSV(file, trades); err != nil {
		file.Close()
		return fmt.Errorf("failed to write trades file: %w", err)
	}
	return file.Close()
}
