package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pointrun/internal/tune/grid"
)

var csvStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// writeKlines writes n hourly bars following a slow sine wave
func writeKlines(t *testing.T, dir, symbol string, n int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("open_time,open,high,low,close,volume,close_time\n")
	prev := 100.0
	for i := 0; i < n; i++ {
		open := csvStart.Add(time.Duration(i) * time.Hour)
		closePrice := 100 + 20*math.Sin(float64(i)/15)
		high := math.Max(prev, closePrice) + 0.5
		low := math.Min(prev, closePrice) - 0.5
		fmt.Fprintf(&b, "%d,%.4f,%.4f,%.4f,%.4f,10,%d\n",
			open.UnixMilli(), prev, high, low, closePrice, open.Add(time.Hour-time.Millisecond).UnixMilli())
		prev = closePrice
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, symbol+"_1h.csv"), []byte(b.String()), 0o600))
}

func setup(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()
	writeKlines(t, dir, "BTCUSDT", 420)
	writeKlines(t, dir, "ETHUSDT", 420)

	configPath = filepath.Join(dir, "pointrun.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(`
data:
  source: csv
  csv_dir: %s
  symbols: [BTCUSDT, ETHUSDT]
  interval: 1h
  start: "2024-01-01"
  end: "2024-01-19"
  mode: precomputed
optimizer:
  parallelism: 2
`, dir)), 0o600))
	return dir, configPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error", "--log-format", "json"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"backtest", "optimize", "scan", "monitor"} {
		assert.True(t, names[want], want)
	}
	for _, flag := range []string{"config", "env-file", "log-level", "log-format"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestBacktestFromCSV(t *testing.T) {
	dir, configPath := setup(t)
	tradesPath := filepath.Join(dir, "trades.csv")

	out, err := execute(t, "backtest", "--config", configPath, "--trades-csv", tradesPath)
	require.NoError(t, err)
	assert.Contains(t, out, "BTCUSDT  bars=")
	assert.Contains(t, out, "ETHUSDT  bars=")

	f, err := os.Open(tradesPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, "symbol", rows[0][0])
}

func TestBacktestSkipFailed(t *testing.T) {
	_, configPath := setup(t)

	_, err := execute(t, "backtest", "--config", configPath, "--symbols", "BTCUSDT,NOPEUSDT")
	require.Error(t, err)

	out, err := execute(t, "backtest", "--config", configPath, "--symbols", "BTCUSDT,NOPEUSDT", "--skip-failed")
	require.NoError(t, err)
	assert.Contains(t, out, "NOPEUSDT: skipped")
}

func TestBacktestRejectsInvalidConfig(t *testing.T) {
	_, configPath := setup(t)
	_, err := execute(t, "backtest", "--config", configPath, "--start", "2024-02-01", "--end", "2024-01-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestOptimizeFromCSV(t *testing.T) {
	dir, configPath := setup(t)
	reportPath := filepath.Join(dir, "report.md")

	_, err := execute(t, "optimize", "--config", configPath, "--report", reportPath)
	if err != nil {
		require.True(t, errors.Is(err, grid.ErrNoViableCandidate), err.Error())
	}

	data, readErr := os.ReadFile(reportPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "| **Trials** | 4 |")
}

func TestScanFromCSV(t *testing.T) {
	_, configPath := setup(t)

	out, err := execute(t, "scan", "--config", configPath, "--at", "2024-01-18", "--symbols", "BTCUSDT,ETHUSDT,NOPEUSDT")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "SYMBOL"))
	assert.Contains(t, lines[3], "NOPEUSDT")
	assert.Contains(t, lines[3], "error:")
}

func TestScanWindow(t *testing.T) {
	at := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	start, end, err := scanWindow("4h", at, 6)
	require.NoError(t, err)
	assert.Equal(t, at, end)
	assert.Equal(t, at.Add(-24*time.Hour), start)

	_, _, err = scanWindow("7m", at, 6)
	assert.Error(t, err)
}
