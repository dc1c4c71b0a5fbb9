package csvfile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/sawpanic/pointrun/internal/backtest/sim"
	"github.com/sawpanic/pointrun/internal/domain/signals"
	"github.com/sawpanic/pointrun/internal/market"
)

const sample = `open_time,open,high,low,close,volume,close_time,quote_asset_volume,number_of_trades,taker_buy_base,taker_buy_quote,ignore
1609459200000,100,110,95,105,1000,1609545599999,0,0,0,0,0
1609545600000,105,112,101,111,900,1609631999999,0,0,0,0,0
1609632000000,111,115,108,109,800,1609718399999,0,0,0,0,0
`

func TestRead_PlainWithHeader(t *testing.T) {
	bars, err := Read(strings.NewReader(sample), 0)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), bars[0].OpenTime)
	assert.Equal(t, 105.0, bars[0].Close)
	assert.Equal(t, 110.0, bars[0].High)
	assert.Equal(t, time.Date(2021, 1, 1, 23, 59, 59, 999000000, time.UTC), bars[0].CloseTime)
}

func TestRead_UTF16WithBOM(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, err := enc.Bytes([]byte(sample))
	require.NoError(t, err)

	bars, err := Read(bytes.NewReader(encoded), 0)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, 109.0, bars[2].Close)
}

func TestRead_RejectsUnorderedRows(t *testing.T) {
	rows := "1609545600000,1,1,1,1,1\n1609459200000,1,1,1,1,1\n"
	_, err := Read(strings.NewReader(rows), time.Hour)
	assert.Error(t, err)
}

func TestRead_RejectsBadNumber(t *testing.T) {
	rows := "1609459200000,1,x,1,1,1\n"
	_, err := Read(strings.NewReader(rows), time.Hour)
	assert.Error(t, err)
}

func TestProvider_FetchBars_FiltersRange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BTCUSDT_1d.csv"), []byte(sample), 0o644))

	p := NewProvider(dir)
	bars, err := p.FetchBars(context.Background(), "btcusdt", "1d",
		time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 111.0, bars[0].Close)
}

func TestProvider_MissingFileIsUpstreamError(t *testing.T) {
	p := NewProvider(t.TempDir())
	_, err := p.FetchBars(context.Background(), "ETHUSDT", "1d", time.Time{}, time.Now())
	require.Error(t, err)
	assert.True(t, market.IsUpstream(err))
}

const sixColumns = `1609459200000,100,101,99,100,10
1609462800000,100,102,99,101,10
1609466400000,101,103,100,102,10
`

func TestRead_SixColumnsDeriveCloseTime(t *testing.T) {
	bars, err := Read(strings.NewReader(sixColumns), time.Hour)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	for _, bar := range bars {
		assert.Equal(t, bar.OpenTime.Add(time.Hour-time.Millisecond), bar.CloseTime)
	}
}

func TestRead_SixColumnsNeedInterval(t *testing.T) {
	_, err := Read(strings.NewReader(sixColumns), 0)
	assert.Error(t, err)
}

func TestRead_RejectsBadCloseTime(t *testing.T) {
	tests := map[string]string{
		"unparsable":      "1609459200000,1,1,1,1,1,soon\n",
		"before open":     "1609459200000,1,1,1,1,1,1609459199999\n",
		"equal open time": "1609459200000,1,1,1,1,1,1609459200000\n",
	}
	for name, rows := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(rows), time.Hour)
			assert.Error(t, err)
		})
	}
}

func TestRead_RejectsNonFiniteValues(t *testing.T) {
	tests := map[string]string{
		"nan close":  "1609459200000,1,1,1,NaN,1\n",
		"inf high":   "1609459200000,1,+Inf,1,1,1\n",
		"inf volume": "1609459200000,1,1,1,1,-Inf\n",
	}
	for name, rows := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(rows), time.Hour)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not finite")
		})
	}
}

func TestProvider_NonFiniteCloseIsDecodeError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BTCUSDT_1h.csv"), []byte("1609459200000,1,1,1,NaN,1\n"), 0o644))

	_, err := NewProvider(dir).FetchBars(context.Background(), "BTCUSDT", "1h", time.Time{}, time.Now())
	require.Error(t, err)
	var ue *market.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "decode", ue.Op)
}

func TestProvider_SimulatedTradesExitAfterEntry(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BTCUSDT_1h.csv"), []byte(sixColumns), 0o644))

	bars, err := NewProvider(dir).FetchBars(context.Background(), "BTCUSDT", "1h",
		time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, bars, 3)

	points := []float64{2, 1, 0.1}
	long, short := signals.Triggers(points, 1.2, 0.5)
	simulator, err := sim.NewSimulator(sim.DefaultConfig())
	require.NoError(t, err)

	res, err := simulator.Run(bars, signals.Stream{Points: points, Long: long, Short: short})
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.True(t, tr.ExitTime.After(tr.EntryTime))
	assert.Equal(t, time.Date(2021, 1, 1, 2, 59, 59, 999000000, time.UTC), tr.ExitTime)
}
