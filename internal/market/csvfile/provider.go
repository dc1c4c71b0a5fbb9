package csvfile

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sawpanic/pointrun/internal/market"
)

const providerName = "csv"

// Provider reads Binance kline exports from <dir>/<SYMBOL>_<interval>.csv.
// Columns: open_time_ms, open, high, low, close, volume[, close_time_ms, ...].
// Files without close_time get one derived from the interval.
type Provider struct {
	dir string
}

func NewProvider(dir string) *Provider {
	return &Provider{dir: dir}
}

// Path returns the file consulted for a symbol/interval
func (p *Provider) Path(symbol, interval string) string {
	return filepath.Join(p.dir, fmt.Sprintf("%s_%s.csv", strings.ToUpper(symbol), interval))
}

// FetchBars loads the file and keeps bars with start <= open time < end
func (p *Provider) FetchBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]market.Bar, error) {
	step, err := market.ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	path := p.Path(symbol, interval)
	f, err := os.Open(path)
	if err != nil {
		return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "request", Err: err}
	}
	defer f.Close()

	bars, err := Read(f, step)
	if err != nil {
		return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "decode", Err: fmt.Errorf("%s: %w", path, err)}
	}

	out := make([]market.Bar, 0, len(bars))
	for _, bar := range bars {
		if bar.OpenTime.Before(start) || !bar.OpenTime.Before(end) {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

// Read decodes kline rows, transparently handling UTF-16 exports with a BOM
// and an optional header row. Rows without close_time close one millisecond
// before the next period; a zero step makes that column mandatory.
func Read(r io.Reader, step time.Duration) ([]market.Bar, error) {
	br := bufio.NewReader(r)
	var reader io.Reader = br
	if bom, _ := br.Peek(2); len(bom) == 2 && ((bom[0] == 0xFF && bom[1] == 0xFE) || (bom[0] == 0xFE && bom[1] == 0xFF)) {
		reader = transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
	}

	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var bars []market.Bar
	line := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		record[0] = strings.TrimPrefix(record[0], "\ufeff")
		if line == 1 && !isNumeric(record[0]) {
			continue // header
		}

		bar, err := parseRecord(record, step)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}

	if err := market.Bars(bars).Validate(); err != nil {
		return nil, err
	}
	return bars, nil
}

func parseRecord(record []string, step time.Duration) (market.Bar, error) {
	if len(record) < 6 {
		return market.Bar{}, fmt.Errorf("expected at least 6 columns, got %d", len(record))
	}

	openMs, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("open time: %w", err)
	}

	var ohlcv [5]float64
	for i := range ohlcv {
		v, err := strconv.ParseFloat(strings.Trim(strings.TrimSpace(record[i+1]), `"`), 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		ohlcv[i] = v
	}

	bar := market.Bar{
		OpenTime: time.UnixMilli(openMs).UTC(),
		Open:     ohlcv[0],
		High:     ohlcv[1],
		Low:      ohlcv[2],
		Close:    ohlcv[3],
		Volume:   ohlcv[4],
	}
	switch {
	case len(record) > 6:
		closeMs, err := strconv.ParseInt(strings.TrimSpace(record[6]), 10, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("close time: %w", err)
		}
		bar.CloseTime = time.UnixMilli(closeMs).UTC()
	case step > 0:
		bar.CloseTime = bar.OpenTime.Add(step - time.Millisecond)
	default:
		return market.Bar{}, errors.New("close time missing and interval unknown")
	}

	if err := bar.Check(); err != nil {
		return market.Bar{}, err
	}
	return bar, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}
