package clickhouse

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/sawpanic/pointrun/internal/market"
)

const providerName = "clickhouse"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds ClickHouse connection settings
type Config struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DefaultConfig returns settings for a local ohlcv store
func DefaultConfig() Config {
	return Config{
		Addr:     "localhost:9000",
		Database: "backtest",
		Table:    "ohlcv_raw",
		Username: "default",
	}
}

type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

type queryer interface {
	query(ctx context.Context, q string, args ...any) (rows, error)
}

type connQueryer struct{ conn driver.Conn }

func (c connQueryer) query(ctx context.Context, q string, args ...any) (rows, error) {
	return c.conn.Query(ctx, q, args...)
}

// Provider serves bars from a ClickHouse OHLCV table
type Provider struct {
	config Config
	conn   driver.Conn
	q      queryer
}

// NewProvider opens a native-protocol connection
func NewProvider(config Config) (*Provider, error) {
	if !identifier.MatchString(config.Database) || !identifier.MatchString(config.Table) {
		return nil, fmt.Errorf("invalid clickhouse database/table %q.%q", config.Database, config.Table)
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{config.Addr},
		Auth: clickhouse.Auth{Database: config.Database, Username: config.Username, Password: config.Password},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse: %w", err)
	}

	return &Provider{config: config, conn: conn, q: connQueryer{conn: conn}}, nil
}

// Close releases the underlying connection
func (p *Provider) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

func (p *Provider) selectQuery() string {
	return fmt.Sprintf(`
SELECT open_time_ms, open, high, low, close, volume, close_time_ms
FROM %s.%s
WHERE symbol = ? AND interval = ? AND open_time_ms >= ? AND open_time_ms < ?
ORDER BY open_time_ms`, p.config.Database, p.config.Table)
}

// FetchBars reads bars with start <= open time < end in time order
func (p *Provider) FetchBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]market.Bar, error) {
	symbol = strings.ToUpper(symbol)

	rs, err := p.q.query(ctx, p.selectQuery(), symbol, interval, uint64(start.UnixMilli()), uint64(end.UnixMilli()))
	if err != nil {
		return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "request", Err: err}
	}
	defer rs.Close()

	var bars []market.Bar
	for rs.Next() {
		var (
			openMs, closeMs                uint64
			open, high, low, close, volume float64
		)
		if err := rs.Scan(&openMs, &open, &high, &low, &close, &volume, &closeMs); err != nil {
			return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "decode", Err: err}
		}
		bar := market.Bar{
			OpenTime:  time.UnixMilli(int64(openMs)).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			CloseTime: time.UnixMilli(int64(closeMs)).UTC(),
		}
		if err := bar.Check(); err != nil {
			return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "decode",
				Err: fmt.Errorf("bar %d: %w", len(bars), err)}
		}
		bars = append(bars, bar)
	}
	if err := rs.Err(); err != nil {
		return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "request", Err: err}
	}

	if err := market.Bars(bars).Validate(); err != nil {
		return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "decode", Err: err}
	}
	return bars, nil
}
