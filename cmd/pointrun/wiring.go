package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/sawpanic/pointrun/internal/config"
	"github.com/sawpanic/pointrun/internal/infrastructure/db"
	"github.com/sawpanic/pointrun/internal/market"
	"github.com/sawpanic/pointrun/internal/market/binance"
	"github.com/sawpanic/pointrun/internal/market/cache"
	"github.com/sawpanic/pointrun/internal/market/clickhouse"
	"github.com/sawpanic/pointrun/internal/market/csvfile"
)

// dataFlags are the window overrides shared by backtest, optimize and scan
type dataFlags struct {
	symbols  string
	interval string
	start    string
	end      string
	source   string
}

func (f *dataFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.symbols, "symbols", "", "Comma-separated symbols (overrides data.symbols)")
	fs.StringVar(&f.interval, "interval", "", "Bar interval, e.g. 1h or 4h (overrides data.interval)")
	fs.StringVar(&f.start, "start", "", "Window start, YYYY-MM-DD or RFC3339 (overrides data.start)")
	fs.StringVar(&f.end, "end", "", "Window end, exclusive (overrides data.end)")
	fs.StringVar(&f.source, "source", "", "Data source: binance, csv or clickhouse (overrides data.source)")
}

func (f *dataFlags) apply(cfg *config.Config) {
	if f.symbols != "" {
		cfg.Data.Symbols = config.SplitSymbols(f.symbols)
	}
	if f.interval != "" {
		cfg.Data.Interval = f.interval
	}
	if f.start != "" {
		cfg.Data.Start = f.start
	}
	if f.end != "" {
		cfg.Data.End = f.end
	}
	if f.source != "" {
		cfg.Data.Source = f.source
	}
}

// openProvider builds the configured source, wrapped in the redis cache when enabled.
// The returned closer releases every connection that was opened.
func (a *app) openProvider() (market.Provider, io.Closer, error) {
	cfg := a.cfg
	closers := multiCloser{}

	var provider market.Provider
	switch cfg.Data.Source {
	case config.SourceBinance:
		p, err := binance.NewProvider(cfg.Provider, binance.WithObserver(a.metrics))
		if err != nil {
			return nil, nil, err
		}
		provider = p
	case config.SourceCSV:
		provider = csvfile.NewProvider(cfg.Data.CSVDir)
	case config.SourceClickHouse:
		p, err := clickhouse.NewProvider(cfg.ClickHouse)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, p)
		provider = p
	default:
		return nil, nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}

	if cfg.Cache.Enabled {
		client, err := cache.NewClient(cfg.Cache.Config)
		if err != nil {
			// the cache is optional, run uncached
			log.Warn().Err(err).Str("addr", cfg.Cache.Addr).Msg("Bar cache unavailable")
		} else {
			closers = append(closers, client)
			provider = cache.New(provider, client, cfg.Cache.Config)
		}
	}

	log.Info().Str("source", cfg.Data.Source).Bool("cache", cfg.Cache.Enabled).Msg("Market data provider ready")
	return provider, closers, nil
}

func (a *app) openStore(ctx context.Context) (*db.Manager, error) {
	manager, err := db.NewManager(ctx, a.cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return manager, nil
}

func rawJSON(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode run summary")
		return nil
	}
	return data
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for i := len(m) - 1; i >= 0; i-- {
		if err := m[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
