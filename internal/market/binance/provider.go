package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/pointrun/internal/market"
	"github.com/sawpanic/pointrun/internal/net/breaker"
	"github.com/sawpanic/pointrun/internal/net/ratelimit"
)

const providerName = "binance"

// Config holds Binance kline provider settings
type Config struct {
	BaseURL      string         `yaml:"base_url"`
	PageLimit    int            `yaml:"page_limit"`    // Klines per request (Binance max 1000)
	MaxBars      int            `yaml:"max_bars"`      // Hard cap on bars returned per fetch
	RequestDelay time.Duration  `yaml:"request_delay"` // Fixed spacing between requests
	Timeout      time.Duration  `yaml:"timeout"`
	Breaker      breaker.Config `yaml:"breaker"`
}

// DefaultConfig returns defaults for the public spot API
func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://api.binance.com",
		PageLimit:    1000,
		MaxBars:      5000,
		RequestDelay: 250 * time.Millisecond,
		Timeout:      10 * time.Second,
		Breaker:      breaker.DefaultConfig(providerName),
	}
}

// RequestObserver is notified of every upstream request outcome
type RequestObserver interface {
	ObserveRequest(provider, status string)
}

// Provider fetches historical klines from the Binance REST API
type Provider struct {
	config     Config
	host       string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	breaker    *breaker.Breaker
	observer   RequestObserver
}

// Option customises a Provider
type Option func(*Provider)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.httpClient = client }
}

// WithObserver registers a request observer
func WithObserver(observer RequestObserver) Option {
	return func(p *Provider) { p.observer = observer }
}

// NewProvider creates a new Binance kline provider
func NewProvider(config Config, opts ...Option) (*Provider, error) {
	if config.PageLimit <= 0 || config.PageLimit > 1000 {
		config.PageLimit = 1000
	}
	u, err := url.Parse(config.BaseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid binance base url %q", config.BaseURL)
	}
	if config.Breaker.Name == "" {
		config.Breaker = breaker.DefaultConfig(providerName)
	}

	p := &Provider{
		config:     config,
		host:       u.Host,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    ratelimit.NewSpacing(config.RequestDelay),
		breaker:    breaker.New(config.Breaker),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// FetchBars pulls klines page by page until an empty page, the end time, or
// the MaxBars cap is reached.
func (p *Provider) FetchBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]market.Bar, error) {
	if _, err := market.ParseInterval(interval); err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)

	startMs := start.UnixMilli()
	endMs := end.UnixMilli()
	bars := make([]market.Bar, 0, p.config.PageLimit)
	pages := 0

	for startMs < endMs {
		if err := p.limiter.Wait(ctx, p.host); err != nil {
			return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "rate_limit", Err: err}
		}

		page, err := p.fetchPage(ctx, symbol, interval, startMs, endMs)
		if err != nil {
			return nil, err
		}
		pages++
		if len(page) == 0 {
			break
		}

		if len(bars) > 0 && !page[0].OpenTime.After(bars[len(bars)-1].OpenTime) {
			return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "decode",
				Err: fmt.Errorf("page starting %s overlaps previous page", page[0].OpenTime.Format(time.RFC3339))}
		}
		bars = append(bars, page...)
		startMs = page[len(page)-1].OpenTime.UnixMilli() + 1

		if p.config.MaxBars > 0 && len(bars) >= p.config.MaxBars {
			bars = bars[:p.config.MaxBars]
			break
		}
	}

	log.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("pages", pages).
		Int("bars", len(bars)).
		Dur("request_spacing", p.limiter.Interval()).
		Msg("Fetched binance klines")

	return bars, nil
}

func (p *Provider) fetchPage(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]market.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatInt(startMs, 10))
	q.Set("endTime", strconv.FormatInt(endMs, 10))
	q.Set("limit", strconv.Itoa(p.config.PageLimit))
	endpoint := strings.TrimRight(p.config.BaseURL, "/") + "/api/v3/klines?" + q.Encode()

	result, err := p.breaker.Execute(func() (any, error) {
		return p.get(ctx, symbol, endpoint)
	})
	if err != nil {
		if breaker.IsOpen(err) {
			p.observe("breaker_open")
			return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "breaker", Err: err}
		}
		return nil, err
	}
	p.observe("ok")

	return parseKlines(symbol, result.([]byte))
}

func (p *Provider) get(ctx context.Context, symbol, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.observe("transport_error")
		return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.observe("transport_error")
		return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "request", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		p.observe("http_" + strconv.Itoa(resp.StatusCode))
		return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "http_status",
			StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}

	return body, nil
}

func (p *Provider) observe(status string) {
	if p.observer != nil {
		p.observer.ObserveRequest(providerName, status)
	}
}

// parseKlines decodes the Binance kline array format:
// [openTime, open, high, low, close, volume, closeTime, quoteVolume, trades, ...]
func parseKlines(symbol string, body []byte) ([]market.Bar, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw [][]any
	if err := dec.Decode(&raw); err != nil {
		return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "decode", Err: err}
	}

	bars := make([]market.Bar, 0, len(raw))
	for i, row := range raw {
		bar, err := parseKline(row)
		if err != nil {
			return nil, &market.UpstreamError{Provider: providerName, Symbol: symbol, Op: "decode",
				Err: fmt.Errorf("kline %d: %w", i, err)}
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseKline(row []any) (market.Bar, error) {
	if len(row) < 7 {
		return market.Bar{}, fmt.Errorf("expected at least 7 fields, got %d", len(row))
	}

	var values [7]float64
	for i := 0; i < 7; i++ {
		v, err := toFloat(row[i])
		if err != nil {
			return market.Bar{}, fmt.Errorf("field %d: %w", i, err)
		}
		values[i] = v
	}

	bar := market.Bar{
		OpenTime:  time.UnixMilli(int64(values[0])).UTC(),
		Open:      values[1],
		High:      values[2],
		Low:       values[3],
		Close:     values[4],
		Volume:    values[5],
		CloseTime: time.UnixMilli(int64(values[6])).UTC(),
	}
	if err := bar.Check(); err != nil {
		return market.Bar{}, err
	}
	return bar, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Float64()
	case string:
		return strconv.ParseFloat(x, 64)
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
