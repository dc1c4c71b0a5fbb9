package market

import (
	"fmt"
	"time"
)

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// ParseInterval converts a Binance-style interval string into a duration
func ParseInterval(interval string) (time.Duration, error) {
	d, ok := intervals[interval]
	if !ok {
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
	return d, nil
}

// BarsPerDay returns how many bars of the interval fit into one day.
// Intervals longer than a day yield a fraction.
func BarsPerDay(interval string) (float64, error) {
	d, err := ParseInterval(interval)
	if err != nil {
		return 0, err
	}
	return float64(24*time.Hour) / float64(d), nil
}
