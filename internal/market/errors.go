package market

import (
	"errors"
	"fmt"
)

// UpstreamError represents a market-data fetch failure or malformed response.
// It is always surfaced to the caller of the affected run and never retried.
type UpstreamError struct {
	Provider   string `json:"provider"`
	Symbol     string `json:"symbol"`
	Op         string `json:"op"` // "request", "http_status", "decode", "breaker", "rate_limit"
	StatusCode int    `json:"status_code,omitempty"`
	Err        error  `json:"-"`
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s %s %s error (HTTP %d): %v", e.Provider, e.Symbol, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s %s %s error: %v", e.Provider, e.Symbol, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err carries an UpstreamError
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
