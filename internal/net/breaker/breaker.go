package breaker

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	cb "github.com/sony/gobreaker"
)

// Config represents circuit breaker configuration
type Config struct {
	Name                string        `yaml:"name"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"` // Consecutive failures to open circuit
	FailureRatio        float64       `yaml:"failure_ratio"`        // Failure ratio to open once MinRequests is reached
	MinRequests         uint32        `yaml:"min_requests"`
	Interval            time.Duration `yaml:"interval"` // Closed-state counter reset period
	Timeout             time.Duration `yaml:"timeout"`  // Open-state duration before half-open
}

// DefaultConfig returns the breaker settings used for exchange REST calls
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		ConsecutiveFailures: 3,
		FailureRatio:        0.05,
		MinRequests:         20,
		Interval:            60 * time.Second,
		Timeout:             60 * time.Second,
	}
}

// Breaker wraps a gobreaker circuit breaker
type Breaker struct{ cb *cb.CircuitBreaker }

func New(config Config) *Breaker {
	st := cb.Settings{Name: config.Name}
	st.Interval = config.Interval
	st.Timeout = config.Timeout
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if config.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= config.ConsecutiveFailures {
			return true
		}
		if config.MinRequests == 0 || counts.Requests < config.MinRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > config.FailureRatio
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state change")
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn unless the circuit is open
func (b *Breaker) Execute(fn func() (any, error)) (any, error) { return b.cb.Execute(fn) }

// State returns the current state name: closed, half-open or open
func (b *Breaker) State() string { return b.cb.State().String() }

// IsOpen reports whether err was produced by the breaker rejecting a call
func IsOpen(err error) bool {
	return errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests)
}
