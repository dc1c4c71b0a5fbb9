package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sawpanic/pointrun/internal/backtest/sim"
	"github.com/sawpanic/pointrun/internal/tune/grid"
)

// ErrNotFound is returned when a run id is unknown
var ErrNotFound = errors.New("run not found")

// RunKind distinguishes backtest runs from optimizer runs
type RunKind string

const (
	KindBacktest RunKind = "backtest"
	KindOptimize RunKind = "optimize"
)

// Run is the stored header of a backtest or optimizer run
type Run struct {
	ID         string          `json:"id"`
	Kind       RunKind         `json:"kind"`
	Interval   string          `json:"interval"`
	Symbols    []string        `json:"symbols"`
	Start      time.Time       `json:"start"`
	End        time.Time       `json:"end"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Summary    json.RawMessage `json:"summary,omitempty"`
}

// SymbolTrade is a closed trade tagged with its instrument
type SymbolTrade struct {
	Symbol string `json:"symbol"`
	sim.Trade
}

// RunsRepo stores run headers, optimizer rankings and trade ledgers
type RunsRepo interface {
	// SaveRun inserts or replaces a run header
	SaveRun(ctx context.Context, run Run) error

	// SaveFitness stores ranked fitness records; rank is the slice position
	SaveFitness(ctx context.Context, runID string, records []grid.FitnessRecord) error

	// SaveTrades stores a ledger atomically
	SaveTrades(ctx context.Context, runID string, trades []SymbolTrade) error

	GetRun(ctx context.Context, id string) (*Run, error)
}
