package persistence

import (
	"context"
	"sync"

	"github.com/sawpanic/pointrun/internal/tune/grid"
)

// MemoryRuns is an in-process RunsRepo used when no database is configured
type MemoryRuns struct {
	mu      sync.RWMutex
	runs    map[string]Run
	fitness map[string][]grid.FitnessRecord
	trades  map[string][]SymbolTrade
}

func NewMemoryRuns() *MemoryRuns {
	return &MemoryRuns{
		runs:    make(map[string]Run),
		fitness: make(map[string][]grid.FitnessRecord),
		trades:  make(map[string][]SymbolTrade),
	}
}

func (m *MemoryRuns) SaveRun(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.Symbols = append([]string(nil), run.Symbols...)
	m.runs[run.ID] = run
	return nil
}

func (m *MemoryRuns) SaveFitness(ctx context.Context, runID string, records []grid.FitnessRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fitness[runID] = append([]grid.FitnessRecord(nil), records...)
	return nil
}

func (m *MemoryRuns) SaveTrades(ctx context.Context, runID string, trades []SymbolTrade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades[runID] = append(m.trades[runID], trades...)
	return nil
}

func (m *MemoryRuns) GetRun(ctx context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &run, nil
}
