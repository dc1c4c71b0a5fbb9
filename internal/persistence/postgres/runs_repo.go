package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/pointrun/internal/persistence"
	"github.com/sawpanic/pointrun/internal/tune/grid"
)

// Schema creates the tables used by RunsRepo
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          UUID PRIMARY KEY,
	kind        TEXT NOT NULL,
	interval    TEXT NOT NULL,
	symbols     TEXT[] NOT NULL,
	start_ts    TIMESTAMPTZ NOT NULL,
	end_ts      TIMESTAMPTZ NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	summary     JSONB
);

CREATE TABLE IF NOT EXISTS fitness_records (
	run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	rank   INTEGER NOT NULL,
	score  DOUBLE PRECISION NOT NULL,
	params JSONB NOT NULL,
	record JSONB NOT NULL,
	PRIMARY KEY (run_id, rank)
);

CREATE TABLE IF NOT EXISTS trades (
	id            BIGSERIAL PRIMARY KEY,
	run_id        UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	symbol        TEXT NOT NULL,
	side          TEXT NOT NULL,
	entry_time    TIMESTAMPTZ NOT NULL,
	exit_time     TIMESTAMPTZ NOT NULL,
	entry_price   DOUBLE PRECISION NOT NULL,
	exit_price    DOUBLE PRECISION NOT NULL,
	pnl           DOUBLE PRECISION NOT NULL,
	entry_balance DOUBLE PRECISION NOT NULL,
	exit_balance  DOUBLE PRECISION NOT NULL,
	entry_points  DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS trades_run_symbol_idx ON trades (run_id, symbol, exit_time);
`

// runsRepo implements persistence.RunsRepo for PostgreSQL
type runsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRunsRepo creates a new PostgreSQL runs repository
func NewRunsRepo(db *sqlx.DB, timeout time.Duration) persistence.RunsRepo {
	return &runsRepo{
		db:      db,
		timeout: timeout,
	}
}

// Migrate applies Schema
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

type runRow struct {
	ID         string         `db:"id"`
	Kind       string         `db:"kind"`
	Interval   string         `db:"interval"`
	Symbols    pq.StringArray `db:"symbols"`
	Start      time.Time      `db:"start_ts"`
	End        time.Time      `db:"end_ts"`
	StartedAt  time.Time      `db:"started_at"`
	FinishedAt time.Time      `db:"finished_at"`
	Summary    []byte         `db:"summary"`
}

// SaveRun upserts a run header
func (r *runsRepo) SaveRun(ctx context.Context, run persistence.Run) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var summary []byte
	if len(run.Summary) > 0 {
		summary = run.Summary
	}

	query := `
		INSERT INTO runs (id, kind, interval, symbols, start_ts, end_ts, started_at, finished_at, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			summary = EXCLUDED.summary`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, string(run.Kind), run.Interval, pq.Array(run.Symbols),
		run.Start, run.End, run.StartedAt, run.FinishedAt, summary)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// SaveFitness stores the ranking of an optimizer run
func (r *runsRepo) SaveFitness(ctx context.Context, runID string, records []grid.FitnessRecord) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fitness_records (run_id, rank, score, params, record)
		VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		params, err := json.Marshal(rec.Params)
		if err != nil {
			return fmt.Errorf("failed to marshal params: %w", err)
		}
		body, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal fitness record: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, runID, i+1, rec.Score, params, body); err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return fmt.Errorf("duplicate fitness rank %d: %w", i+1, err)
			}
			return fmt.Errorf("failed to insert fitness record: %w", err)
		}
	}

	return tx.Commit()
}

// SaveTrades stores a ledger in a single transaction
func (r *runsRepo) SaveTrades(ctx context.Context, runID string, trades []persistence.SymbolTrade) error {
	if len(trades) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(trades)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, symbol, side, entry_time, exit_time, entry_price, exit_price,
			pnl, entry_balance, exit_balance, entry_points)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		_, err := stmt.ExecContext(ctx,
			runID, t.Symbol, string(t.Side), t.EntryTime, t.ExitTime, t.EntryPrice, t.ExitPrice,
			t.PnL, t.EntryBalance, t.ExitBalance, t.EntryPoints)
		if err != nil {
			return fmt.Errorf("failed to insert trade in batch: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun loads a run header by id
func (r *runsRepo) GetRun(ctx context.Context, id string) (*persistence.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, kind, interval, symbols, start_ts, end_ts, started_at, finished_at, summary
		FROM runs
		WHERE id = $1`

	var row runRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &persistence.Run{
		ID:         row.ID,
		Kind:       persistence.RunKind(row.Kind),
		Interval:   row.Interval,
		Symbols:    []string(row.Symbols),
		Start:      row.Start,
		End:        row.End,
		StartedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt,
		Summary:    row.Summary,
	}, nil
}
