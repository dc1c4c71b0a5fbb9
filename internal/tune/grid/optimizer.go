package grid

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	plog "github.com/sawpanic/pointrun/internal/log"
)

// Trial outcomes reported to observers
const (
	OutcomeViable    = "viable"
	OutcomeNonViable = "non_viable"
	OutcomeError     = "error"
)

// TrialObserver receives per-trial telemetry
type TrialObserver interface {
	ObserveTrial(outcome string, duration time.Duration)
	ObserveBest(score float64)
}

// TrialReport records what happened to one grid point
type TrialReport struct {
	Index    int            `json:"index"`
	Params   ParameterSet   `json:"params"`
	Outcome  string         `json:"outcome"`
	Record   *FitnessRecord `json:"record,omitempty"`
	Err      string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Summary is the result of one grid search
type Summary struct {
	RunID     string          `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Best      *FitnessRecord  `json:"best,omitempty"`
	Ranked    []FitnessRecord `json:"ranked"`
	Trials    []TrialReport   `json:"trials"`
}

// Optimizer runs every grid point on a bounded worker pool
type Optimizer struct {
	Evaluator         Evaluator
	Parallelism       int
	MaxAvgHoldingDays float64
	Observer          TrialObserver
	ProgressEvery     time.Duration
}

// Optimize evaluates all combinations, waits for every trial, then ranks the
// viable ones by fitness (grid order breaks ties). A failing trial is recorded
// and never aborts its siblings. When nothing is viable the summary is still
// returned alongside ErrNoViableCandidate.
func (o *Optimizer) Optimize(ctx context.Context, g Grid) (*Summary, error) {
	if o.Evaluator == nil {
		return nil, errors.New("optimizer has no evaluator")
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid: %w", err)
	}

	parallel := o.Parallelism
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}
	maxDays := o.MaxAvgHoldingDays
	if maxDays <= 0 {
		maxDays = DefaultMaxAvgHoldingDays
	}
	every := o.ProgressEvery
	if every <= 0 {
		every = 10 * time.Second
	}

	combinations := g.Combinations()
	summary := &Summary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Trials:    make([]TrialReport, len(combinations)),
	}

	log.Info().
		Str("run_id", summary.RunID).
		Int("combinations", len(combinations)).
		Int("parallel", parallel).
		Msg("Starting grid search optimization")

	progress := plog.NewProgress("grid search", len(combinations), every)
	semaphore := make(chan struct{}, parallel)
	var wg sync.WaitGroup

	for i, params := range combinations {
		wg.Add(1)
		go func(idx int, ps ParameterSet) {
			defer wg.Done()

			// Acquire semaphore
			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				summary.Trials[idx] = TrialReport{Index: idx, Params: ps, Outcome: OutcomeError, Err: ctx.Err().Error()}
				progress.Done(false)
				return
			}
			defer func() { <-semaphore }()

			report := o.runTrial(ctx, idx, ps, maxDays)
			summary.Trials[idx] = report
			progress.Done(report.Outcome != OutcomeError)
			if o.Observer != nil {
				o.Observer.ObserveTrial(report.Outcome, report.Duration)
			}
		}(i, params)
	}

	// Wait for all trials to complete
	wg.Wait()

	for _, tr := range summary.Trials {
		if tr.Record != nil {
			summary.Ranked = append(summary.Ranked, *tr.Record)
		}
	}
	sort.SliceStable(summary.Ranked, func(i, j int) bool {
		return summary.Ranked[i].Score > summary.Ranked[j].Score
	})
	summary.Duration = time.Since(summary.StartedAt)

	if len(summary.Ranked) == 0 {
		log.Warn().Str("run_id", summary.RunID).Int("trials", len(combinations)).Msg("No viable parameter set")
		return summary, ErrNoViableCandidate
	}

	best := summary.Ranked[0]
	summary.Best = &best
	if o.Observer != nil {
		o.Observer.ObserveBest(best.Score)
	}

	log.Info().
		Str("run_id", summary.RunID).
		Int("viable", len(summary.Ranked)).
		Float64("best_score", best.Score).
		Str("best_params", best.Params.String()).
		Dur("duration", summary.Duration).
		Msg("Grid search optimization complete")

	return summary, nil
}

func (o *Optimizer) runTrial(ctx context.Context, idx int, ps ParameterSet, maxDays float64) (report TrialReport) {
	start := time.Now()
	report = TrialReport{Index: idx, Params: ps}

	defer func() {
		if r := recover(); r != nil {
			report.Outcome = OutcomeError
			report.Record = nil
			report.Err = fmt.Sprintf("trial panicked: %v", r)
		}
		report.Duration = time.Since(start)
	}()

	outcome, err := o.Evaluator.Evaluate(ctx, ps)
	if err != nil {
		log.Warn().Err(err).Int("trial", idx).Str("params", ps.String()).Msg("Trial failed")
		report.Outcome = OutcomeError
		report.Err = err.Error()
		return report
	}

	rec, err := Fitness(ps, outcome, maxDays)
	if err != nil {
		log.Debug().Err(err).Int("trial", idx).Str("params", ps.String()).Msg("Trial not viable")
		report.Outcome = OutcomeNonViable
		report.Err = err.Error()
		return report
	}

	log.Debug().
		Int("trial", idx).
		Str("params", ps.String()).
		Float64("score", rec.Score).
		Int("trades", rec.TotalTrades).
		Msg("Trial scored")
	report.Outcome = OutcomeViable
	report.Record = &rec
	return report
}
