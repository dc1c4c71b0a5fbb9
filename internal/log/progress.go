package log

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Progress reports completion of a fixed number of work items, such as
// optimizer trials. It is safe for concurrent use and logs at most once per
// interval, plus a final line when the last item completes.
type Progress struct {
	mu        sync.Mutex
	logger    zerolog.Logger
	name      string
	total     int
	completed int
	failed    int
	every     time.Duration
	startTime time.Time
	lastLog   time.Time
	now       func() time.Time
}

// NewProgress creates a progress reporter on the global logger
func NewProgress(name string, total int, every time.Duration) *Progress {
	return NewProgressWithLogger(log.Logger, name, total, every)
}

// NewProgressWithLogger creates a progress reporter on the given logger
func NewProgressWithLogger(logger zerolog.Logger, name string, total int, every time.Duration) *Progress {
	now := time.Now()
	return &Progress{
		logger:    logger,
		name:      name,
		total:     total,
		every:     every,
		startTime: now,
		lastLog:   now,
		now:       time.Now,
	}
}

// Done records one finished item. ok=false counts it as failed.
func (p *Progress) Done(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed++
	if !ok {
		p.failed++
	}

	now := p.now()
	final := p.completed >= p.total
	if !final && now.Sub(p.lastLog) < p.every {
		return
	}
	p.lastLog = now

	elapsed := now.Sub(p.startTime)
	ev := p.logger.Info().
		Str("task", p.name).
		Int("completed", p.completed).
		Int("total", p.total).
		Int("failed", p.failed).
		Dur("elapsed", elapsed)

	if final {
		ev.Msgf("%s completed", p.name)
		return
	}

	if p.completed > 0 {
		perItem := elapsed / time.Duration(p.completed)
		ev = ev.Dur("eta", perItem*time.Duration(p.total-p.completed))
	}
	ev.Msgf("%s progress: %.1f%%", p.name, float64(p.completed)/float64(p.total)*100)
}

// Counts returns completed and failed item counts
func (p *Progress) Counts() (completed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed, p.failed
}
