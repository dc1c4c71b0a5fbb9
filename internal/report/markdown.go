package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sawpanic/pointrun/internal/tune/grid"
)

// Generator creates markdown reports of optimizer runs
type Generator struct {
	Top int // rows in the ranking table
	now func() time.Time
}

// NewGenerator creates a generator listing the top 10 candidates
func NewGenerator() *Generator {
	return &Generator{Top: 10, now: time.Now}
}

// WriteOptimizerReport writes the markdown report to filePath
func (g *Generator) WriteOptimizerReport(filePath string, summary *grid.Summary) error {
	return os.WriteFile(filePath, []byte(g.OptimizerMarkdown(summary)), 0644)
}

// OptimizerMarkdown builds the report body
func (g *Generator) OptimizerMarkdown(summary *grid.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# pointrun Optimizer Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n\n", g.now().UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "**Run:** `%s`\n\n", summary.RunID)

	b.WriteString(g.executiveSummary(summary))
	b.WriteString(g.rankingTable(summary))
	b.WriteString(g.failures(summary))

	return b.String()
}

func (g *Generator) executiveSummary(summary *grid.Summary) string {
	counts := map[string]int{}
	for _, t := range summary.Trials {
		counts[t.Outcome]++
	}

	var b strings.Builder
	b.WriteString("## Executive Summary\n\n")
	b.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| **Trials** | %d |\n", len(summary.Trials))
	fmt.Fprintf(&b, "| **Viable** | %d |\n", counts[grid.OutcomeViable])
	fmt.Fprintf(&b, "| **Non-viable** | %d |\n", counts[grid.OutcomeNonViable])
	fmt.Fprintf(&b, "| **Errors** | %d |\n", counts[grid.OutcomeError])
	fmt.Fprintf(&b, "| **Duration** | %s |\n\n", summary.Duration.Round(time.Millisecond))

	if summary.Best == nil {
		b.WriteString("**No viable candidate.** Every trial produced no trades, held too long, or failed.\n\n")
		return b.String()
	}

	best := summary.Best
	fmt.Fprintf(&b, "**Best:** `%s` with fitness %.6f over %d trades (%.1f%% profitable, median pnl %.2f%%).\n\n",
		best.Params, best.Score, best.TotalTrades, best.ProfitableRatio*100, best.PnL.Median*100)
	return b.String()
}

func (g *Generator) rankingTable(summary *grid.Summary) string {
	if len(summary.Ranked) == 0 {
		return ""
	}
	n := g.Top
	if n <= 0 || n > len(summary.Ranked) {
		n = len(summary.Ranked)
	}

	var b strings.Builder
	b.WriteString("## Ranking\n\n")
	b.WriteString("| Rank | Score | Long | Short | RSI | MACD | EMA | DI | Fib | Trades | Profitable | Avg Days |\n")
	b.WriteString("|------|-------|------|-------|-----|------|-----|----|-----|--------|------------|----------|\n")
	for i, r := range summary.Ranked[:n] {
		p := r.Params
		fmt.Fprintf(&b, "| %d | %.6f | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f | %d | %.1f%% | %.2f |\n",
			i+1, r.Score, p.LongThreshold, p.ShortThreshold,
			p.Weights.RSI, p.Weights.MACD, p.Weights.EMA, p.Weights.DI, p.Weights.Fib,
			r.TotalTrades, r.ProfitableRatio*100, r.AvgHoldingDays)
	}
	b.WriteString("\n")
	return b.String()
}

func (g *Generator) failures(summary *grid.Summary) string {
	var b strings.Builder
	for _, t := range summary.Trials {
		if t.Outcome != grid.OutcomeError {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("## Failed Trials\n\n")
		}
		fmt.Fprintf(&b, "- `%s`: %s\n", t.Params, t.Err)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	return b.String()
}
