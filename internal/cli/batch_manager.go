package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dyike/CortexAgents/internal/service"
	"github.com/dyike/CortexAgents/models"
)

// Analyzer runs one analysis to completion.
type Analyzer interface {
	RunAnalysis(ctx context.Context, params models.AgentInitParams) (*service.Result, error)
}

// BatchManager handles batch analysis operations
type BatchManager struct {
	analyzer   Analyzer
	concurrent int
	out        io.Writer
}

// BatchResult represents the result of a single analysis in batch
type BatchResult struct {
	Symbol     string
	Status     BatchStatus
	Action     models.Action
	Confidence float64
	Error      string
	Duration   time.Duration
	ReportPath string
}

// BatchStatus represents the status of batch analysis item
type BatchStatus int

const (
	BatchPending BatchStatus = iota
	BatchCompleted
	BatchFailed
)

func (bs BatchStatus) String() string {
	switch bs {
	case BatchPending:
		return "pending"
	case BatchCompleted:
		return "completed"
	case BatchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func NewBatchManager(analyzer Analyzer, concurrent int, out io.Writer) *BatchManager {
	if concurrent < 1 {
		concurrent = 1
	}
	return &BatchManager{analyzer: analyzer, concurrent: concurrent, out: out}
}

// RunBatchAnalysis analyzes every symbol for date, at most concurrent at a
// time. A failed symbol does not stop the others. Results keep input order.
func (bm *BatchManager) RunBatchAnalysis(ctx context.Context, symbols []string, date string) ([]BatchResult, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols provided for batch analysis")
	}

	results := make([]BatchResult, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bm.concurrent)
	for i, symbol := range symbols {
		results[i] = BatchResult{Symbol: symbol, Status: BatchPending}
		g.Go(func() error {
			start := time.Now()
			res, err := bm.analyzer.RunAnalysis(gctx, models.AgentInitParams{Symbol: symbol, TradeDate: date})
			r := BatchResult{Symbol: symbol, Status: BatchCompleted, Duration: time.Since(start)}
			if res != nil {
				r.ReportPath = res.ReportPath
				if res.Decision != nil {
					r.Action = res.Decision.Action
					r.Confidence = res.Decision.Confidence
				}
			}
			if err != nil {
				r.Status = BatchFailed
				r.Error = err.Error()
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}

// DisplaySummary prints one line per symbol.
func (bm *BatchManager) DisplaySummary(results []BatchResult) {
	failed := 0
	for _, r := range results {
		switch r.Status {
		case BatchCompleted:
			fmt.Fprintf(bm.out, "%-10s %s  %s\n", r.Symbol, stanceLine(r.Action, r.Confidence), mutedStyle.Render(r.Duration.Round(time.Second).String()))
		default:
			failed++
			fmt.Fprintf(bm.out, "%-10s %s\n", r.Symbol, errorStyle.Render(r.Status.String()+": "+r.Error))
		}
	}
	if failed == 0 {
		DisplaySuccess(bm.out, fmt.Sprintf("%d analyses completed", len(results)))
		return
	}
	fmt.Fprintln(bm.out, warnStyle.Render(fmt.Sprintf("%d of %d analyses failed", failed, len(results))))
}
