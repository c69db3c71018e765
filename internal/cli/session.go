package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/graph"
	"github.com/dyike/CortexAgents/models"
)

// ProgressTracker prints a live log of a running session. It is safe for
// concurrent use since analyst reports arrive from several goroutines.
type ProgressTracker struct {
	graph.NopObserver

	mu       sync.Mutex
	out      io.Writer
	statuses map[string]AgentStatus
	started  map[string]time.Time
	width    int
}

func NewProgressTracker(out io.Writer) *ProgressTracker {
	p := &ProgressTracker{
		out:      out,
		statuses: make(map[string]AgentStatus),
		started:  make(map[string]time.Time),
		width:    100,
	}
	p.reset()
	return p
}

func (p *ProgressTracker) reset() {
	for _, t := range roster {
		for _, a := range t.Agents {
			p.statuses[a] = StatusPending
		}
	}
}

func (p *ProgressTracker) StageStarted(_ context.Context, s *models.Session, stage string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if stage == consts.StageAnalyst {
		p.reset()
	}
	p.started[stage] = time.Now()
	for _, a := range stageAgents(stage) {
		if p.statuses[a] == StatusPending {
			p.statuses[a] = StatusInProgress
		}
	}
	fmt.Fprintln(p.out, stageStyle.Render(fmt.Sprintf("▶ %s stage · %s %s", stage, s.Symbol, s.Date())))
}

func (p *ProgressTracker) StageFinished(_ context.Context, s *models.Session, stage string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := StatusCompleted
	if err != nil {
		status = StatusError
	}
	for _, a := range stageAgents(stage) {
		if p.statuses[a] != StatusCompleted {
			p.statuses[a] = status
		}
	}

	elapsed := time.Since(p.started[stage]).Round(time.Millisecond)
	if err != nil {
		fmt.Fprintln(p.out, errorStyle.Render(fmt.Sprintf("✗ %s stage failed after %s: %v", stage, elapsed, err)))
		return
	}
	fmt.Fprintln(p.out, completedStyle.Render(fmt.Sprintf("✓ %s stage done in %s", stage, elapsed)))

	switch stage {
	case consts.StageDebate:
		if s.Verdict != nil {
			fmt.Fprintf(p.out, "  %s %s\n", labelStyle.Render(consts.Agent_ResearchManager+":"),
				stanceLine(s.Verdict.Stance, s.Verdict.Confidence))
		}
	case consts.StageRisk:
		if s.RiskAssessment != nil {
			line := stanceLine(s.RiskAssessment.Stance, s.RiskAssessment.Confidence)
			if s.RiskAssessment.Downgraded {
				line += mutedStyle.Render(" (capped at research confidence)")
			}
			fmt.Fprintf(p.out, "  %s %s\n", labelStyle.Render(consts.Agent_RiskJudge+":"), line)
		}
	}
}

func (p *ProgressTracker) ReportAdded(_ context.Context, _ *models.Session, report models.AnalystReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	agent := kindAgents[report.Kind]
	if agent == "" {
		agent = report.Agent
	}
	p.statuses[agent] = StatusCompleted

	line := fmt.Sprintf("  %s %s", labelStyle.Render(agent+":"), report.Title())
	if report.Degraded {
		line += warnStyle.Render(" [degraded] " + report.Note)
	}
	fmt.Fprintln(p.out, line)
}

func (p *ProgressTracker) Spoke(_ context.Context, _ *models.Session, _ string, u models.Utterance) {
	p.mu.Lock()
	defer p.mu.Unlock()

	label := u.Role.Label()
	p.statuses[label] = StatusCompleted
	body := strings.Join(strings.Fields(u.Content), " ")
	fmt.Fprintf(p.out, "  %s %s\n", labelStyle.Render(fmt.Sprintf("[r%d] %s:", u.Round+1, label)), truncateString(body, p.width))
}

// Status reports the last known status of an agent by display name.
func (p *ProgressTracker) Status(agent string) AgentStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statuses[agent]
}

// Completed counts agents that have finished their part.
func (p *ProgressTracker) Completed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, st := range p.statuses {
		if st == StatusCompleted {
			n++
		}
	}
	return n
}
