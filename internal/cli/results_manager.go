package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dyike/CortexAgents/internal/service"
	"github.com/dyike/CortexAgents/models"
)

// HistorySource is the read side of the service used by the history and
// reflect commands.
type HistorySource interface {
	History(ctx context.Context, params models.HistoryParams) (*service.HistoryPage, error)
	GetSession(ctx context.Context, id string) (*service.SessionDetail, error)
	ListMessages(ctx context.Context, id string) ([]models.MessageRecord, error)
	Reflect(ctx context.Context, id string, params models.ReflectParams) ([]models.MemoryRecord, error)
}

// ResultsManager renders persisted sessions.
type ResultsManager struct {
	src HistorySource
	out io.Writer
}

func NewResultsManager(src HistorySource, out io.Writer) *ResultsManager {
	return &ResultsManager{src: src, out: out}
}

// ListSessions prints one page of history and returns the next cursor.
func (rm *ResultsManager) ListSessions(ctx context.Context, cursor int64, limit int) (int64, error) {
	page, err := rm.src.History(ctx, models.HistoryParams{Cursor: cursor, Limit: limit})
	if err != nil {
		return 0, err
	}
	if len(page.Items) == 0 {
		DisplayInfo(rm.out, "No analyses recorded yet.")
		return 0, nil
	}

	fmt.Fprintln(rm.out, labelStyle.Render(fmt.Sprintf("%-36s  %-10s  %-10s  %-6s  %-8s  %s", "SESSION", "SYMBOL", "DATE", "STATUS", "ACTION", "CONF")))
	for _, rec := range page.Items {
		action, conf := "-", "-"
		if rec.Action != "" {
			action = actionText(models.Action(rec.Action))
			conf = fmt.Sprintf("%.0f%%", rec.Confidence*100)
		}
		status := rec.Status
		if rec.FailedAt != "" {
			status += "@" + rec.FailedAt
		}
		fmt.Fprintf(rm.out, "%-36s  %-10s  %-10s  %-6s  %-8s  %s\n", rec.ID, rec.Symbol, rec.TradeDate, status, action, conf)
	}
	if page.HasMore {
		fmt.Fprintln(rm.out, mutedStyle.Render(fmt.Sprintf("more: --cursor %d", page.NextCursor)))
	}
	return page.NextCursor, nil
}

// ShowSession prints a session summary and optionally its transcript.
func (rm *ResultsManager) ShowSession(ctx context.Context, id string, withMessages bool) error {
	detail, err := rm.src.GetSession(ctx, id)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s %s\n\n", titleStyle.Render("Session"), detail.Symbol, detail.TradeDate)
	fmt.Fprintf(&b, "ID:          %s\n", detail.ID)
	fmt.Fprintf(&b, "Status:      %s (stage %s)\n", detail.Status, detail.Stage)
	if detail.Error != "" {
		fmt.Fprintf(&b, "Error:       %s\n", detail.Error)
	}
	if detail.Verdict != nil {
		fmt.Fprintf(&b, "Research:    %s\n", stanceLine(detail.Verdict.Stance, detail.Verdict.Confidence))
	}
	if detail.Risk != nil {
		fmt.Fprintf(&b, "Risk:        %s\n", stanceLine(detail.Risk.Stance, detail.Risk.Confidence))
	}
	if detail.Decision != nil {
		fmt.Fprintf(&b, "Decision:    %s\n", stanceLine(detail.Decision.Action, detail.Decision.Confidence))
	}
	fmt.Fprintf(&b, "Created:     %s", detail.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(rm.out, panelStyle.Render(b.String()))

	if !withMessages {
		return nil
	}
	msgs, err := rm.src.ListMessages(ctx, id)
	if err != nil {
		return err
	}
	stage := ""
	for _, m := range msgs {
		if m.Stage != stage {
			stage = m.Stage
			fmt.Fprintln(rm.out, stageStyle.Render("▶ "+stage))
		}
		name := m.Agent
		if m.Degraded {
			name += " [degraded]"
		}
		fmt.Fprintf(rm.out, "%s %s\n", labelStyle.Render(fmt.Sprintf("%3d %s:", m.Seq, name)), strings.TrimSpace(m.Content))
	}
	return nil
}

// Reflect feeds realized returns back into memory and prints the lessons.
func (rm *ResultsManager) Reflect(ctx context.Context, id string, returns float64) error {
	records, err := rm.src.Reflect(ctx, id, models.ReflectParams{Returns: returns})
	for _, rec := range records {
		fmt.Fprintf(rm.out, "%s %s\n", labelStyle.Render(rec.Outcome+":"), rec.Lesson)
	}
	if err != nil {
		return err
	}
	DisplaySuccess(rm.out, fmt.Sprintf("stored %d lessons", len(records)))
	return nil
}
