package analysts

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/models"
)

// analyst is the shared shape: gather data, then ask the model to reason
// over whatever was gathered.
type analyst struct {
	kind   models.AnalystKind
	name   string
	prompt string
	llm    llm.Completer
	now    func() time.Time
}

func (a *analyst) Kind() models.AnalystKind { return a.kind }
func (a *analyst) Name() string             { return a.name }

// write produces the report. A non-nil dataErr still yields a report, flagged degraded.
func (a *analyst) write(ctx context.Context, subject agents.Subject, data string, dataErr error) (models.AnalystReport, error) {
	if dataErr != nil {
		logger.Ctx(ctx).Warn().Err(dataErr).Str("agent", a.name).Msg("analyst data unavailable, reasoning without it")
		data = fmt.Sprintf("Data could not be retrieved (%v). Reason from general knowledge and say which conclusions are uncertain.", dataErr)
	}

	msgs, err := agents.Messages(ctx, a.prompt, map[string]any{
		"symbol":     subject.Symbol,
		"asset_type": subject.AssetType(),
		"trade_date": subject.Date(),
		"data":       data,
	}, []*schema.Message{
		schema.UserMessage(fmt.Sprintf("Write your report for %s as of %s.", subject.Symbol, subject.Date())),
	})
	if err != nil {
		return models.AnalystReport{}, err
	}

	findings, err := a.llm.Complete(ctx, a.name, msgs)
	if err != nil {
		return models.AnalystReport{}, err
	}

	report := models.AnalystReport{
		Kind:        a.kind,
		Agent:       a.name,
		Findings:    findings,
		GeneratedAt: a.now(),
	}
	if dataErr != nil {
		report.Degraded = true
		report.Note = fmt.Sprintf("data provider failed: %v", dataErr)
	}
	return report, nil
}
