package risk_mgmt

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/models"
)

// RiskDebater argues one risk posture over the research verdict.
type RiskDebater struct {
	role   models.Role
	name   string
	prompt string
	llm    llm.Completer
}

func (d *RiskDebater) Role() models.Role { return d.role }
func (d *RiskDebater) Name() string      { return d.name }

func (d *RiskDebater) Speak(ctx context.Context, turn agents.Turn) (string, error) {
	vars := agents.Vars(agents.VerdictVars(turn.Verdict), map[string]any{
		"symbol":              turn.Symbol,
		"technical_report":    agents.ReportFindings(turn.Reports, models.KindTechnical),
		"sentiment_report":    agents.ReportFindings(turn.Reports, models.KindSentiment),
		"news_report":         agents.ReportFindings(turn.Reports, models.KindNews),
		"fundamentals_report": agents.ReportFindings(turn.Reports, models.KindFundamental),
	})

	msgs, err := agents.Messages(ctx, d.prompt, vars,
		agents.Conversation(turn.Log, d.role, fmt.Sprintf("Your turn, %s.", d.role.Label())))
	if err != nil {
		return "", err
	}
	out, err := d.llm.Complete(ctx, d.name, msgs)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimPrefix(out, d.role.Label()+":")), nil
}
