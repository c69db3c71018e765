package managers

import (
	"context"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/internal/processing"
	"github.com/dyike/CortexAgents/models"
)

// RiskManager judges the risk discussion.
type RiskManager struct {
	deep    llm.Completer
	signals *processing.SignalProcessor
}

func NewRiskManager(deep llm.Completer) *RiskManager {
	return &RiskManager{deep: deep, signals: processing.NewSignalProcessor()}
}

func (m *RiskManager) Assess(ctx context.Context, turn agents.Turn) (models.RiskAssessment, error) {
	vars := agents.Vars(agents.VerdictVars(turn.Verdict), map[string]any{
		"symbol":        turn.Symbol,
		"past_memories": agents.FormatMemories(turn.Memories),
	})
	msgs, err := agents.Messages(ctx, "managers/risk_manager", vars,
		agents.Conversation(turn.Log, "", "The risk discussion is closed. Deliver your assessment."))
	if err != nil {
		return models.RiskAssessment{}, err
	}

	out, err := m.deep.Complete(ctx, consts.RiskJudge, msgs)
	if err != nil {
		return models.RiskAssessment{}, err
	}
	s := m.signals.ParseStance(out)
	return models.RiskAssessment{Stance: s.Action, Confidence: s.Confidence, Rationale: s.Rationale}, nil
}
