package managers

import (
	"context"
	"fmt"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/internal/processing"
	"github.com/dyike/CortexAgents/models"
)

// ResearchManager moderates the bull/bear debate. Convergence checks run on
// the quick model, the verdict on the deep model.
type ResearchManager struct {
	deep    llm.Completer
	quick   llm.Completer
	signals *processing.SignalProcessor
}

func NewResearchManager(deep, quick llm.Completer) *ResearchManager {
	return &ResearchManager{deep: deep, quick: quick, signals: processing.NewSignalProcessor()}
}

// Converged asks whether further rounds would add information.
func (m *ResearchManager) Converged(ctx context.Context, turn agents.Turn) (bool, error) {
	msgs, err := agents.Messages(ctx, "managers/convergence", map[string]any{
		"symbol": turn.Symbol,
	}, agents.Conversation(turn.Log, "", "Has the debate converged? Reply with the JSON object only."))
	if err != nil {
		return false, err
	}

	out, err := m.quick.Complete(ctx, consts.ResearchManager, msgs)
	if err != nil {
		return false, err
	}
	converged, _, err := m.signals.ParseConvergence(out)
	if err != nil {
		return false, fmt.Errorf("convergence reply: %w", err)
	}
	return converged, nil
}

func (m *ResearchManager) Verdict(ctx context.Context, turn agents.Turn) (models.ResearchVerdict, error) {
	msgs, err := agents.Messages(ctx, "managers/research_manager", map[string]any{
		"symbol":        turn.Symbol,
		"reports":       agents.RenderReports(turn.Reports),
		"past_memories": agents.FormatMemories(turn.Memories),
	}, agents.Conversation(turn.Log, "", "The debate is closed. Deliver your verdict."))
	if err != nil {
		return models.ResearchVerdict{}, err
	}

	out, err := m.deep.Complete(ctx, consts.ResearchManager, msgs)
	if err != nil {
		return models.ResearchVerdict{}, err
	}
	s := m.signals.ParseStance(out)
	return models.ResearchVerdict{Stance: s.Action, Confidence: s.Confidence, Rationale: s.Rationale}, nil
}
