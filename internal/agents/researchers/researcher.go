package researchers

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/models"
)

// Researcher argues one side of the research debate.
type Researcher struct {
	role     models.Role
	opponent models.Role
	name     string
	prompt   string
	llm      llm.Completer
}

func (r *Researcher) Role() models.Role { return r.role }
func (r *Researcher) Name() string      { return r.name }

func (r *Researcher) Speak(ctx context.Context, turn agents.Turn) (string, error) {
	msgs, err := agents.Messages(ctx, r.prompt, map[string]any{
		"symbol":        turn.Symbol,
		"reports":       agents.RenderReports(turn.Reports),
		"last_argument": agents.LastArgument(turn.Log, r.opponent),
		"past_memories": agents.FormatMemories(turn.Memories),
	}, agents.Conversation(turn.Log, r.role, fmt.Sprintf("Your turn, %s.", r.role.Label())))
	if err != nil {
		return "", err
	}

	out, err := r.llm.Complete(ctx, r.name, msgs)
	if err != nil {
		return "", err
	}
	return stripLabel(out, r.role), nil
}

// stripLabel drops a "Bull Analyst:" prefix the model sometimes echoes.
func stripLabel(s string, role models.Role) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), role.Label()+":"))
}
