package trader

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/internal/processing"
)

// Trader turns the verdict, the risk stance and past lessons into a proposal.
type Trader struct {
	deep    llm.Completer
	signals *processing.SignalProcessor
}

func NewTrader(deep llm.Completer) *Trader {
	return &Trader{deep: deep, signals: processing.NewSignalProcessor()}
}

func (t *Trader) Decide(ctx context.Context, in agents.TraderInput) (agents.Proposal, error) {
	vars := agents.Vars(agents.VerdictVars(&in.Verdict), map[string]any{
		"symbol":          in.Symbol,
		"trade_date":      in.TradeDate,
		"reports":         agents.RenderReports(in.Reports),
		"risk_stance":     string(in.Risk.Stance),
		"risk_confidence": agents.FormatConfidence(in.Risk.Confidence),
		"risk_rationale":  in.Risk.Rationale,
		"past_memories":   agents.FormatMemories(in.Memories),
	})
	msgs, err := agents.Messages(ctx, "trader/trader", vars, []*schema.Message{
		schema.UserMessage(fmt.Sprintf("Make the final trading decision for %s on %s.", in.Symbol, in.TradeDate)),
	})
	if err != nil {
		return agents.Proposal{}, err
	}

	out, err := t.deep.Complete(ctx, consts.Trader, msgs)
	if err != nil {
		return agents.Proposal{}, err
	}

	p := agents.Proposal{Rationale: out}
	p.Action, p.Explicit = t.signals.ExtractAction(out)
	if conf, ok := t.signals.ExtractConfidence(out); ok {
		p.Confidence = conf
	}
	return p, nil
}
