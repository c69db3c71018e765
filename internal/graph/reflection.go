package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/internal/memory"
	"github.com/dyike/CortexAgents/models"
)

// Reflector turns a realized return into lessons for the agents that shaped
// the decision and appends each lesson to that agent's own memory.
type Reflector struct {
	llm    llm.Completer
	memory memory.Bank
}

func NewReflector(c llm.Completer, bank memory.Bank) *Reflector {
	return &Reflector{llm: c, memory: bank}
}

type contribution struct {
	agent string
	label string
	text  string
}

// Reflect records one lesson per contributing agent. Partial failures are
// joined; lessons already stored are kept.
func (r *Reflector) Reflect(ctx context.Context, s *models.Session, returns float64) ([]models.MemoryRecord, error) {
	if s.Decision == nil {
		return nil, ErrNoDecision
	}
	situation := s.Situation()
	if situation == "" {
		return nil, errors.New("session has no analyst reports to reflect on")
	}
	outcome := Outcome(returns)

	var (
		records []models.MemoryRecord
		errs    []error
	)
	for _, c := range contributions(s) {
		msgs, err := agents.Messages(ctx, "reflection/reflection", map[string]any{
			"symbol":     s.Symbol,
			"trade_date": s.Date(),
			"agent":      c.label,
			"returns":    fmt.Sprintf("%+.2f%%", returns*100),
			"outcome":    outcome,
			"decision":   c.text,
			"situation":  situation,
		}, []*schema.Message{schema.UserMessage("Write the lesson.")})
		if err != nil {
			return records, err
		}

		lesson, err := r.llm.Complete(ctx, consts.Reflector, msgs)
		if err != nil {
			errs = append(errs, fmt.Errorf("reflect %s: %w", c.agent, err))
			continue
		}
		rec, err := r.memory.For(c.agent).Add(ctx, situation, lesson, outcome)
		if err != nil {
			errs = append(errs, fmt.Errorf("remember %s: %w", c.agent, err))
			continue
		}
		records = append(records, rec)
	}

	logger.Ctx(ctx).Info().Int("lessons", len(records)).Str("outcome", outcome).Msg("reflection finished")
	return records, errors.Join(errs...)
}

// Outcome labels a realized return.
func Outcome(returns float64) string {
	switch {
	case returns > 0:
		return fmt.Sprintf("gain %+.2f%%", returns*100)
	case returns < 0:
		return fmt.Sprintf("loss %+.2f%%", returns*100)
	}
	return "flat"
}

func contributions(s *models.Session) []contribution {
	var out []contribution
	add := func(agent, label, text string) {
		if strings.TrimSpace(text) != "" {
			out = append(out, contribution{agent: agent, label: label, text: text})
		}
	}

	add(consts.BullResearcher, consts.Agent_BullResearcher, utterancesBy(&s.Research, models.RoleBull))
	add(consts.BearResearcher, consts.Agent_BearResearcher, utterancesBy(&s.Research, models.RoleBear))
	if s.Verdict != nil {
		add(consts.ResearchManager, consts.Agent_ResearchManager,
			fmt.Sprintf("%s (confidence %s)\n%s", s.Verdict.Stance, agents.FormatConfidence(s.Verdict.Confidence), s.Verdict.Rationale))
	}
	if s.RiskAssessment != nil {
		add(consts.RiskJudge, consts.Agent_RiskJudge,
			fmt.Sprintf("%s (confidence %s)\n%s", s.RiskAssessment.Stance, agents.FormatConfidence(s.RiskAssessment.Confidence), s.RiskAssessment.Rationale))
	}
	add(consts.Trader, consts.Agent_Trader,
		fmt.Sprintf("%s (confidence %s)\n%s", s.Decision.Action, agents.FormatConfidence(s.Decision.Confidence), s.Decision.Rationale))
	return out
}

func utterancesBy(st *models.DebateState, role models.Role) string {
	var parts []string
	for _, u := range st.Utterances {
		if u.Role == role {
			parts = append(parts, u.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
