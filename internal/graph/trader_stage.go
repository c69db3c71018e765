package graph

import (
	"context"
	"fmt"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/models"
)

func (o *Orchestrator) traderNode(ctx context.Context, s *models.Session) (*models.Session, error) {
	if err := o.runTrader(stageContext(ctx), s); err != nil {
		return s, err
	}
	return s, nil
}

func (o *Orchestrator) runTrader(ctx context.Context, s *models.Session) error {
	reports := s.OrderedReports()
	s.Memories = o.recall(ctx, consts.Trader, s.Situation())

	proposal, err := o.team.Trader.Decide(ctx, agents.TraderInput{
		Symbol:    s.Symbol,
		TradeDate: s.Date(),
		Reports:   reports,
		Verdict:   *s.Verdict,
		Risk:      *s.RiskAssessment,
		Memories:  s.Memories,
	})
	if err != nil {
		return &StageError{Stage: consts.StageTrader, Cause: fmt.Errorf("%s: %w", consts.Trader, err)}
	}

	action, confidence := proposal.Action, proposal.Confidence
	if !proposal.Explicit || !action.Valid() {
		logger.Ctx(ctx).Warn().Msg("trader gave no explicit proposal, falling back to risk stance")
		action = s.RiskAssessment.Stance
	}
	if confidence <= 0 {
		confidence = s.RiskAssessment.Confidence
	}

	s.Decision = &models.Decision{
		SessionID:  s.ID,
		Symbol:     s.Symbol,
		TradeDate:  s.Date(),
		Action:     action,
		Confidence: confidence,
		Rationale:  proposal.Rationale,
		Reports:    reports,
		Verdict:    *s.Verdict,
		Risk:       *s.RiskAssessment,
		Memories:   s.Memories,
		DecidedAt:  o.now(),
	}
	return nil
}
