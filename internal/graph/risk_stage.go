package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/models"
)

// riskTurn is one utterance of the aggressive, conservative or neutral
// debater. Risk debaters keep no memory of their own.
func (o *Orchestrator) riskTurn(role models.Role) compose.InvokeWOOpt[*models.Session, *models.Session] {
	return func(ctx context.Context, s *models.Session) (*models.Session, error) {
		ctx = stageContext(ctx)
		st := &s.Risk

		speaker := o.team.RiskDebaters[role]
		if speaker == nil {
			return s, protocolErrorf(consts.StageRisk, "no debater registered for %s", role)
		}

		content, err := speaker.Speak(ctx, o.turn(s, &st.DebateState, nil))
		if err != nil {
			return s, &StageError{Stage: consts.StageRisk, Cause: fmt.Errorf("%s: %w", speaker.Name(), err)}
		}
		if err := o.logic.RecordRisk(st, role, content); err != nil {
			return s, err
		}
		last, _ := st.Last()
		o.observer.Spoke(ctx, s, consts.StageRisk, last)
		return s, nil
	}
}

func (o *Orchestrator) riskJudgeNode(ctx context.Context, s *models.Session) (*models.Session, error) {
	ctx = stageContext(ctx)
	st := &s.Risk
	if err := o.logic.RequireRiskTerminal(st); err != nil {
		return s, err
	}

	assessment, err := o.team.RiskJudge.Assess(ctx, o.turn(s, &st.DebateState, o.recall(ctx, consts.RiskJudge, s.Situation())))
	if err != nil {
		return s, &StageError{Stage: consts.StageRisk, Cause: fmt.Errorf("%s: %w", consts.RiskJudge, err)}
	}
	assessment = capConfidence(assessment, *s.Verdict)
	s.RiskAssessment = &assessment

	logger.Ctx(ctx).Info().
		Str("stance", string(assessment.Stance)).
		Float64("confidence", assessment.Confidence).
		Bool("downgraded", assessment.Downgraded).
		Msg("risk assessment")
	return s, nil
}

// capConfidence keeps the risk stage from raising the verdict's confidence.
func capConfidence(a models.RiskAssessment, v models.ResearchVerdict) models.RiskAssessment {
	if a.Confidence > v.Confidence {
		a.Confidence = v.Confidence
		a.Downgraded = true
	}
	return a
}
