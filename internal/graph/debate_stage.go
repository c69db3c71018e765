package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/models"
)

// debateTurn is one researcher utterance. The branch after it decides
// whether the other side answers or the moderator judges.
func (o *Orchestrator) debateTurn(role models.Role) compose.InvokeWOOpt[*models.Session, *models.Session] {
	return func(ctx context.Context, s *models.Session) (*models.Session, error) {
		ctx = stageContext(ctx)
		st := &s.Research

		speaker, agent := o.team.Bull, consts.BullResearcher
		if role == models.RoleBear {
			speaker, agent = o.team.Bear, consts.BearResearcher
		}

		content, err := speaker.Speak(ctx, o.turn(s, st, o.recall(ctx, agent, s.Situation())))
		if err != nil {
			return s, &StageError{Stage: consts.StageDebate, Cause: fmt.Errorf("%s: %w", speaker.Name(), err)}
		}
		if err := o.logic.RecordDebate(st, role, content); err != nil {
			return s, err
		}
		last, _ := st.Last()
		o.observer.Spoke(ctx, s, consts.StageDebate, last)

		if o.opts.ConvergenceCheck && !st.Terminal {
			o.checkConvergence(ctx, s, st)
		}
		return s, nil
	}
}

func (o *Orchestrator) moderatorNode(ctx context.Context, s *models.Session) (*models.Session, error) {
	ctx = stageContext(ctx)
	st := &s.Research
	if err := o.logic.RequireDebateTerminal(st); err != nil {
		return s, err
	}

	verdict, err := o.team.Moderator.Verdict(ctx, o.turn(s, st, o.recall(ctx, consts.ResearchManager, s.Situation())))
	if err != nil {
		return s, &StageError{Stage: consts.StageDebate, Cause: fmt.Errorf("%s: %w", consts.ResearchManager, err)}
	}
	s.Verdict = &verdict
	logger.Ctx(ctx).Info().
		Str("stance", string(verdict.Stance)).
		Float64("confidence", verdict.Confidence).
		Int("rounds", st.Rounds).
		Str("stop_reason", st.StopReason).
		Msg("research verdict")
	return s, nil
}

// checkConvergence treats a failed check as "keep debating".
func (o *Orchestrator) checkConvergence(ctx context.Context, s *models.Session, st *models.DebateState) {
	converged, err := o.team.Moderator.Converged(ctx, o.turn(s, st, nil))
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("convergence check failed, continuing debate")
		return
	}
	if !converged {
		return
	}
	if err := o.logic.MarkConverged(st); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("convergence ignored")
	}
}
