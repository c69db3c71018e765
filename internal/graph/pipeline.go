package graph

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/internal/metrics"
	"github.com/dyike/CortexAgents/internal/trace"
	"github.com/dyike/CortexAgents/models"
)

// runState is the graph local state of one session run. stage is the stage
// currently open, empty between stages.
type runState struct {
	session *models.Session
	stage   string
	started time.Time
	span    oteltrace.Span
}

type runStateKey struct{}

// withRunState lets RunSession keep a handle on the state the graph creates,
// so a failed run can still close its open stage.
func withRunState(ctx context.Context, st *runState) context.Context {
	return context.WithValue(ctx, runStateKey{}, st)
}

func genRunState(ctx context.Context) *runState {
	if st, ok := ctx.Value(runStateKey{}).(*runState); ok {
		return st
	}
	return &runState{}
}

var (
	debateNodes = map[models.Role]string{
		models.RoleBull: consts.BullResearcher,
		models.RoleBear: consts.BearResearcher,
	}
	riskNodes = map[models.Role]string{
		models.RoleAggressive:   consts.RiskyAnalyst,
		models.RoleConservative: consts.SafeAnalyst,
		models.RoleNeutral:      consts.NeutralAnalyst,
	}
)

type stageNode struct {
	key   string
	stage string
	run   compose.InvokeWOOpt[*models.Session, *models.Session]
	// closes marks the node that completes its stage.
	closes bool
}

func (o *Orchestrator) nodes() []stageNode {
	nodes := []stageNode{
		{key: consts.AnalystTeam, stage: consts.StageAnalyst, run: o.analystNode, closes: true},
		{key: consts.BullResearcher, stage: consts.StageDebate, run: o.debateTurn(models.RoleBull)},
		{key: consts.BearResearcher, stage: consts.StageDebate, run: o.debateTurn(models.RoleBear)},
		{key: consts.ResearchManager, stage: consts.StageDebate, run: o.moderatorNode, closes: true},
	}
	for _, role := range riskRotation {
		nodes = append(nodes, stageNode{key: riskNodes[role], stage: consts.StageRisk, run: o.riskTurn(role)})
	}
	return append(nodes,
		stageNode{key: consts.RiskJudge, stage: consts.StageRisk, run: o.riskJudgeNode, closes: true},
		stageNode{key: consts.Trader, stage: consts.StageTrader, run: o.traderNode, closes: true},
	)
}

// compile wires the stages as graph nodes. Debate and risk turns loop through
// branches that ask ConditionalLogic who speaks next.
func (o *Orchestrator) compile(ctx context.Context) (compose.Runnable[*models.Session, *models.Session], error) {
	g := compose.NewGraph[*models.Session, *models.Session](
		compose.WithGenLocalState(genRunState),
	)

	for _, n := range o.nodes() {
		opts := []compose.GraphAddNodeOpt{
			compose.WithNodeName(n.key),
			compose.WithStatePreHandler(o.openStage(n.stage)),
		}
		if n.closes {
			opts = append(opts, compose.WithStatePostHandler(o.closeStage))
		}
		if err := g.AddLambdaNode(n.key, compose.InvokableLambda(n.run), opts...); err != nil {
			return nil, err
		}
	}

	debateOut := map[string]bool{consts.ResearchManager: true}
	for _, key := range debateNodes {
		debateOut[key] = true
	}
	riskOut := map[string]bool{consts.RiskJudge: true}
	for _, key := range riskNodes {
		riskOut[key] = true
	}

	for _, from := range []string{consts.AnalystTeam, consts.BullResearcher, consts.BearResearcher} {
		if err := g.AddBranch(from, compose.NewGraphBranch(o.debateHandOff, debateOut)); err != nil {
			return nil, err
		}
	}
	for _, from := range []string{consts.ResearchManager, consts.RiskyAnalyst, consts.SafeAnalyst, consts.NeutralAnalyst} {
		if err := g.AddBranch(from, compose.NewGraphBranch(o.riskHandOff, riskOut)); err != nil {
			return nil, err
		}
	}
	edges := [][2]string{
		{compose.START, consts.AnalystTeam},
		{consts.RiskJudge, consts.Trader},
		{consts.Trader, compose.END},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, err
		}
	}

	// one step per node run plus slack for the fixed nodes
	steps := 2*o.opts.MaxDebateRounds + 3*o.opts.MaxRiskDiscussRounds + 10
	return g.Compile(ctx,
		compose.WithGraphName("CortexAgents-Trading"),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
		compose.WithMaxRunSteps(steps),
	)
}

func (o *Orchestrator) debateHandOff(_ context.Context, s *models.Session) (string, error) {
	role, ok := o.logic.NextDebateSpeaker(&s.Research)
	if !ok {
		return consts.ResearchManager, nil
	}
	return debateNodes[role], nil
}

func (o *Orchestrator) riskHandOff(_ context.Context, s *models.Session) (string, error) {
	role, ok := o.logic.NextRiskSpeaker(&s.Risk)
	if !ok {
		return consts.RiskJudge, nil
	}
	return riskNodes[role], nil
}

// openStage runs before every node. The first node of a stage enters it;
// later turns of the same stage pass through.
func (o *Orchestrator) openStage(stage string) compose.StatePreHandler[*models.Session, *runState] {
	return func(ctx context.Context, s *models.Session, st *runState) (*models.Session, error) {
		if st.stage == stage {
			return s, nil
		}
		if err := ctx.Err(); err != nil {
			return s, &StageError{Stage: stage, Cause: err}
		}
		if err := o.enter(s, stage); err != nil {
			return s, err
		}

		st.session = s
		st.stage = stage
		st.started = time.Now()
		_, st.span = trace.StartSpan(ctx, "stage."+stage, attribute.String("stage", stage))
		o.observer.StageStarted(ctx, s, stage)
		logger.Ctx(ctx).Info().Str("stage", stage).Msg("stage started")
		return s, nil
	}
}

func (o *Orchestrator) closeStage(ctx context.Context, s *models.Session, st *runState) (*models.Session, error) {
	stage := st.stage
	s.Stage = stage
	s.Stages = append(s.Stages, stage)
	logger.Ctx(ctx).Info().Str("stage", stage).Dur("elapsed", time.Since(st.started)).Msg("stage completed")
	o.finishStage(ctx, st, nil)
	return s, nil
}

func (o *Orchestrator) finishStage(ctx context.Context, st *runState, err error) {
	if st.stage == "" {
		return
	}
	metrics.ObserveStage(st.stage, st.started)
	trace.End(st.span, err)
	o.observer.StageFinished(ctx, st.session, st.stage, err)
	st.stage, st.span = "", nil
}

// stageContext parents node work under the open stage span.
func stageContext(ctx context.Context) context.Context {
	var span oteltrace.Span
	_ = compose.ProcessState(ctx, func(_ context.Context, st *runState) error {
		span = st.span
		return nil
	})
	return trace.ContextWithSpan(ctx, span)
}

// runError unwraps graph errors back to the typed stage errors. Anything else,
// cancellation included, is charged to the stage that was running or next.
func (o *Orchestrator) runError(ctx context.Context, st *runState, err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe
	}

	stage := st.stage
	if stage == "" {
		stage = Sequence[0]
		if idx := stageIndex(st.session.Stage); idx >= 0 && idx+1 < len(Sequence) {
			stage = Sequence[idx+1]
		}
	}
	if cerr := ctx.Err(); cerr != nil {
		return &StageError{Stage: stage, Cause: cerr}
	}
	return &StageError{Stage: stage, Cause: err}
}
