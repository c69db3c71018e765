package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/dataflows"
	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/internal/memory"
	"github.com/dyike/CortexAgents/internal/trace"
	"github.com/dyike/CortexAgents/models"
)

// Sequence is the fixed stage order of every session.
var Sequence = []string{consts.StageAnalyst, consts.StageDebate, consts.StageRisk, consts.StageTrader}

// Options are the per-session limits read from config.
type Options struct {
	MaxDebateRounds      int
	MaxRiskDiscussRounds int
	ConvergenceCheck     bool
	MemoryTopK           int
	LookbackDays         int
	// AnalystTimeout bounds one analyst end to end. Zero leaves it to the
	// inference timeout.
	AnalystTimeout time.Duration
	// AnalystConcurrency caps analysts running at once. Zero runs them all.
	AnalystConcurrency int
}

// Orchestrator drives a session through Sequence on a compiled eino graph.
// It holds no per-session state and is safe for concurrent Run calls.
type Orchestrator struct {
	team     agents.Team
	memory   memory.Bank
	opts     Options
	logic    *ConditionalLogic
	observer Observer
	now      func() time.Time
	newID    func() string
	runner   compose.Runnable[*models.Session, *models.Session]
}

type Option func(*Orchestrator)

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
		o.logic.now = now
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

func NewOrchestrator(team agents.Team, bank memory.Bank, opts Options, options ...Option) (*Orchestrator, error) {
	if err := errors.Join(validateTeam(team), validateOptions(opts)); err != nil {
		return nil, err
	}
	if bank == nil {
		bank = memory.NewInMemoryBank(nil)
	}
	if opts.MemoryTopK <= 0 {
		opts.MemoryTopK = 2
	}
	o := &Orchestrator{
		team:     team,
		memory:   bank,
		opts:     opts,
		logic:    NewConditionalLogic(opts.MaxDebateRounds, opts.MaxRiskDiscussRounds),
		observer: NopObserver{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, fn := range options {
		fn(o)
	}

	runner, err := o.compile(context.Background())
	if err != nil {
		return nil, fmt.Errorf("compile trading graph: %w", err)
	}
	o.runner = runner
	return o, nil
}

func validateOptions(opts Options) error {
	var errs []error
	if opts.MaxDebateRounds < 1 {
		errs = append(errs, fmt.Errorf("max debate rounds must be >= 1, got %d", opts.MaxDebateRounds))
	}
	if opts.MaxRiskDiscussRounds < 1 {
		errs = append(errs, fmt.Errorf("max risk rounds must be >= 1, got %d", opts.MaxRiskDiscussRounds))
	}
	if opts.AnalystConcurrency < 0 {
		errs = append(errs, errors.New("analyst concurrency must not be negative"))
	}
	return errors.Join(errs...)
}

func validateTeam(team agents.Team) error {
	var errs []error
	if len(team.Analysts) == 0 {
		errs = append(errs, errors.New("no analysts registered"))
	}
	if team.Bull == nil || team.Bear == nil {
		errs = append(errs, errors.New("bull and bear researchers are required"))
	}
	if team.Moderator == nil {
		errs = append(errs, errors.New("research manager is required"))
	}
	for _, r := range riskRotation {
		if team.RiskDebaters[r] == nil {
			errs = append(errs, fmt.Errorf("risk debater %s is required", r))
		}
	}
	if team.RiskJudge == nil {
		errs = append(errs, errors.New("risk judge is required"))
	}
	if team.Trader == nil {
		errs = append(errs, errors.New("trader is required"))
	}
	return errors.Join(errs...)
}

// NewSession validates symbol and allocates a fresh session.
func (o *Orchestrator) NewSession(symbol string, date time.Time) (*models.Session, error) {
	symbol = dataflows.NormalizeSymbol(symbol)
	if err := dataflows.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, errors.New("trade date is required")
	}
	s := models.NewSession(o.newID(), symbol, date, o.opts.MaxDebateRounds, o.opts.MaxRiskDiscussRounds)
	s.IsCrypto = dataflows.IsCrypto(symbol)
	return s, nil
}

// Run produces a decision for symbol on date.
func (o *Orchestrator) Run(ctx context.Context, symbol string, date time.Time) (*models.Decision, error) {
	s, err := o.NewSession(symbol, date)
	if err != nil {
		return nil, err
	}
	return o.RunSession(ctx, s)
}

// RunSession advances s through every remaining stage. On failure it returns
// a nil decision and a *StageError or *ProtocolError.
func (o *Orchestrator) RunSession(ctx context.Context, s *models.Session) (*models.Decision, error) {
	ctx = logger.WithSession(ctx, s.ID, s.Symbol)
	ctx, span := trace.StartSpan(ctx, "session",
		attribute.String("session.id", s.ID),
		attribute.String("symbol", s.Symbol),
		attribute.String("trade_date", s.Date()),
	)

	start := o.now()
	st := &runState{session: s}
	_, err := o.runner.Invoke(withRunState(ctx, st), s)
	if err != nil {
		err = o.runError(ctx, st, err)
		o.finishStage(ctx, st, err)
	} else if s.Decision == nil {
		err = protocolErrorf(consts.StageTrader, "graph finished without a decision")
	}
	trace.End(span, err)

	log := logger.Ctx(ctx)
	if err != nil {
		log.Error().Err(err).Str("stage", FailedStage(err)).Msg("session failed")
		return nil, err
	}
	log.Info().
		Str("action", string(s.Decision.Action)).
		Float64("confidence", s.Decision.Confidence).
		Dur("elapsed", o.now().Sub(start)).
		Msg("session decided")
	return s.Decision, nil
}

// enter fails unless stage directly follows the last completed stage and
// that stage left the session in its terminal shape.
func (o *Orchestrator) enter(s *models.Session, stage string) error {
	idx := stageIndex(stage)
	if idx < 0 {
		return protocolErrorf(stage, "unknown stage")
	}
	if s.Decision != nil {
		return protocolErrorf(stage, "session %s already has a decision", s.ID)
	}

	prev := ""
	if idx > 0 {
		prev = Sequence[idx-1]
	}
	if s.Stage != prev {
		return protocolErrorf(stage, "cannot enter after %q, expected %q", s.Stage, prev)
	}

	switch stage {
	case consts.StageDebate:
		for _, a := range o.team.Analysts {
			if !s.HasReport(a.Kind()) {
				return protocolErrorf(stage, "missing %s report", a.Kind())
			}
		}
	case consts.StageRisk:
		if err := o.logic.RequireDebateTerminal(&s.Research); err != nil {
			return err
		}
		if s.Verdict == nil {
			return protocolErrorf(stage, "research verdict missing")
		}
	case consts.StageTrader:
		if err := o.logic.RequireRiskTerminal(&s.Risk); err != nil {
			return err
		}
		if s.RiskAssessment == nil {
			return protocolErrorf(stage, "risk assessment missing")
		}
	}
	return nil
}

func stageIndex(stage string) int {
	for i, s := range Sequence {
		if s == stage {
			return i
		}
	}
	return -1
}

// recall reads agent's own lessons. It is advisory: a failing store never
// fails the session.
func (o *Orchestrator) recall(ctx context.Context, agent, situation string) []models.MemoryMatch {
	if situation == "" {
		return nil
	}
	matches, err := o.memory.For(agent).Retrieve(ctx, situation, o.opts.MemoryTopK)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("agent", agent).Msg("memory retrieval failed")
		return nil
	}
	return matches
}

func (o *Orchestrator) turn(s *models.Session, log *models.DebateState, memories []models.MemoryMatch) agents.Turn {
	return agents.Turn{
		Symbol:    s.Symbol,
		TradeDate: s.Date(),
		Reports:   s.OrderedReports(),
		Log:       log,
		Memories:  memories,
		Verdict:   s.Verdict,
	}
}
