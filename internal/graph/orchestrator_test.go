package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAgents/config"
	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/dataflows/datatest"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/internal/llm/llmtest"
	"github.com/dyike/CortexAgents/internal/memory"
	"github.com/dyike/CortexAgents/models"
)

var tradeDate = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

func scripted() *llmtest.Scripted {
	c := llmtest.New().Default("Momentum is constructive but volatility is elevated.")
	c.Handle(consts.ResearchManager, func(_ context.Context, _ string, msgs []*schema.Message) (string, error) {
		if strings.Contains(msgs[len(msgs)-1].Content, "converged") {
			return `{"converged": false, "reason": "new evidence each turn"}`, nil
		}
		return `{"stance": "BUY", "confidence": 0.7, "rationale": "trend and inflows outweigh valuation"}`, nil
	})
	c.Always(consts.RiskJudge, `{"stance": "BUY", "confidence": 0.9, "rationale": "buy at half size"}`)
	c.Always(consts.Trader, "Scale in over the week.\nConfidence: 60%\nFINAL TRANSACTION PROPOSAL: **BUY**")
	return c
}

func testConfig(t *testing.T) config.Config {
	cfg := *config.DefaultConfigWithRoot(t.TempDir())
	cfg.MaxDebateRounds = 2
	cfg.MaxRiskDiscussRounds = 2
	return cfg
}

func newEngine(t *testing.T, c llm.Completer, src *datatest.Source, options ...Option) *Engine {
	t.Helper()
	e, err := BuildWith(testConfig(t), &llm.Models{Deep: c, Quick: c}, src.Hub(), memory.NewInMemoryBank(nil), options...)
	require.NoError(t, err)
	return e
}

func TestRunProducesDecision(t *testing.T) {
	e := newEngine(t, scripted(), datatest.NewSource(tradeDate))

	s, err := e.Orchestrator.NewSession("btc-usd", tradeDate)
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", s.Symbol)
	assert.True(t, s.IsCrypto)

	d, err := e.Orchestrator.RunSession(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.Equal(t, models.ActionBuy, d.Action)
	assert.InDelta(t, 0.6, d.Confidence, 1e-9)
	assert.Equal(t, "2024-05-10", d.TradeDate)
	assert.Same(t, s.Decision, d)

	assert.Equal(t, Sequence, s.Stages)
	assert.Len(t, s.Reports, 4)
	for _, kind := range models.AllAnalystKinds {
		assert.False(t, s.Reports[kind].Degraded, kind)
	}

	assert.Equal(t, 2, s.Research.Rounds)
	assert.Len(t, s.Research.Utterances, 4)
	assert.Equal(t, consts.StopMaxRounds, s.Research.StopReason)
	assert.Equal(t, 2, s.Risk.Rounds)
	assert.Len(t, s.Risk.Utterances, 6)

	// risk confidence is capped at the verdict's
	assert.Equal(t, 0.7, d.Risk.Confidence)
	assert.True(t, d.Risk.Downgraded)
	assert.Equal(t, 0.7, d.Verdict.Confidence)
}

func TestRunDegradesOnNewsFailure(t *testing.T) {
	src := datatest.NewSource(tradeDate)
	src.NewsErr = errors.New("news feed down")
	e := newEngine(t, scripted(), src)

	s, err := e.Orchestrator.NewSession("BTC-USD", tradeDate)
	require.NoError(t, err)
	d, err := e.Orchestrator.RunSession(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, d)

	news := s.Reports[models.KindNews]
	assert.True(t, news.Degraded)
	assert.Contains(t, news.Note, "news feed down")
	assert.Len(t, s.Reports, 4)
	assert.False(t, s.Reports[models.KindTechnical].Degraded)
}

func TestRunFailsWhenRiskManagerFails(t *testing.T) {
	c := scripted()
	c.Fail(consts.RiskJudge, errors.New("model overloaded"))
	e := newEngine(t, c, datatest.NewSource(tradeDate))

	s, err := e.Orchestrator.NewSession("BTC-USD", tradeDate)
	require.NoError(t, err)
	d, err := e.Orchestrator.RunSession(context.Background(), s)

	assert.Nil(t, d)
	assert.Nil(t, s.Decision)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, consts.StageRisk, se.Stage)
	assert.ErrorContains(t, err, "model overloaded")
	assert.ErrorIs(t, err, ErrNoDecision)
	assert.Equal(t, []string{consts.StageAnalyst, consts.StageDebate}, s.Stages)
}

func TestAnalystInferenceFailureYieldsPlaceholder(t *testing.T) {
	c := scripted()
	c.Fail(consts.SocialMediaAnalyst, errors.New("quota exceeded"))
	e := newEngine(t, c, datatest.NewSource(tradeDate))

	s, err := e.Orchestrator.NewSession("AAPL", tradeDate)
	require.NoError(t, err)
	_, err = e.Orchestrator.RunSession(context.Background(), s)
	require.NoError(t, err)

	r := s.Reports[models.KindSentiment]
	assert.True(t, r.Degraded)
	assert.Equal(t, consts.SocialMediaAnalyst, r.Agent)
	assert.Contains(t, r.Note, "quota exceeded")
}

func TestRepeatedRunsAreStructurallyIdentical(t *testing.T) {
	e := newEngine(t, scripted(), datatest.NewSource(tradeDate))

	var shapes [][]int
	for i := 0; i < 2; i++ {
		s, err := e.Orchestrator.NewSession("BTC-USD", tradeDate)
		require.NoError(t, err)
		_, err = e.Orchestrator.RunSession(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, Sequence, s.Stages)
		shapes = append(shapes, []int{len(s.Reports), s.Research.Rounds, len(s.Research.Utterances), s.Risk.Rounds, len(s.Risk.Utterances)})
	}
	assert.Equal(t, shapes[0], shapes[1])
}

func TestConvergenceEndsDebateEarly(t *testing.T) {
	c := scripted()
	c.Handle(consts.ResearchManager, func(_ context.Context, _ string, msgs []*schema.Message) (string, error) {
		if strings.Contains(msgs[len(msgs)-1].Content, "converged") {
			// converge once the bear has answered
			if strings.HasPrefix(msgs[len(msgs)-2].Content, models.RoleBear.Label()) {
				return `{"converged": true, "reason": "both sides repeat"}`, nil
			}
			return `{"converged": false}`, nil
		}
		return `{"stance": "HOLD", "confidence": 0.5, "rationale": "balanced"}`, nil
	})
	e := newEngine(t, c, datatest.NewSource(tradeDate))

	s, err := e.Orchestrator.NewSession("BTC-USD", tradeDate)
	require.NoError(t, err)
	_, err = e.Orchestrator.RunSession(context.Background(), s)
	require.NoError(t, err)

	assert.True(t, s.Research.Converged)
	assert.Equal(t, consts.StopConverged, s.Research.StopReason)
	assert.Len(t, s.Research.Utterances, 2)
	assert.Equal(t, 1, s.Research.Rounds)
}

func TestConvergenceFailureKeepsDebating(t *testing.T) {
	c := scripted()
	c.Handle(consts.ResearchManager, func(_ context.Context, _ string, msgs []*schema.Message) (string, error) {
		if strings.Contains(msgs[len(msgs)-1].Content, "converged") {
			return "", errors.New("timeout")
		}
		return `{"stance": "SELL", "confidence": 0.4, "rationale": "valuation"}`, nil
	})
	e := newEngine(t, c, datatest.NewSource(tradeDate))

	s, err := e.Orchestrator.NewSession("BTC-USD", tradeDate)
	require.NoError(t, err)
	d, err := e.Orchestrator.RunSession(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Research.Rounds)
	assert.Equal(t, models.ActionBuy, d.Action)
	assert.Equal(t, models.ActionSell, d.Verdict.Stance)
}

func TestTraderFallsBackToRiskStance(t *testing.T) {
	c := scripted()
	c.Always(consts.Trader, "Hard to say, the picture is mixed.")
	e := newEngine(t, c, datatest.NewSource(tradeDate))

	d, err := e.Orchestrator.Run(context.Background(), "BTC-USD", tradeDate)
	require.NoError(t, err)
	assert.Equal(t, models.ActionBuy, d.Action)
	assert.Equal(t, 0.7, d.Confidence)
}

func TestTraderFailureIsFatal(t *testing.T) {
	c := scripted()
	c.Fail(consts.Trader, errors.New("boom"))
	e := newEngine(t, c, datatest.NewSource(tradeDate))

	d, err := e.Orchestrator.Run(context.Background(), "BTC-USD", tradeDate)
	assert.Nil(t, d)
	assert.Equal(t, consts.StageTrader, FailedStage(err))
}

func TestExistingReportsAreNotRecomputed(t *testing.T) {
	c := scripted()
	e := newEngine(t, c, datatest.NewSource(tradeDate))

	s, err := e.Orchestrator.NewSession("BTC-USD", tradeDate)
	require.NoError(t, err)
	require.True(t, s.AddReport(models.AnalystReport{Kind: models.KindNews, Agent: consts.NewsAnalyst, Findings: "cached"}))

	_, err = e.Orchestrator.RunSession(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, c.Calls(consts.NewsAnalyst))
	assert.Equal(t, "cached", s.Reports[models.KindNews].Findings)
	assert.False(t, s.AddReport(models.AnalystReport{Kind: models.KindNews, Findings: "again"}))
}

func TestEnterOutOfOrderIsProtocolError(t *testing.T) {
	e := newEngine(t, scripted(), datatest.NewSource(tradeDate))
	s, err := e.Orchestrator.NewSession("BTC-USD", tradeDate)
	require.NoError(t, err)

	for _, stage := range []string{consts.StageDebate, consts.StageRisk, consts.StageTrader} {
		err := e.Orchestrator.enter(s, stage)
		var pe *ProtocolError
		require.ErrorAs(t, err, &pe, stage)
		assert.Equal(t, stage, pe.Stage)
	}

	_, err = e.Orchestrator.RunSession(context.Background(), s)
	require.NoError(t, err)
	_, err = e.Orchestrator.RunSession(context.Background(), s)
	var pe *ProtocolError
	assert.ErrorAs(t, err, &pe, "a decided session cannot run again")
}

func TestCancelledContextStopsBeforeStage(t *testing.T) {
	e := newEngine(t, scripted(), datatest.NewSource(tradeDate))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, err := e.Orchestrator.Run(ctx, "BTC-USD", tradeDate)
	assert.Nil(t, d)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, consts.StageAnalyst, FailedStage(err))
}

func TestRunRejectsBadSymbol(t *testing.T) {
	e := newEngine(t, scripted(), datatest.NewSource(tradeDate))
	_, err := e.Orchestrator.Run(context.Background(), "not a symbol!", tradeDate)
	assert.Error(t, err)
}

func TestNewOrchestratorRequiresFullTeam(t *testing.T) {
	opts := Options{MaxDebateRounds: 1, MaxRiskDiscussRounds: 1}
	_, err := NewOrchestrator(NewTeam(&llm.Models{}, datatest.NewSource(tradeDate).Hub()), nil, opts)
	assert.NoError(t, err)

	team := NewTeam(&llm.Models{}, datatest.NewSource(tradeDate).Hub())
	team.Trader = nil
	delete(team.RiskDebaters, models.RoleNeutral)
	_, err = NewOrchestrator(team, nil, opts)
	assert.ErrorContains(t, err, "trader")
	assert.ErrorContains(t, err, "neutral")
}

func TestNewOrchestratorRejectsZeroRounds(t *testing.T) {
	team := NewTeam(&llm.Models{}, datatest.NewSource(tradeDate).Hub())

	_, err := NewOrchestrator(team, nil, Options{})
	assert.ErrorContains(t, err, "max debate rounds must be >= 1, got 0")
	assert.ErrorContains(t, err, "max risk rounds must be >= 1, got 0")

	_, err = NewOrchestrator(team, nil, Options{MaxDebateRounds: 1, MaxRiskDiscussRounds: 1, AnalystConcurrency: -1})
	assert.ErrorContains(t, err, "analyst concurrency")

	cfg := testConfig(t)
	cfg.MaxRiskDiscussRounds = 0
	c := scripted()
	_, err = BuildWith(cfg, &llm.Models{Deep: c, Quick: c}, datatest.NewSource(tradeDate).Hub(), nil)
	assert.ErrorContains(t, err, "max risk rounds")
}

func TestAnalystConcurrencyIsCapped(t *testing.T) {
	var (
		mu           sync.Mutex
		active, peak int
	)
	c := scripted()
	for _, agent := range []string{consts.MarketAnalyst, consts.FundamentalsAnalyst, consts.SocialMediaAnalyst, consts.NewsAnalyst} {
		c.Handle(agent, func(context.Context, string, []*schema.Message) (string, error) {
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			return "Trend intact, volume confirming.", nil
		})
	}

	cfg := testConfig(t)
	cfg.AnalystConcurrency = 1
	e, err := BuildWith(cfg, &llm.Models{Deep: c, Quick: c}, datatest.NewSource(tradeDate).Hub(), nil)
	require.NoError(t, err)

	s, err := e.Orchestrator.NewSession("BTC-USD", tradeDate)
	require.NoError(t, err)
	_, err = e.Orchestrator.RunSession(context.Background(), s)
	require.NoError(t, err)

	assert.Len(t, s.Reports, 4)
	assert.Equal(t, 1, peak)
}

type recordingObserver struct {
	NopObserver
	mu       sync.Mutex
	started  []string
	finished []string
	reports  int
	spoken   map[string]int
}

func (r *recordingObserver) StageStarted(_ context.Context, _ *models.Session, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, stage)
}

func (r *recordingObserver) StageFinished(_ context.Context, _ *models.Session, stage string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, stage)
}

func (r *recordingObserver) ReportAdded(context.Context, *models.Session, models.AnalystReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports++
}

func (r *recordingObserver) Spoke(_ context.Context, _ *models.Session, stage string, _ models.Utterance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spoken == nil {
		r.spoken = make(map[string]int)
	}
	r.spoken[stage]++
}

func TestObserverSeesEveryEvent(t *testing.T) {
	obs := &recordingObserver{}
	e := newEngine(t, scripted(), datatest.NewSource(tradeDate), WithObserver(obs))

	_, err := e.Orchestrator.Run(context.Background(), "BTC-USD", tradeDate)
	require.NoError(t, err)

	assert.Equal(t, Sequence, obs.started)
	assert.Equal(t, Sequence, obs.finished)
	assert.Equal(t, 4, obs.reports)
	assert.Equal(t, 4, obs.spoken[consts.StageDebate])
	assert.Equal(t, 6, obs.spoken[consts.StageRisk])
}

func TestObserversFanOut(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	e := newEngine(t, scripted(), datatest.NewSource(tradeDate), WithObserver(Observers(a, nil, b)))

	_, err := e.Orchestrator.Run(context.Background(), "BTC-USD", tradeDate)
	require.NoError(t, err)

	assert.Equal(t, a.started, b.started)
	assert.Equal(t, 4, b.reports)
	assert.Same(t, a, Observers(nil, a))
}

func TestMemoriesReachTrader(t *testing.T) {
	c := scripted()
	e := newEngine(t, c, datatest.NewSource(tradeDate))

	s, err := e.Orchestrator.NewSession("BTC-USD", tradeDate)
	require.NoError(t, err)
	d, err := e.Orchestrator.RunSession(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, d.Memories)

	_, err = e.Memory.For(consts.Trader).Add(context.Background(), s.Situation(), "do not chase breakouts on thin volume", "loss -4.00%")
	require.NoError(t, err)

	s2, err := e.Orchestrator.NewSession("BTC-USD", tradeDate)
	require.NoError(t, err)
	d, err = e.Orchestrator.RunSession(context.Background(), s2)
	require.NoError(t, err)
	require.Len(t, d.Memories, 1)
	assert.InDelta(t, 1.0, d.Memories[0].Similarity, 1e-9)

	calls := c.Calls(consts.Trader)
	assert.Contains(t, calls[len(calls)-1].Messages[0].Content, "do not chase breakouts")
}

func TestEachRoleRecallsOwnMemory(t *testing.T) {
	c := scripted()
	e := newEngine(t, c, datatest.NewSource(tradeDate))

	s, err := e.Orchestrator.NewSession("BTC-USD", tradeDate)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = e.Memory.For(consts.BullResearcher).Add(ctx, s.Situation(), "LESSON-BULL: funding rates flipped before the rally", "gain +3.00%")
	require.NoError(t, err)
	_, err = e.Memory.For(consts.Trader).Add(ctx, s.Situation(), "LESSON-TRADER: scale out into strength", "loss -1.00%")
	require.NoError(t, err)

	d, err := e.Orchestrator.RunSession(ctx, s)
	require.NoError(t, err)

	bull := c.Calls(consts.BullResearcher)
	require.NotEmpty(t, bull)
	for _, call := range bull {
		assert.Contains(t, call.Messages[0].Content, "LESSON-BULL")
		assert.NotContains(t, call.Messages[0].Content, "LESSON-TRADER")
	}
	for _, call := range c.Calls(consts.BearResearcher) {
		assert.NotContains(t, call.Messages[0].Content, "LESSON-")
	}

	require.Len(t, d.Memories, 1)
	assert.Contains(t, d.Memories[0].Record.Lesson, "LESSON-TRADER")
	assert.Equal(t, consts.Trader, d.Memories[0].Record.Agent)
}

func TestFailedStageIsReportedFinished(t *testing.T) {
	obs := &recordingObserver{}
	c := scripted()
	c.Fail(consts.RiskJudge, errors.New("model overloaded"))
	e := newEngine(t, c, datatest.NewSource(tradeDate), WithObserver(obs))

	_, err := e.Orchestrator.Run(context.Background(), "BTC-USD", tradeDate)
	require.Error(t, err)

	want := []string{consts.StageAnalyst, consts.StageDebate, consts.StageRisk}
	assert.Equal(t, want, obs.started)
	assert.Equal(t, want, obs.finished)
}

func TestQueuedAnalystsSkipAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := scripted()
	c.Handle(consts.MarketAnalyst, func(context.Context, string, []*schema.Message) (string, error) {
		cancel()
		return "Trend intact.", nil
	})
	cfg := testConfig(t)
	cfg.AnalystConcurrency = 1
	e, err := BuildWith(cfg, &llm.Models{Deep: c, Quick: c}, datatest.NewSource(tradeDate).Hub(), nil)
	require.NoError(t, err)

	d, err := e.Orchestrator.Run(ctx, "BTC-USD", tradeDate)
	assert.Nil(t, d)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, consts.StageAnalyst, FailedStage(err))
	assert.Empty(t, c.Calls(consts.FundamentalsAnalyst))
	assert.Empty(t, c.Calls(consts.NewsAnalyst))
}
