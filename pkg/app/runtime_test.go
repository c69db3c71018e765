package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAgents/config"
	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/dataflows/datatest"
	"github.com/dyike/CortexAgents/internal/graph"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/internal/llm/llmtest"
	"github.com/dyike/CortexAgents/internal/memory"
	"github.com/dyike/CortexAgents/models"
)

var tradeDate = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

func scriptedBuilder(ctx context.Context, cfg config.Config, bank memory.Bank, opts ...graph.Option) (*graph.Engine, error) {
	c := llmtest.New().Default("Trend is intact.")
	c.Always(consts.ResearchManager, `{"converged": false, "stance": "HOLD", "confidence": 0.5, "rationale": "mixed"}`)
	c.Always(consts.RiskJudge, `{"stance": "HOLD", "confidence": 0.5, "rationale": "wait"}`)
	c.Always(consts.Trader, "FINAL TRANSACTION PROPOSAL: **HOLD**")
	return graph.BuildWith(cfg, &llm.Models{Deep: c, Quick: c}, datatest.NewSource(tradeDate).Hub(), bank, opts...)
}

type topics struct {
	mu       sync.Mutex
	seen     []string
	payloads []string
}

func (t *topics) add(topic, payload string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen = append(t.seen, topic)
	t.payloads = append(t.payloads, payload)
}

func (t *topics) last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.payloads[len(t.payloads)-1]
}

func (t *topics) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.seen...)
}

func newRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	dir := t.TempDir()
	mgr, err := config.NewManager(config.WithConfigDir(dir), config.WithInitialConfig(config.DefaultConfigWithRoot(dir)))
	require.NoError(t, err)

	rt, err := NewRuntime(context.Background(), mgr, append([]Option{WithBuilder(scriptedBuilder)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestRuntimeServesAnalyses(t *testing.T) {
	rt := newRuntime(t)
	require.NotNil(t, rt.Engine())

	res, err := rt.Service().RunAnalysis(context.Background(), models.AgentInitParams{Symbol: "AAPL", TradeDate: "2024-05-10"})
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, res.Decision.Action)
}

func TestRuntimeRebuildsOnConfigUpdate(t *testing.T) {
	notes := &topics{}
	rt := newRuntime(t, WithNotifier(notes.add))
	first := rt.Engine()

	cfg := rt.Config()
	cfg.MaxDebateRounds = 3
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, rt.UpdateConfigJSON(string(data)))

	second := rt.Engine()
	assert.Greater(t, second.Version, first.Version)
	assert.Equal(t, 3, second.Config.MaxDebateRounds)

	current, err := rt.Service().Engine()
	require.NoError(t, err)
	assert.Same(t, second.Engine, current)
	assert.Equal(t, []string{"engine.reloaded", "engine.reloaded"}, notes.list())

	var payload struct {
		Version uint64   `json:"version"`
		Fields  []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(notes.last()), &payload))
	assert.Equal(t, second.Version, payload.Version)
	assert.Equal(t, []string{"max_debate_rounds"}, payload.Fields)
}

func TestRuntimeAppliesProcessFieldsWithoutRebuild(t *testing.T) {
	notes := &topics{}
	rt := newRuntime(t, WithNotifier(notes.add))
	first := rt.Engine()

	cfg := rt.Config()
	cfg.LogLevel = "debug"
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, rt.UpdateConfigJSON(string(data)))

	assert.Same(t, first, rt.Engine())
	assert.Equal(t, "debug", rt.Config().LogLevel)
	assert.Equal(t, []string{"engine.reloaded", "config.applied"}, notes.list())
	assert.JSONEq(t, `{"fields": ["log_level"]}`, notes.last())
}

func TestRuntimeRebuildsOnModelChange(t *testing.T) {
	notes := &topics{}
	rt := newRuntime(t, WithNotifier(notes.add))

	cfg := rt.Config()
	cfg.QuickThinkLLM = "deepseek-coder"
	cfg.MaxRiskDiscussRounds = 2
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, rt.UpdateConfigJSON(string(data)))

	assert.Equal(t, "deepseek-coder", rt.Engine().Config.QuickThinkLLM)
	assert.Equal(t, 2, rt.Engine().Config.MaxRiskDiscussRounds)

	var payload struct {
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(notes.last()), &payload))
	assert.Equal(t, []string{"quick_think_llm", "max_risk_rounds"}, payload.Fields)
}

func TestRuntimeKeepsEngineWhenBuildFails(t *testing.T) {
	fail := false
	builder := func(ctx context.Context, cfg config.Config, bank memory.Bank, opts ...graph.Option) (*graph.Engine, error) {
		if fail {
			return nil, errors.New("model unavailable")
		}
		return scriptedBuilder(ctx, cfg, bank, opts...)
	}
	notes := &topics{}
	rt := newRuntime(t, WithBuilder(builder), WithNotifier(notes.add))
	first := rt.Engine()

	fail = true
	cfg := rt.Config()
	cfg.MemoryTopK = 5
	data, _ := json.Marshal(cfg)
	require.NoError(t, rt.UpdateConfigJSON(string(data)))

	assert.Same(t, first, rt.Engine())
	assert.Contains(t, notes.list(), "engine.reload_failed")
}

func TestRuntimeAddsObservers(t *testing.T) {
	obs := &stageCounter{}
	rt := newRuntime(t, WithObserver(obs))

	_, err := rt.Service().RunAnalysis(context.Background(), models.AgentInitParams{Symbol: "AAPL", TradeDate: "2024-05-10"})
	require.NoError(t, err)
	assert.Equal(t, 4, obs.finished)
}

type stageCounter struct {
	graph.NopObserver
	finished int
}

func (s *stageCounter) StageFinished(context.Context, *models.Session, string, error) {
	s.finished++
}

func TestNewRuntimeRequiresManager(t *testing.T) {
	_, err := NewRuntime(context.Background(), nil)
	assert.Error(t, err)
}
