package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAgents/config"
	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/dataflows/datatest"
	"github.com/dyike/CortexAgents/internal/graph"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/internal/llm/llmtest"
	"github.com/dyike/CortexAgents/internal/memory"
	"github.com/dyike/CortexAgents/internal/storage/sqlite"
	"github.com/dyike/CortexAgents/models"
)

var tradeDate = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

func scripted() *llmtest.Scripted {
	c := llmtest.New().Default("Momentum is constructive.")
	c.Handle(consts.ResearchManager, func(_ context.Context, _ string, msgs []*schema.Message) (string, error) {
		if strings.Contains(msgs[len(msgs)-1].Content, "converged") {
			return `{"converged": false}`, nil
		}
		return `{"stance": "BUY", "confidence": 0.7, "rationale": "trend"}`, nil
	})
	c.Always(consts.RiskJudge, `{"stance": "BUY", "confidence": 0.6, "rationale": "half size"}`)
	c.Always(consts.Trader, "FINAL TRANSACTION PROPOSAL: **BUY**")
	c.Always(consts.Reflector, "Trend following paid off.")
	return c
}

func newService(t *testing.T, c *llmtest.Scripted) (*Service, *sqlite.Store, string) {
	t.Helper()
	root := t.TempDir()
	cfg := *config.DefaultConfigWithRoot(root)

	store, err := sqlite.Open(cfg.DBPath)
	require.NoError(t, err)
	mem, err := memory.OpenPersistentBank(context.Background(), store, nil)
	require.NoError(t, err)

	svc := New(store, Options{ResultsDir: cfg.ResultsDir, WriteReports: true})
	engine, err := graph.BuildWith(cfg, &llm.Models{Deep: c, Quick: c}, datatest.NewSource(tradeDate).Hub(), mem, graph.WithObserver(svc.Observer()))
	require.NoError(t, err)
	svc.SetEngine(engine)

	t.Cleanup(func() {
		_ = svc.Close()
		_ = store.Close()
	})
	return svc, store, cfg.ResultsDir
}

func TestRunAnalysisPersistsSession(t *testing.T) {
	ctx := context.Background()
	svc, _, results := newService(t, scripted())

	res, err := svc.RunAnalysis(ctx, models.AgentInitParams{Symbol: "btc-usd", TradeDate: "2024-05-10"})
	require.NoError(t, err)
	assert.Equal(t, "done", res.Status)
	require.NotNil(t, res.Decision)
	assert.Equal(t, models.ActionBuy, res.Decision.Action)

	assert.True(t, strings.HasPrefix(res.ReportPath, filepath.Join(results, "BTC-USD", "2024-05-10")))
	body, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(body), "## Decision: BUY")
	assert.Contains(t, string(body), "Research Debate")

	detail, err := svc.GetSession(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "done", detail.Status)
	assert.Equal(t, consts.StageTrader, detail.Stage)
	assert.Equal(t, "BUY", detail.Action)
	require.NotNil(t, detail.Decision)
	require.NotNil(t, detail.Verdict)

	msgs, err := svc.ListMessages(ctx, res.SessionID)
	require.NoError(t, err)
	// 4 reports, 2 debate turns + verdict, 3 risk turns + assessment, decision
	assert.Len(t, msgs, 12)
	assert.Equal(t, consts.StageAnalyst, msgs[0].Stage)
	assert.Equal(t, "decision", msgs[len(msgs)-1].Role)
}

func TestRunAnalysisRecordsFailure(t *testing.T) {
	ctx := context.Background()
	c := scripted()
	c.Fail(consts.RiskJudge, errors.New("model overloaded"))
	svc, _, _ := newService(t, c)

	res, err := svc.RunAnalysis(ctx, models.AgentInitParams{Symbol: "BTC-USD", TradeDate: "2024-05-10"})
	require.Error(t, err)
	assert.Equal(t, "error", res.Status)
	assert.Equal(t, consts.StageRisk, res.FailedAt)
	assert.Nil(t, res.Decision)

	detail, err := svc.GetSession(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "error", detail.Status)
	assert.Equal(t, consts.StageRisk, detail.FailedAt)
	assert.Contains(t, detail.Error, "model overloaded")
	assert.Nil(t, detail.Decision)

	_, err = svc.Reflect(ctx, res.SessionID, models.ReflectParams{Returns: 0.01})
	assert.ErrorIs(t, err, graph.ErrNoDecision)
}

func TestRunAnalysisValidatesInput(t *testing.T) {
	svc, _, _ := newService(t, scripted())
	_, err := svc.RunAnalysis(context.Background(), models.AgentInitParams{Symbol: "BTC-USD", TradeDate: "10/05/2024"})
	assert.ErrorContains(t, err, "trade_date")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.RunAnalysis(context.Background(), models.AgentInitParams{Symbol: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStartAnalysisRunsInBackground(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t, scripted())

	id, err := svc.StartAnalysis(ctx, models.AgentInitParams{Symbol: "AAPL", TradeDate: "2024-05-10"})
	require.NoError(t, err)
	svc.Wait()

	detail, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "done", detail.Status)
}

func TestHistoryPaging(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t, scripted())
	for _, sym := range []string{"AAPL", "MSFT", "NVDA"} {
		_, err := svc.RunAnalysis(ctx, models.AgentInitParams{Symbol: sym, TradeDate: "2024-05-10"})
		require.NoError(t, err)
	}

	page, err := svc.History(ctx, models.HistoryParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "NVDA", page.Items[0].Symbol)

	next, err := svc.History(ctx, models.HistoryParams{Cursor: page.NextCursor, Limit: 2})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.False(t, next.HasMore)
	assert.Equal(t, "AAPL", next.Items[0].Symbol)
}

func TestReflectStoresLessons(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(t, scripted())

	res, err := svc.RunAnalysis(ctx, models.AgentInitParams{Symbol: "BTC-USD", TradeDate: "2024-05-10"})
	require.NoError(t, err)

	records, err := svc.Reflect(ctx, res.SessionID, models.ReflectParams{Returns: 0.08})
	require.NoError(t, err)
	assert.NotEmpty(t, records)

	stored, err := store.ListMemories(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, len(records))
	assert.Equal(t, "gain +8.00%", stored[0].Outcome)
}

func TestMissingSession(t *testing.T) {
	svc, _, _ := newService(t, scripted())
	_, err := svc.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ListMessages(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNoEngine(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	defer store.Close()
	svc := New(store, Options{})
	defer svc.Close()

	_, err = svc.RunAnalysis(context.Background(), models.AgentInitParams{Symbol: "AAPL"})
	assert.ErrorIs(t, err, ErrNoEngine)
}
