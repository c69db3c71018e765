package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/service"
	"github.com/dyike/CortexAgents/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "CortexAgents "+Version)
}

func TestConfigShowHidesSecrets(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-very-secret")
	path := filepath.Join(t.TempDir(), "config.json")

	out, err := execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "max_debate_rounds: 1")
	assert.Contains(t, out, "llm_provider: deepseek")
	assert.NotContains(t, out, "sk-very-secret")
	assert.Contains(t, out, "configured")
}

func TestConfigValidateRequiresModelKey(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.json")

	_, err := execute(t, "--config", path, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deepseek API key is required")
}

func TestConfigValidateWarnsOnOptionalKeys(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	path := filepath.Join(t.TempDir(), "config.json")

	out, err := execute(t, "--config", path, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "finnhub credentials not configured")
	assert.Contains(t, out, "configuration is valid with")
}

func TestConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	out, err := execute(t, "--config", path, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path, strings.TrimSpace(out))
}

func TestProgressTrackerFollowsStages(t *testing.T) {
	var out bytes.Buffer
	p := NewProgressTracker(&out)
	ctx := context.Background()
	s := models.NewSession("s1", "AAPL", time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), 1, 1)

	p.StageStarted(ctx, s, consts.StageAnalyst)
	assert.Equal(t, StatusInProgress, p.Status(consts.Agent_NewsAnalyst))

	p.ReportAdded(ctx, s, models.AnalystReport{Kind: models.KindNews, Degraded: true, Note: "inference failed: timeout"})
	assert.Equal(t, StatusCompleted, p.Status(consts.Agent_NewsAnalyst))
	p.StageFinished(ctx, s, consts.StageAnalyst, nil)
	assert.Equal(t, 4, p.Completed())

	p.StageStarted(ctx, s, consts.StageDebate)
	p.Spoke(ctx, s, consts.StageDebate, models.Utterance{Role: models.RoleBull, Content: "Strong\n\nmomentum."})
	s.Verdict = &models.ResearchVerdict{Stance: models.ActionBuy, Confidence: 0.7}
	p.StageFinished(ctx, s, consts.StageDebate, nil)

	p.StageStarted(ctx, s, consts.StageRisk)
	p.StageFinished(ctx, s, consts.StageRisk, errors.New("judge offline"))
	assert.Equal(t, StatusError, p.Status(consts.Agent_RiskJudge))
	assert.Equal(t, StatusPending, p.Status(consts.Agent_Trader))

	text := out.String()
	assert.Contains(t, text, "Latest World Affairs News")
	assert.Contains(t, text, "[degraded] inference failed: timeout")
	assert.Contains(t, text, "Bull Analyst:")
	assert.Contains(t, text, "Strong momentum.")
	assert.Contains(t, text, "confidence 70%")
	assert.Contains(t, text, "Risk stage failed")
}

type fakeAnalyzer struct {
	inflight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	seen     []models.AgentInitParams
}

func (f *fakeAnalyzer) RunAnalysis(ctx context.Context, params models.AgentInitParams) (*service.Result, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)

	f.mu.Lock()
	f.seen = append(f.seen, params)
	f.mu.Unlock()

	if params.Symbol == "BAD" {
		return &service.Result{SessionID: "x", Status: "error"}, errors.New("stage Analyst failed: boom")
	}
	return &service.Result{
		SessionID:  params.Symbol,
		Status:     "done",
		ReportPath: "/tmp/" + params.Symbol + ".md",
		Decision:   &models.Decision{Symbol: params.Symbol, Action: models.ActionSell, Confidence: 0.4},
	}, nil
}

func TestBatchManagerKeepsOrderAndLimit(t *testing.T) {
	var out bytes.Buffer
	f := &fakeAnalyzer{}
	bm := NewBatchManager(f, 2, &out)

	results, err := bm.RunBatchAnalysis(context.Background(), []string{"AAPL", "BAD", "MSFT", "NVDA"}, "2024-05-10")
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "AAPL", results[0].Symbol)
	assert.Equal(t, BatchCompleted, results[0].Status)
	assert.Equal(t, models.ActionSell, results[0].Action)
	assert.Equal(t, BatchFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "boom")
	assert.Equal(t, "NVDA", results[3].Symbol)
	assert.LessOrEqual(t, f.peak.Load(), int32(2))
	for _, p := range f.seen {
		assert.Equal(t, "2024-05-10", p.TradeDate)
	}

	bm.DisplaySummary(results)
	assert.Contains(t, out.String(), "1 of 4 analyses failed")
}

func TestBatchManagerRejectsEmpty(t *testing.T) {
	_, err := NewBatchManager(&fakeAnalyzer{}, 0, &bytes.Buffer{}).RunBatchAnalysis(context.Background(), nil, "")
	assert.Error(t, err)
}

type fakeHistory struct {
	page    *service.HistoryPage
	detail  *service.SessionDetail
	msgs    []models.MessageRecord
	lessons []models.MemoryRecord
	err     error
}

func (f *fakeHistory) History(context.Context, models.HistoryParams) (*service.HistoryPage, error) {
	return f.page, f.err
}

func (f *fakeHistory) GetSession(context.Context, string) (*service.SessionDetail, error) {
	if f.detail == nil {
		return nil, service.ErrNotFound
	}
	return f.detail, nil
}

func (f *fakeHistory) ListMessages(context.Context, string) ([]models.MessageRecord, error) {
	return f.msgs, nil
}

func (f *fakeHistory) Reflect(context.Context, string, models.ReflectParams) ([]models.MemoryRecord, error) {
	return f.lessons, f.err
}

func TestResultsManagerListsSessions(t *testing.T) {
	var out bytes.Buffer
	src := &fakeHistory{page: &service.HistoryPage{
		Items: []models.SessionRecord{
			{ID: "s2", Symbol: "NVDA", TradeDate: "2024-05-10", Status: "done", Action: "BUY", Confidence: 0.65},
			{ID: "s1", Symbol: "AAPL", TradeDate: "2024-05-09", Status: "error", FailedAt: consts.StageRisk},
		},
		NextCursor: 7,
		HasMore:    true,
	}}

	next, err := NewResultsManager(src, &out).ListSessions(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(7), next)
	text := out.String()
	assert.Contains(t, text, "NVDA")
	assert.Contains(t, text, "65%")
	assert.Contains(t, text, "error@Risk")
	assert.Contains(t, text, "--cursor 7")
}

func TestResultsManagerShowsTranscript(t *testing.T) {
	var out bytes.Buffer
	src := &fakeHistory{
		detail: &service.SessionDetail{
			SessionRecord: models.SessionRecord{ID: "s1", Symbol: "AAPL", TradeDate: "2024-05-10", Status: "done", Stage: consts.StageTrader},
			Decision:      &models.Decision{Action: models.ActionHold, Confidence: 0.5},
		},
		msgs: []models.MessageRecord{
			{Stage: consts.StageAnalyst, Agent: consts.NewsAnalyst, Seq: 1, Content: "quiet tape", Degraded: true},
			{Stage: consts.StageDebate, Agent: "Bull Analyst", Seq: 2, Content: "buy the dip"},
		},
	}

	rm := NewResultsManager(src, &out)
	require.NoError(t, rm.ShowSession(context.Background(), "s1", true))
	text := out.String()
	assert.Contains(t, text, "HOLD")
	assert.Contains(t, text, "▶ Debate")
	assert.Contains(t, text, "news_analyst [degraded]:")
	assert.Contains(t, text, "buy the dip")

	src.detail = nil
	assert.ErrorIs(t, rm.ShowSession(context.Background(), "nope", false), service.ErrNotFound)
}

func TestResultsManagerReflect(t *testing.T) {
	var out bytes.Buffer
	src := &fakeHistory{lessons: []models.MemoryRecord{{Outcome: "gain +5.00%", Lesson: "ride the trend"}}}

	require.NoError(t, NewResultsManager(src, &out).Reflect(context.Background(), "s1", 0.05))
	assert.Contains(t, out.String(), "gain +5.00%:")
	assert.Contains(t, out.String(), "stored 1 lessons")
}

func TestValidateDate(t *testing.T) {
	assert.NoError(t, validateDate(""))
	assert.NoError(t, validateDate("2024-05-10"))
	assert.Error(t, validateDate("10/05/2024"))
	assert.Error(t, validateDate(time.Now().AddDate(0, 0, 3).Format("2006-01-02")))
}

func TestDisplayResultForFailure(t *testing.T) {
	var out bytes.Buffer
	DisplayResult(&out, &service.Result{SessionID: "s9", Status: "error", FailedAt: consts.StageTrader, Error: "trader offline"})
	assert.Contains(t, out.String(), "No decision")
	assert.Contains(t, out.String(), "trader offline")
}
