package analysts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/dataflows/datatest"
	"github.com/dyike/CortexAgents/internal/llm/llmtest"
	"github.com/dyike/CortexAgents/models"
)

var tradeDate = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

func subject() agents.Subject {
	return agents.Subject{Symbol: "BTC-USD", TradeDate: tradeDate, IsCrypto: true, LookbackDays: 90}
}

func TestMarketAnalystRendersBarsAndIndicators(t *testing.T) {
	src := datatest.NewSource(tradeDate)
	c := llmtest.New().Always(consts.MarketAnalyst, "uptrend intact")

	report, err := NewMarketAnalyst(c, src).Produce(context.Background(), subject())
	require.NoError(t, err)
	assert.Equal(t, models.KindTechnical, report.Kind)
	assert.Equal(t, "uptrend intact", report.Findings)
	assert.False(t, report.Degraded)

	calls := c.Calls(consts.MarketAnalyst)
	require.Len(t, calls, 1)
	system := calls[0].Messages[0]
	assert.Equal(t, schema.System, system.Role)
	assert.Contains(t, system.Content, "BTC-USD")
	assert.Contains(t, system.Content, "cryptocurrency")
	assert.Contains(t, system.Content, "rsi_14")
	assert.Contains(t, system.Content, "date,open,high,low,close,volume")
}

func TestAnalystDegradesWhenDataFails(t *testing.T) {
	src := datatest.NewSource(tradeDate)
	src.NewsErr = errors.New("news vendor down")
	c := llmtest.New().Always(consts.NewsAnalyst, "little news signal")

	report, err := NewNewsAnalyst(c, src).Produce(context.Background(), subject())
	require.NoError(t, err)
	assert.True(t, report.Degraded)
	assert.Contains(t, report.Note, "news vendor down")
	assert.Equal(t, "little news signal", report.Findings)

	system := c.Calls(consts.NewsAnalyst)[0].Messages[0].Content
	assert.Contains(t, system, "could not be retrieved")
}

func TestAnalystPropagatesInferenceFailure(t *testing.T) {
	src := datatest.NewSource(tradeDate)
	c := llmtest.New().Fail(consts.FundamentalsAnalyst, errors.New("model offline"))

	_, err := NewFundamentalsAnalyst(c, src).Produce(context.Background(), subject())
	assert.ErrorContains(t, err, "model offline")
}

func TestEveryAnalystHasDistinctKind(t *testing.T) {
	src := datatest.NewSource(tradeDate)
	c := llmtest.New().Default("ok")
	team := []agents.Analyst{
		NewMarketAnalyst(c, src),
		NewFundamentalsAnalyst(c, src),
		NewSocialAnalyst(c, src),
		NewNewsAnalyst(c, src),
	}

	seen := map[models.AnalystKind]bool{}
	for _, a := range team {
		report, err := a.Produce(context.Background(), subject())
		require.NoError(t, err)
		assert.Equal(t, a.Kind(), report.Kind)
		assert.Equal(t, a.Name(), report.Agent)
		seen[a.Kind()] = true
	}
	assert.Len(t, seen, len(models.AllAnalystKinds))
}

func TestFormatFundamentalsSortsMetrics(t *testing.T) {
	out := formatFundamentals(models.Fundamentals{
		Symbol: "AAPL", Name: "Apple", Source: "yahoo",
		Metrics: map[string]float64{"trailing_pe": 28.5, "market_cap": 3e12},
		Notes:   []string{"fiscal year ends in September"},
	})
	assert.Equal(t, "Apple (AAPL), source yahoo\n- market_cap: 3e+12\n- trailing_pe: 28.5\nNote: fiscal year ends in September\n", out)
}
