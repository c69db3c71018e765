package researchers

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/llm/llmtest"
	"github.com/dyike/CortexAgents/models"
)

func TestBearSeesBullArgumentAndOwnHistory(t *testing.T) {
	c := llmtest.New().Always(consts.BearResearcher, "Bear Analyst: valuation is stretched")
	log := models.NewDebateState(2)
	log.Utterances = []models.Utterance{
		{Role: models.RoleBull, Content: "momentum is strong"},
		{Role: models.RoleBear, Content: "volumes are thin"},
		{Role: models.RoleBull, Content: "ETF inflows keep rising"},
	}

	out, err := NewBearResearcher(c).Speak(context.Background(), agents.Turn{
		Symbol:  "BTC-USD",
		Reports: []models.AnalystReport{{Kind: models.KindNews, Findings: "ETF approved"}},
		Log:     &log,
		Memories: []models.MemoryMatch{
			{Record: models.MemoryRecord{Lesson: "do not chase ETF headlines", Outcome: "-3%"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "valuation is stretched", out)

	msgs := c.Calls(consts.BearResearcher)[0].Messages
	require.Len(t, msgs, 5)
	assert.Contains(t, msgs[0].Content, "Last bull argument: ETF inflows keep rising")
	assert.Contains(t, msgs[0].Content, "do not chase ETF headlines (outcome: -3%)")
	assert.Contains(t, msgs[0].Content, "ETF approved")
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Equal(t, "Bull Analyst: momentum is strong", msgs[1].Content)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	assert.Equal(t, schema.User, msgs[4].Role)
}

func TestBullOpensWithoutHistory(t *testing.T) {
	c := llmtest.New().Always(consts.BullResearcher, "strong buy case")
	log := models.NewDebateState(1)

	out, err := NewBullResearcher(c).Speak(context.Background(), agents.Turn{Symbol: "AAPL", Log: &log})
	require.NoError(t, err)
	assert.Equal(t, "strong buy case", out)

	msgs := c.Calls(consts.BullResearcher)[0].Messages
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "None yet.")
	assert.Contains(t, msgs[0].Content, "No past memories found.")
	assert.Equal(t, models.RoleBull, NewBullResearcher(c).Role())
}
