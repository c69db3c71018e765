package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/dataflows/datatest"
)

func TestReflectStoresLessonPerContributor(t *testing.T) {
	c := scripted()
	c.Always(consts.Reflector, "Buying strength worked; keep sizing modest.")
	e := newEngine(t, c, datatest.NewSource(tradeDate))

	s, err := e.Orchestrator.NewSession("BTC-USD", tradeDate)
	require.NoError(t, err)
	_, err = e.Orchestrator.RunSession(context.Background(), s)
	require.NoError(t, err)

	records, err := e.Reflector.Reflect(context.Background(), s, 0.052)
	require.NoError(t, err)
	assert.Len(t, records, 5)
	agents := make([]string, 0, len(records))
	for _, r := range records {
		assert.Equal(t, "gain +5.20%", r.Outcome)
		assert.Equal(t, s.Situation(), r.Situation)
		agents = append(agents, r.Agent)
	}
	assert.ElementsMatch(t, []string{consts.BullResearcher, consts.BearResearcher, consts.ResearchManager, consts.RiskJudge, consts.Trader}, agents)

	matches, err := e.Memory.For(consts.Trader).Retrieve(context.Background(), s.Situation(), 2)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, consts.Trader, matches[0].Record.Agent)

	prompt := c.Calls(consts.Reflector)[0].Messages[0].Content
	assert.Contains(t, prompt, "+5.20%")
	assert.Contains(t, prompt, consts.Agent_BullResearcher)
}

func TestReflectRequiresDecision(t *testing.T) {
	e := newEngine(t, scripted(), datatest.NewSource(tradeDate))
	s, err := e.Orchestrator.NewSession("BTC-USD", tradeDate)
	require.NoError(t, err)

	_, err = e.Reflector.Reflect(context.Background(), s, 0.1)
	assert.ErrorIs(t, err, ErrNoDecision)
}

func TestReflectReportsFailures(t *testing.T) {
	c := scripted()
	c.Fail(consts.Reflector, errors.New("unavailable"))
	e := newEngine(t, c, datatest.NewSource(tradeDate))
	s, err := e.Orchestrator.NewSession("BTC-USD", tradeDate)
	require.NoError(t, err)
	_, err = e.Orchestrator.RunSession(context.Background(), s)
	require.NoError(t, err)

	records, err := e.Reflector.Reflect(context.Background(), s, -0.03)
	assert.Empty(t, records)
	assert.ErrorContains(t, err, "unavailable")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "gain +1.50%", Outcome(0.015))
	assert.Equal(t, "loss -2.00%", Outcome(-0.02))
	assert.Equal(t, "flat", Outcome(0))
}
