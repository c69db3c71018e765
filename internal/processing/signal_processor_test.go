package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAgents/models"
)

func TestExtractAction(t *testing.T) {
	sp := NewSignalProcessor()
	tests := []struct {
		name string
		text string
		want models.Action
		ok   bool
	}{
		{"bold", "Plan...\nFINAL TRANSACTION PROPOSAL: **BUY**", models.ActionBuy, true},
		{"plain lower", "final transaction proposal: sell", models.ActionSell, true},
		{"last wins", "FINAL TRANSACTION PROPOSAL: **BUY**\nrevised\nFINAL TRANSACTION PROPOSAL: **HOLD**", models.ActionHold, true},
		{"missing", "I would probably buy", "", false},
		{"template placeholder", "FINAL TRANSACTION PROPOSAL: **BUY/HOLD/SELL**", models.ActionBuy, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sp.ExtractAction(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractConfidence(t *testing.T) {
	sp := NewSignalProcessor()

	v, ok := sp.ExtractConfidence("Confidence: 72%")
	require.True(t, ok)
	assert.InDelta(t, 0.72, v, 1e-9)

	v, ok = sp.ExtractConfidence("confidence 0.4")
	require.True(t, ok)
	assert.InDelta(t, 0.4, v, 1e-9)

	v, ok = sp.ExtractConfidence("Confidence: 250")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, ok = sp.ExtractConfidence("no number here")
	assert.False(t, ok)
}

func TestInferAction(t *testing.T) {
	sp := NewSignalProcessor()
	assert.Equal(t, models.ActionBuy, sp.InferAction("bullish breakout, accumulate on dips"))
	assert.Equal(t, models.ActionSell, sp.InferAction("bearish breakdown, exit now"))
	assert.Equal(t, models.ActionHold, sp.InferAction("buy or sell, unclear"))
}

func TestExtractJSONFromFence(t *testing.T) {
	sp := NewSignalProcessor()
	obj, err := sp.ExtractJSON("Here you go:\n```json\n{\"converged\": true}\n```\nthanks")
	require.NoError(t, err)
	assert.JSONEq(t, `{"converged": true}`, obj)

	_, err = sp.ExtractJSON("no json")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestParseConvergence(t *testing.T) {
	sp := NewSignalProcessor()

	ok, reason, err := sp.ParseConvergence(`{"converged": true, "reason": "bear conceded"}`)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bear conceded", reason)

	ok, _, err = sp.ParseConvergence(`{"converged": "true"}`)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = sp.ParseConvergence(`{"reason": "x"}`)
	assert.Error(t, err)
}

func TestParseStance(t *testing.T) {
	sp := NewSignalProcessor()

	s := sp.ParseStance("```json\n{\"stance\": \"buy\", \"confidence\": 80, \"rationale\": \"momentum\"}\n```")
	assert.Equal(t, Stance{Action: models.ActionBuy, Confidence: 0.8, Rationale: "momentum", Structured: true}, s)

	s = sp.ParseStance("Overall bearish, I recommend we exit. Confidence: 65%")
	assert.False(t, s.Structured)
	assert.Equal(t, models.ActionSell, s.Action)
	assert.InDelta(t, 0.65, s.Confidence, 1e-9)

	s = sp.ParseStance(`{"stance": "maybe"}`)
	assert.False(t, s.Structured)
	assert.Equal(t, 0.5, s.Confidence)
}
