package llm

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesVarsAndKeepsConversation(t *testing.T) {
	conversation := []*schema.Message{
		schema.UserMessage("Bear Analyst: volumes are fading"),
		schema.AssistantMessage("Bull Analyst: breakout confirmed", nil),
	}

	msgs, err := Render(context.Background(),
		"You analyse {symbol} on {trade_date}. Reply as {{\"stance\": ...}}",
		map[string]any{"symbol": "AAPL", "trade_date": "2024-05-10"},
		conversation,
	)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, `You analyse AAPL on 2024-05-10. Reply as {"stance": ...}`, msgs[0].Content)
	assert.Equal(t, "Bear Analyst: volumes are fading", msgs[1].Content)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
}

func TestRenderMissingVariable(t *testing.T) {
	_, err := Render(context.Background(), "hello {name}", map[string]any{}, nil)
	assert.Error(t, err)
}

func TestCompleterFunc(t *testing.T) {
	var c Completer = CompleterFunc(func(_ context.Context, agent string, msgs []*schema.Message) (string, error) {
		return agent + ":" + msgs[0].Content, nil
	})
	out, err := c.Complete(context.Background(), "trader", []*schema.Message{schema.SystemMessage("ctx")})
	require.NoError(t, err)
	assert.Equal(t, "trader:ctx", out)
}
