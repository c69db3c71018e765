package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// Completer submits a role context plus the conversation so far and returns
// the model's utterance. msgs[0] is the system message.
type Completer interface {
	Complete(ctx context.Context, agent string, msgs []*schema.Message) (string, error)
}

type CompleterFunc func(ctx context.Context, agent string, msgs []*schema.Message) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, agent string, msgs []*schema.Message) (string, error) {
	return f(ctx, agent, msgs)
}

// Models pairs the deep-think model (judges, trader) with the quick-think
// model (analysts, debaters).
type Models struct {
	Deep  Completer
	Quick Completer
}

// Render formats an FString system template and appends the conversation in order.
func Render(ctx context.Context, system string, vars map[string]any, conversation []*schema.Message) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(system),
		schema.MessagesPlaceholder("conversation", true),
	)

	values := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		values[k] = v
	}
	values["conversation"] = conversation

	msgs, err := tpl.Format(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	return msgs, nil
}
