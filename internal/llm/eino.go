package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/internal/metrics"
	"github.com/dyike/CortexAgents/internal/trace"
	"github.com/dyike/CortexAgents/internal/utils"
)

var ErrEmptyCompletion = errors.New("empty completion")

// EinoCompleter runs a compiled single-node chain around a chat model with
// a per-call timeout and a bounded retry policy.
type EinoCompleter struct {
	runner  compose.Runnable[[]*schema.Message, *schema.Message]
	model   string
	timeout time.Duration
	retry   utils.RetryPolicy
}

type Option func(*EinoCompleter)

func WithTimeout(d time.Duration) Option {
	return func(c *EinoCompleter) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithRetry(p utils.RetryPolicy) Option {
	return func(c *EinoCompleter) {
		c.retry = p
	}
}

func NewEinoCompleter(ctx context.Context, cm model.BaseChatModel, modelName string, opts ...Option) (*EinoCompleter, error) {
	if cm == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(cm, compose.WithNodeName(modelName))
	runner, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chain for %s: %w", modelName, err)
	}

	c := &EinoCompleter{
		runner:  runner,
		model:   modelName,
		timeout: 2 * time.Minute,
		retry:   utils.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *EinoCompleter) Model() string {
	return c.model
}

func (c *EinoCompleter) Complete(ctx context.Context, agent string, msgs []*schema.Message) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Complete",
		attribute.String("agent", agent),
		attribute.String("model", c.model),
	)

	var content string
	attempts, err := c.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		msg, err := c.runner.Invoke(callCtx, msgs, compose.WithCallbacks(newCallbackHandler(agent)))
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("agent", agent).Int("attempt", attempt).Msg("completion failed")
			return err
		}
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			return ErrEmptyCompletion
		}
		content = strings.TrimSpace(msg.Content)
		return nil
	})

	metrics.LLMCallsTotal.WithLabelValues(agent, metrics.Result(err)).Inc()
	trace.End(span, err)
	if err != nil {
		return "", fmt.Errorf("%s completion after %d attempt(s): %w", agent, attempts, err)
	}
	return content, nil
}
