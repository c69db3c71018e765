package llm

import (
	"context"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/internal/metrics"
)

// newCallbackHandler logs chat model calls and feeds token usage into metrics.
func newCallbackHandler(agent string) callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
			if info == nil || info.Component != components.ComponentOfChatModel {
				return ctx
			}
			if in := model.ConvCallbackInput(input); in != nil {
				logger.Ctx(ctx).Debug().Str("agent", agent).Str("node", info.Name).Int("messages", len(in.Messages)).Msg("llm call start")
			}
			return ctx
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
			if info == nil || info.Component != components.ComponentOfChatModel {
				return ctx
			}
			out := model.ConvCallbackOutput(output)
			if out == nil || out.TokenUsage == nil {
				return ctx
			}
			metrics.LLMTokensTotal.WithLabelValues("prompt").Add(float64(out.TokenUsage.PromptTokens))
			metrics.LLMTokensTotal.WithLabelValues("completion").Add(float64(out.TokenUsage.CompletionTokens))
			logger.Ctx(ctx).Debug().
				Str("agent", agent).
				Int("prompt_tokens", out.TokenUsage.PromptTokens).
				Int("completion_tokens", out.TokenUsage.CompletionTokens).
				Msg("llm call end")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			name := ""
			if info != nil {
				name = info.Name
			}
			logger.Ctx(ctx).Debug().Err(err).Str("agent", agent).Str("node", name).Msg("llm call error")
			return ctx
		}).
		Build()
}
