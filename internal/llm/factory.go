package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/CortexAgents/config"
	"github.com/dyike/CortexAgents/internal/utils"
)

var defaultBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"ollama":     "http://localhost:11434/v1",
}

// NewChatModel builds the eino chat model for the configured provider.
func NewChatModel(ctx context.Context, cfg config.Config, modelName string) (model.BaseChatModel, error) {
	provider := strings.ToLower(cfg.LLMProvider)
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("%s api key is required", provider)
	}

	switch provider {
	case "deepseek":
		return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    apiKey,
			Model:     modelName,
			MaxTokens: cfg.MaxTokens,
		})
	case "openai", "openrouter", "ollama":
		baseURL := cfg.BackendURL
		if baseURL == "" {
			baseURL = defaultBaseURLs[provider]
		}
		maxTokens := cfg.MaxTokens
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   baseURL,
			APIKey:    apiKey,
			Model:     modelName,
			MaxTokens: &maxTokens,
		})
	}
	return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
}

// RetryPolicy derives the inference retry policy from cfg.
func RetryPolicy(cfg config.Config) utils.RetryPolicy {
	p := utils.DefaultRetryPolicy()
	p.MaxAttempts = cfg.RetryAttempts
	if cfg.RetryBaseMillis > 0 {
		p.BaseDelay = time.Duration(cfg.RetryBaseMillis) * time.Millisecond
	}
	return p
}

// NewModels wires the deep and quick completers. When both names match a
// single chat model is shared.
func NewModels(ctx context.Context, cfg config.Config) (*Models, error) {
	opts := []Option{
		WithTimeout(time.Duration(cfg.AgentTimeoutSec) * time.Second),
		WithRetry(RetryPolicy(cfg)),
	}

	deepModel, err := NewChatModel(ctx, cfg, cfg.DeepThinkLLM)
	if err != nil {
		return nil, fmt.Errorf("deep think model: %w", err)
	}
	deep, err := NewEinoCompleter(ctx, deepModel, cfg.DeepThinkLLM, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.QuickThinkLLM == cfg.DeepThinkLLM {
		return &Models{Deep: deep, Quick: deep}, nil
	}

	quickModel, err := NewChatModel(ctx, cfg, cfg.QuickThinkLLM)
	if err != nil {
		return nil, fmt.Errorf("quick think model: %w", err)
	}
	quick, err := NewEinoCompleter(ctx, quickModel, cfg.QuickThinkLLM, opts...)
	if err != nil {
		return nil, err
	}
	return &Models{Deep: deep, Quick: quick}, nil
}
