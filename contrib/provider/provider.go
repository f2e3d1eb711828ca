// Package provider builds the configured chat-completion providers.
package provider

import (
	"context"
	"fmt"

	"github.com/sweetpotato0/wanderai/config"
	"github.com/sweetpotato0/wanderai/contrib/provider/claude"
	"github.com/sweetpotato0/wanderai/contrib/provider/gemini"
	"github.com/sweetpotato0/wanderai/contrib/provider/groq"
	"github.com/sweetpotato0/wanderai/contrib/provider/openai"
	"github.com/sweetpotato0/wanderai/errors"
	"github.com/sweetpotato0/wanderai/llm"
	"github.com/sweetpotato0/wanderai/pkg/logging"
)

// FromConfig returns the primary and fallback providers in call order.
// Providers without an API key are skipped.
func FromConfig(ctx context.Context, cfg config.LLMConfig) ([]llm.Provider, error) {
	logger := logging.WithComponent("provider")

	var providers []llm.Provider
	seen := map[string]bool{}
	for _, name := range []string{cfg.Primary, cfg.Fallback} {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		p, err := build(ctx, name, cfg)
		if err != nil {
			logger.Warn("provider unavailable", "provider", name, "error", err)
			continue
		}
		logger.Info("provider configured", "provider", name)
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: set an API key for %q or %q", errors.ErrNoProvider, cfg.Primary, cfg.Fallback)
	}
	return providers, nil
}

func build(ctx context.Context, name string, cfg config.LLMConfig) (llm.Provider, error) {
	switch name {
	case config.ProviderGroq:
		if cfg.GroqAPIKey == "" {
			return nil, missingKey(name)
		}
		return groq.New(&groq.Config{APIKey: cfg.GroqAPIKey, BaseURL: cfg.GroqBaseURL, Model: cfg.GroqModel}), nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, missingKey(name)
		}
		return openai.New(&openai.Config{Name: name, APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL, Model: cfg.OpenAIModel}), nil
	case config.ProviderClaude:
		if cfg.ClaudeAPIKey == "" {
			return nil, missingKey(name)
		}
		c := claude.DefaultConfig(cfg.ClaudeAPIKey, "")
		if cfg.ClaudeModel != "" {
			c.Model = cfg.ClaudeModel
		}
		return claude.New(c), nil
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, missingKey(name)
		}
		return gemini.New(ctx, &gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
	}
	return nil, fmt.Errorf("%w: unknown provider %q", errors.ErrInvalidInput, name)
}

func missingKey(name string) error {
	return fmt.Errorf("%w: no API key for %s", errors.ErrNoProvider, name)
}

// NewService builds the generation service from configuration.
func NewService(ctx context.Context, cfg config.LLMConfig, opts ...llm.Option) (*llm.Service, error) {
	providers, err := FromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	base := []llm.Option{
		llm.WithTimeout(cfg.Timeout),
		llm.WithAttemptTimeout(cfg.AttemptTimeout),
		llm.WithRetries(cfg.MaxRetries, cfg.RetryBackoff),
		llm.WithMaxTokens(cfg.MaxTokens),
	}
	return llm.NewService(providers, append(base, opts...)...)
}
