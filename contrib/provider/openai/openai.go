package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"

	"github.com/sweetpotato0/wanderai/llm"
	"github.com/sweetpotato0/wanderai/message"
)

// Config holds OpenAI provider configuration
type Config struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
}

// WithBaseURL set BaseURL.
func (cfg *Config) WithBaseURL(url string) *Config {
	cfg.BaseURL = url
	return cfg
}

// WithAPIKey set api key.
func (cfg *Config) WithAPIKey(apiKey string) *Config {
	cfg.APIKey = apiKey
	return cfg
}

// WithModel set model.
func (cfg *Config) WithModel(model string) *Config {
	cfg.Model = model
	return cfg
}

// DefaultConfig returns default OpenAI configuration
func DefaultConfig() *Config {
	return &Config{
		Name:  "openai",
		Model: string(openai.ChatModelGPT4oMini),
	}
}

// Provider implements llm.Provider for OpenAI-compatible chat completions.
type Provider struct {
	config *Config
	client openai.Client
}

var _ llm.Provider = (*Provider)(nil)

// New creates a new OpenAI provider using official SDK
func New(config *Config) *Provider {
	if config.Model == "" {
		config.Model = string(openai.ChatModelGPT4oMini)
	}
	if config.Name == "" {
		config.Name = "openai"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &Provider{
		config: config,
		client: openai.NewClient(options...),
	}
}

// Name implements llm.Provider.
func (p *Provider) Name() string {
	return p.config.Name
}

// Model returns the configured model.
func (p *Provider) Model() string {
	return p.config.Model
}

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, req llm.Request) (string, error) {
	params := BuildParams(p.config.Model, req)

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", p.config.Name, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from %s", p.config.Name)
	}
	return completion.Choices[0].Message.Content, nil
}

// BuildParams converts a request to chat completion parameters.
func BuildParams(model string, req llm.Request) openai.ChatCompletionNewParams {
	msgs := req.Messages()
	openAIMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleSystem:
			openAIMessages = append(openAIMessages, openai.SystemMessage(msg.Content))
		case message.RoleUser:
			openAIMessages = append(openAIMessages, openai.UserMessage(msg.Content))
		case message.RoleAssistant:
			openAIMessages = append(openAIMessages, openai.AssistantMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages:    openAIMessages,
		Model:       openai.ChatModel(model),
		Temperature: param.NewOpt(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}
