package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient serves OpenAI-compatible endpoints. Google's Gemini models
// are reachable through the same wire protocol, so `gemini-*` ids route
// here with a different base URL.
type OpenAIClient struct {
	client *openai.Client
	name   string
	logger *zap.Logger
}

// OpenAIConfig holds configuration for creating an OpenAI-compatible client.
type OpenAIConfig struct {
	BaseURL string // e.g. "https://api.openai.com/v1"
	APIKey  string
	Name    string // vendor name for logging, e.g. "openai" or "gemini"
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(cfg *OpenAIConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	name := cfg.Name
	if name == "" {
		name = "openai"
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		name:   name,
		logger: logger.Named("llm." + name),
	}, nil
}

// Name implements Provider.
func (c *OpenAIClient) Name() string { return c.name }

// Generate implements Provider.
func (c *OpenAIClient) Generate(ctx context.Context, prompt, systemMessage, model string) (string, error) {
	c.logger.Debug("provider request",
		zap.String("model", model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		c.logger.Error("provider request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", ClassifyError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Type: ErrorTypeServer, Message: "no choices in response", Retryable: true}
	}

	c.logger.Info("provider request completed",
		zap.String("model", model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// Ensure OpenAIClient implements Provider at compile time.
var _ Provider = (*OpenAIClient)(nil)
