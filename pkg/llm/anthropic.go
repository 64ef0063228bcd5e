package llm

import (
	"context"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// anthropicMaxTokens bounds completion length for diagram generation; a
// full replacement graph for a large schema fits comfortably.
const anthropicMaxTokens = 8192

// AnthropicClient serves `claude-*` model ids through the Anthropic
// Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	logger *zap.Logger
}

// NewAnthropicClient creates an Anthropic-backed provider.
func NewAnthropicClient(apiKey string, logger *zap.Logger) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey),
		logger: logger.Named("llm.anthropic"),
	}
}

// Name implements Provider.
func (c *AnthropicClient) Name() string { return "anthropic" }

// Generate implements Provider.
func (c *AnthropicClient) Generate(ctx context.Context, prompt, systemMessage, model string) (string, error) {
	c.logger.Debug("provider request",
		zap.String("model", model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		System:    systemMessage,
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		c.logger.Error("provider request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", ClassifyError(err)
	}

	text := resp.GetFirstContentText()
	if text == "" {
		return "", &Error{Type: ErrorTypeServer, Message: "empty completion", Retryable: true}
	}

	c.logger.Info("provider request completed",
		zap.String("model", model),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return text, nil
}

// Ensure AnthropicClient implements Provider at compile time.
var _ Provider = (*AnthropicClient)(nil)
