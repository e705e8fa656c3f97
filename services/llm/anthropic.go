package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicClient struct {
	client      *anthropic.Client
	model       anthropic.Model
	temperature float64
}

func NewAnthropicClient(apiKey, modelName string, temperature float64) *AnthropicClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	model := anthropic.Model(modelName)
	if modelName == "" {
		model = anthropic.ModelClaude4Sonnet20250514
	}

	return &AnthropicClient{
		client:      &client,
		model:       model,
		temperature: temperature,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	response, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to call Anthropic API: %w", err)
	}

	var text strings.Builder
	for _, block := range response.Content {
		switch block := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", Permanent(fmt.Errorf("anthropic response contained no text (stop reason: %s)", response.StopReason))
	}

	return text.String(), nil
}
