package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient sends each prompt as a single user message.
type AnthropicClient struct {
	model  string
	client anthropic.Client
}

// NewAnthropic creates an Anthropic-backed Completer. SDK-level retries are
// disabled; wrap with Retrying for backoff.
func NewAnthropic(model string, opts ...option.RequestOption) *AnthropicClient {
	opts = append([]option.RequestOption{option.WithMaxRetries(0)}, opts...)
	return &AnthropicClient{
		model:  model,
		client: anthropic.NewClient(opts...),
	}
}

// Complete returns the concatenated text blocks of the reply.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string, maxOutput int) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxOutput),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}

	var result strings.Builder
	found := false
	for _, block := range resp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
			found = true
		}
	}
	if !found {
		return "", ErrNoText
	}

	return result.String(), nil
}
