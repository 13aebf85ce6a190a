// Package ai wraps the OpenAI chat-completion API behind the small surface
// the bot needs: one prompt in, one trimmed completion out.
package ai

import (
	"context"
	"strings"

	"github.com/jlaasanen/dealflow/internal/errors"
	"github.com/sashabaranov/go-openai"
)

// CompletionOptions tune a single generation call.
type CompletionOptions struct {
	MaxTokens   int
	Temperature float32
}

type Client struct {
	client *openai.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		client: openai.NewClient(apiKey),
	}
}

// Complete sends prompt as a single user message and returns the trimmed
// completion text. Failures wrap [errors.ErrGeneration]; callers are expected
// to recover with a fallback value rather than surface the error.
func (c *Client) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:       openai.GPT3Dot5Turbo,
			MaxTokens:   opts.MaxTokens,
			Temperature: opts.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		},
	)
	if err != nil {
		return "", errors.Wrap(errors.Join(errors.ErrGeneration, err), "create chat completion")
	}
	if len(completion.Choices) == 0 {
		return "", errors.Wrap(errors.ErrGeneration, "completion returned no choices")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
