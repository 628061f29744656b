package reviewer

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultClaudeModel is used when no model is configured for Claude.
const DefaultClaudeModel = "claude-haiku-4-5"

// ClaudeCompleter talks to the Anthropic Messages API through the official SDK.
type ClaudeCompleter struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewClaudeCompleter creates a completer. The SDK's own retries are disabled
// because Reviewer retries.
func NewClaudeCompleter(opts Options) *ClaudeCompleter {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	model := opts.Model
	if model == "" {
		model = DefaultClaudeModel
	}

	return &ClaudeCompleter{
		client:      anthropic.NewClient(clientOpts...),
		model:       model,
		maxTokens:   int64(opts.maxTokens()),
		temperature: opts.Temperature,
	}
}

// Model implements Completer.
func (c *ClaudeCompleter) Model() string { return c.model }

// Complete implements Completer.
func (c *ClaudeCompleter) Complete(ctx context.Context, system, user string) (Completion, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if c.temperature > 0 {
		params.Temperature = anthropic.Float(c.temperature)
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return Completion{
		Text:         text.String(),
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}, nil
}
