// Package modelclient adapts the OpenAI chat-completion API to the chat
// engine's ModelClient interface.
package modelclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/lumohq/ops-assistant/internal/domain/chat"
)

type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

var _ chat.ModelClient = (*Client)(nil)

// New builds a client for the given API key and model. baseURL overrides
// the OpenAI endpoint for compatible providers; empty means api.openai.com.
func New(apiKey, baseURL, model string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

// Complete sends one chat-completion request with a bounded overall
// timeout. Context-length failures are wrapped in
// chat.ErrContextLengthExceeded so the engine can report them distinctly.
func (c *Client) Complete(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
	})
	if err != nil {
		if isContextLength(err) {
			return openai.ChatCompletionMessage{}, fmt.Errorf("chat completion: %w", chat.ErrContextLengthExceeded)
		}
		return openai.ChatCompletionMessage{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, errors.New("chat completion: response contains no choices")
	}
	return resp.Choices[0].Message, nil
}

// isContextLength recognizes the provider's context-window rejection in its
// structured code or, for compatible providers that only set text, in the
// message body.
func isContextLength(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && code == "context_length_exceeded" {
			return true
		}
		msg := strings.ToLower(apiErr.Message)
		return strings.Contains(msg, "context length") || strings.Contains(msg, "maximum context")
	}
	return false
}
