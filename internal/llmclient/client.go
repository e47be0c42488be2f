// Package llmclient is a thin HTTP wrapper around a chat-completions
// endpoint compatible with the OpenAI-style /v1/chat/completions
// contract. It is safe for concurrent use; every call may suspend.
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/axonforge/engine/internal/config"
	"github.com/axonforge/engine/pkg/domain"
)

// Client wraps go-openai against any compatible endpoint.
type Client struct {
	api        *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

// Message is one entry in a multi-turn conversation.
type Message struct {
	Role    string
	Content string
}

// New builds a Client from LLM config.
func New(cfg config.LLMConfig) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &Client{
		api:        openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		timeout:    timeout,
		maxRetries: maxRetries,
		retryDelay: time.Second,
	}
}

// Generate sends one prompt (with an optional system message) and returns
// the assistant reply's text content. Fails with a wrapped ErrLLM on
// a failed request or an empty response, and with a wrapped ErrTimeout
// when the client's deadline passes.
func (c *Client) Generate(ctx context.Context, prompt, system string, temperature float32, maxTokens int) (string, error) {
	messages := make([]Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, Message{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, Message{Role: openai.ChatMessageRoleUser, Content: prompt})
	return c.Chat(ctx, messages, temperature, maxTokens)
}

// GenerateJSON wraps Generate, stripping Markdown code fences and
// returning the remainder as raw JSON when it is valid. On parse failure
// it does not return an error: the returned JSON is instead
// {"raw": text, "error": "parse_failed"}, so callers can continue rather
// than abort.
func (c *Client) GenerateJSON(ctx context.Context, prompt, system string) (json.RawMessage, error) {
	text, err := c.Generate(ctx, prompt, system, 0.0, 0)
	if err != nil {
		return nil, err
	}
	cleaned := stripFences(text)
	if json.Valid([]byte(cleaned)) {
		return json.RawMessage(cleaned), nil
	}
	fallback, marshalErr := json.Marshal(map[string]string{"raw": text, "error": "parse_failed"})
	if marshalErr != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrParse, marshalErr)
	}
	return json.RawMessage(fallback), nil
}

// Chat sends a multi-turn conversation and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, messages []Message, temperature float32, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	if temperature == 0 && !hasExplicitZeroTemp(messages) {
		temperature = 0.7
	}

	oaiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaiMessages = append(oaiMessages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    oaiMessages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %w", domain.ErrTimeout, ctx.Err())
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("%w: empty response", domain.ErrLLM)
			}
			return resp.Choices[0].Message.Content, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}

	if ctx.Err() != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTimeout, ctx.Err())
	}
	return "", fmt.Errorf("%w: %w", domain.ErrLLM, lastErr)
}

func hasExplicitZeroTemp(_ []Message) bool { return false }

// stripFences removes ```json ... ``` or ``` ... ``` wrapping, leaving
// the inner content trimmed.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if firstLine == "" || strings.EqualFold(firstLine, "json") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "429", "500", "502", "503", "504", "timeout", "deadline exceeded", "connection reset"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
