// Package openai connects fncall to any OpenAI-compatible chat completions
// endpoint (OpenAI, vLLM, LM Studio, Ollama's /v1).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/skosovsky/fncall"
)

// Client adapts an *openai.Client to fncall.ChatModel.
type Client struct {
	api    *openai.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a Client for apiKey. baseURL overrides the OpenAI endpoint when set.
func New(apiKey, baseURL string, opts ...Option) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	c := &Client{api: openai.NewClientWithConfig(cfg)}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Chat sends a chat completion with req.Tools as function tools and returns
// the first choice. Streaming is not supported; req.Stream is ignored.
func (c *Client) Chat(ctx context.Context, req fncall.ChatRequest) (fncall.ChatResponse, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: msgs,
		Tools:    convertTools(req.Tools),
	})
	if err != nil {
		return fncall.ChatResponse{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fncall.ChatResponse{}, errors.New("openai chat completion: no choices returned")
	}
	choice := resp.Choices[0].Message
	calls, err := toolCalls(choice.ToolCalls)
	if err != nil {
		return fncall.ChatResponse{}, err
	}
	c.logger.DebugContext(ctx, "openai chat done", "model", req.Model, "tool_calls", len(calls), "finish_reason", resp.Choices[0].FinishReason)
	return fncall.ChatResponse{
		Message:   fncall.Message{Role: choice.Role, Content: choice.Content},
		ToolCalls: calls,
	}, nil
}

func convertTools(schemas []fncall.ToolSchema) []openai.Tool {
	if len(schemas) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(schemas))
	for _, s := range schemas {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.JSONSchema(),
			},
		})
	}
	return tools
}

// toolCalls converts the response tool calls. The index comes from the
// response when present, otherwise from the call's position.
func toolCalls(calls []openai.ToolCall) ([]fncall.ToolCall, error) {
	out := make([]fncall.ToolCall, 0, len(calls))
	for i, tc := range calls {
		index := i
		if tc.Index != nil {
			index = *tc.Index
		}
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("decode arguments of %s: %w", tc.Function.Name, err)
			}
			if args == nil {
				args = map[string]any{}
			}
		}
		out = append(out, fncall.ToolCall{Name: tc.Function.Name, Index: index, Arguments: args})
	}
	return out, nil
}

var _ fncall.ChatModel = (*Client)(nil)
