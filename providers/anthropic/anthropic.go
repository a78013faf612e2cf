// Package anthropic connects fncall to the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/skosovsky/fncall"
)

// DefaultMaxTokens bounds the response when no WithMaxTokens option is given.
const DefaultMaxTokens = 1024

// Client adapts an anthropic.Client to fncall.ChatModel.
type Client struct {
	api       anthropic.Client
	maxTokens int64
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int64) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a Client. requestOpts are passed to the SDK (API key, base URL, retries).
func New(requestOpts []option.RequestOption, opts ...Option) *Client {
	c := &Client{api: anthropic.NewClient(requestOpts...), maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Chat sends one Messages request. System messages become the system prompt;
// tool_use blocks of the reply become tool calls indexed by their position.
func (c *Client) Chat(ctx context.Context, req fncall.ChatRequest) (fncall.ChatResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: c.maxTokens,
		Tools:     convertTools(req.Tools),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case fncall.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case fncall.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return fncall.ChatResponse{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	var calls []fncall.ToolCall
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			args, err := argumentMap(b.Input)
			if err != nil {
				return fncall.ChatResponse{}, fmt.Errorf("decode arguments of %s: %w", b.Name, err)
			}
			calls = append(calls, fncall.ToolCall{Name: b.Name, Index: len(calls), Arguments: args})
		}
	}
	c.logger.DebugContext(ctx, "anthropic chat done", "model", req.Model, "tool_calls", len(calls), "stop_reason", msg.StopReason)
	return fncall.ChatResponse{
		Message:   fncall.Message{Role: fncall.RoleAssistant, Content: text.String()},
		ToolCalls: calls,
	}, nil
}

func convertTools(schemas []fncall.ToolSchema) []anthropic.ToolUnionParam {
	if len(schemas) == 0 {
		return nil
	}
	tools := make([]anthropic.ToolUnionParam, 0, len(schemas))
	for _, s := range schemas {
		js := s.JSONSchema()
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        s.Name,
			Description: anthropic.String(s.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: js.Properties,
				Required:   js.Required,
			},
		}})
	}
	return tools
}

func argumentMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	args := map[string]any{}
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

var _ fncall.ChatModel = (*Client)(nil)
