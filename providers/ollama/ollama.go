// Package ollama connects fncall to an Ollama server: chat with tools, model
// template lookup for the tool-support gate, and the local model listing.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/skosovsky/fncall"
)

// DefaultHost is used when neither the config nor OLLAMA_HOST names a server.
const DefaultHost = "http://localhost:11434"

// Client adapts an *api.Client to the fncall boundaries.
type Client struct {
	api     *api.Client
	logger  *slog.Logger
	options map[string]any
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithModelOptions passes model parameters (temperature, num_ctx, ...) with every chat.
func WithModelOptions(opts map[string]any) Option {
	return func(c *Client) {
		c.options = opts
	}
}

// New wraps an existing API client.
func New(client *api.Client, opts ...Option) *Client {
	c := &Client{api: client}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Dial returns a Client for the server at host (DefaultHost when empty).
func Dial(host string, timeout time.Duration, opts ...Option) (*Client, error) {
	if host == "" {
		host = DefaultHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return New(api.NewClient(u, &http.Client{Timeout: timeout}), opts...), nil
}

// Chat sends a non-streaming chat request with req.Tools attached.
func (c *Client) Chat(ctx context.Context, req fncall.ChatRequest) (fncall.ChatResponse, error) {
	tools, err := convertTools(req.Tools)
	if err != nil {
		return fncall.ChatResponse{}, err
	}
	stream := false
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: convertMessages(req.Messages),
		Tools:    tools,
		Stream:   &stream,
		Options:  c.options,
	}
	var last api.ChatResponse
	if err := c.api.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		last = resp
		return nil
	}); err != nil {
		return fncall.ChatResponse{}, fmt.Errorf("ollama chat: %w", err)
	}
	calls, err := toolCalls(last.Message.ToolCalls)
	if err != nil {
		return fncall.ChatResponse{}, err
	}
	c.logger.DebugContext(ctx, "ollama chat done", "model", req.Model, "tool_calls", len(calls), "done_reason", last.DoneReason)
	return fncall.ChatResponse{
		Message:   fncall.Message{Role: last.Message.Role, Content: last.Message.Content},
		ToolCalls: calls,
	}, nil
}

// ModelTemplate returns the prompt template reported by /api/show.
func (c *Client) ModelTemplate(ctx context.Context, model string) (string, error) {
	resp, err := c.api.Show(ctx, &api.ShowRequest{Model: model})
	if err != nil {
		return "", err
	}
	return resp.Template, nil
}

// ListModels returns the locally available models with their sizes.
func (c *Client) ListModels(ctx context.Context) ([]fncall.ModelInfo, error) {
	resp, err := c.api.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]fncall.ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		out = append(out, fncall.ModelInfo{Name: m.Name, Size: m.Size})
	}
	return out, nil
}

func convertMessages(msgs []fncall.Message) []api.Message {
	out := make([]api.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, api.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// toolEnvelope is the wire shape of one tool in an Ollama chat request.
type toolEnvelope struct {
	Type     string            `json:"type"`
	Function fncall.ToolSchema `json:"function"`
}

// convertTools goes through the JSON wire shape so the schema lands in
// api.Tool exactly as the server would read it.
func convertTools(schemas []fncall.ToolSchema) (api.Tools, error) {
	if len(schemas) == 0 {
		return nil, nil
	}
	envelopes := make([]toolEnvelope, 0, len(schemas))
	for _, s := range schemas {
		envelopes = append(envelopes, toolEnvelope{Type: "function", Function: s})
	}
	data, err := json.Marshal(envelopes)
	if err != nil {
		return nil, fmt.Errorf("encode tools: %w", err)
	}
	var tools api.Tools
	if err := json.Unmarshal(data, &tools); err != nil {
		return nil, fmt.Errorf("convert tools: %w", err)
	}
	return tools, nil
}

func toolCalls(calls []api.ToolCall) ([]fncall.ToolCall, error) {
	out := make([]fncall.ToolCall, 0, len(calls))
	for _, tc := range calls {
		args, err := argumentMap(tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("decode arguments of %s: %w", tc.Function.Name, err)
		}
		out = append(out, fncall.ToolCall{
			Name:      tc.Function.Name,
			Index:     tc.Function.Index,
			Arguments: args,
		})
	}
	return out, nil
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

var (
	_ fncall.ChatModel      = (*Client)(nil)
	_ fncall.ModelInspector = (*Client)(nil)
	_ fncall.ModelLister    = (*Client)(nil)
)
