// Package gemini connects fncall to Google Gemini through the generative-ai-go SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/skosovsky/fncall"
)

// Client adapts a *genai.Client to fncall.ChatModel.
type Client struct {
	api    *genai.Client
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

// New dials Gemini with apiKey. Close releases the connection.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: missing API key")
	}
	api, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	c := &Client{api: api}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Close closes the underlying SDK client.
func (c *Client) Close() error {
	return c.api.Close()
}

// Chat replays req.Messages as chat history and sends the last one.
func (c *Client) Chat(ctx context.Context, req fncall.ChatRequest) (fncall.ChatResponse, error) {
	if len(req.Messages) == 0 {
		return fncall.ChatResponse{}, errors.New("gemini: no messages")
	}
	model := c.api.GenerativeModel(req.Model)
	model.Tools = convertTools(req.Tools)

	history, system := convertMessages(req.Messages[:len(req.Messages)-1])
	last := req.Messages[len(req.Messages)-1]
	if last.Role == fncall.RoleSystem {
		system = append(system, genai.Text(last.Content))
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: system}
	}
	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return fncall.ChatResponse{}, fmt.Errorf("gemini generate: %w", err)
	}
	out, err := responseToChat(resp)
	if err != nil {
		return fncall.ChatResponse{}, err
	}
	c.logger.DebugContext(ctx, "gemini chat done", "model", req.Model, "tool_calls", len(out.ToolCalls))
	return out, nil
}

// convertMessages splits messages into chat history and system instruction parts.
func convertMessages(msgs []fncall.Message) ([]*genai.Content, []genai.Part) {
	var history []*genai.Content
	var system []genai.Part
	for _, m := range msgs {
		switch m.Role {
		case fncall.RoleSystem:
			system = append(system, genai.Text(m.Content))
		case fncall.RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	return history, system
}

func convertTools(schemas []fncall.ToolSchema) []*genai.Tool {
	if len(schemas) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(schemas))
	for _, s := range schemas {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  convertSchema(s.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func convertSchema(p fncall.Parameters) *genai.Schema {
	out := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{},
		Required:   append([]string(nil), p.Required...),
	}
	for _, name := range p.Names() {
		prop, _ := p.Property(name)
		ps := &genai.Schema{Type: schemaType(prop.Type), Description: prop.Description}
		if len(prop.Enum) > 0 {
			ps.Format = "enum"
			ps.Enum = append([]string(nil), prop.Enum...)
		}
		out.Properties[name] = ps
	}
	return out
}

func schemaType(t fncall.PropertyType) genai.Type {
	switch t {
	case fncall.TypeInteger:
		return genai.TypeInteger
	case fncall.TypeNumber:
		return genai.TypeNumber
	case fncall.TypeBoolean:
		return genai.TypeBoolean
	case fncall.TypeObject:
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// responseToChat reads the first candidate: text parts become the message,
// function calls become tool calls indexed by position.
func responseToChat(resp *genai.GenerateContentResponse) (fncall.ChatResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return fncall.ChatResponse{}, errors.New("gemini: empty response")
	}
	var text strings.Builder
	var calls []fncall.ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			args := p.Args
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, fncall.ToolCall{Name: p.Name, Index: len(calls), Arguments: args})
		}
	}
	return fncall.ChatResponse{
		Message:   fncall.Message{Role: fncall.RoleAssistant, Content: text.String()},
		ToolCalls: calls,
	}, nil
}

var _ fncall.ChatModel = (*Client)(nil)
