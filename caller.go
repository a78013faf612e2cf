package fncall

import (
	"context"
	"errors"
	"fmt"
)

// Caller runs one model turn with tools attached and returns a Dispatcher
// over the tool calls the model made.
type Caller struct {
	model    ChatModel
	gate     *ToolGate
	registry *Registry
	dispatch []DispatchOption
}

// NewCaller returns a Caller. gate may be nil for providers whose models
// always accept tools; the support check is then skipped.
func NewCaller(model ChatModel, gate *ToolGate, registry *Registry, opts ...DispatchOption) *Caller {
	return &Caller{model: model, gate: gate, registry: registry, dispatch: opts}
}

// FunctionCall checks that req.Model accepts tools (ErrUnsupportedModel
// otherwise), attaches the registry's schemas when req carries none, calls
// the model and returns a Dispatcher over the response's tool calls.
func (c *Caller) FunctionCall(ctx context.Context, req ChatRequest) (*Dispatcher, ChatResponse, error) {
	if c.model == nil {
		return nil, ChatResponse{}, errors.New("caller has no chat model")
	}
	if c.gate != nil && !c.gate.SupportsTools(ctx, req.Model) {
		return nil, ChatResponse{}, fmt.Errorf("%w: %s", ErrUnsupportedModel, req.Model)
	}
	if len(req.Tools) == 0 {
		req.Tools = c.registry.Schemas()
	}
	resp, err := c.model.Chat(ctx, req)
	if err != nil {
		return nil, ChatResponse{}, fmt.Errorf("chat with %s: %w", req.Model, err)
	}
	return Dispatch(resp.ToolCalls, c.registry, c.dispatch...), resp, nil
}

// Registry returns the registry the Caller dispatches against.
func (c *Caller) Registry() *Registry { return c.registry }
