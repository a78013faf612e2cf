package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/skosovsky/fncall"
)

// FakeModel is an in-memory model backend implementing ChatModel,
// ModelInspector and ModelLister. Chat replies with Calls and records every
// request it receives.
type FakeModel struct {
	Templates map[string]string
	Models    []fncall.ModelInfo
	Calls     []fncall.ToolCall
	Reply     string

	mu       sync.Mutex
	requests []fncall.ChatRequest
}

// Chat records req and answers with the configured reply and tool calls.
func (f *FakeModel) Chat(_ context.Context, req fncall.ChatRequest) (fncall.ChatResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return fncall.ChatResponse{
		Message:   fncall.Message{Role: fncall.RoleAssistant, Content: f.Reply},
		ToolCalls: append([]fncall.ToolCall(nil), f.Calls...),
	}, nil
}

// ModelTemplate returns the configured template; unknown models are an error.
func (f *FakeModel) ModelTemplate(_ context.Context, model string) (string, error) {
	tmpl, ok := f.Templates[model]
	if !ok {
		return "", fmt.Errorf("model %q not found", model)
	}
	return tmpl, nil
}

// ListModels returns Models.
func (f *FakeModel) ListModels(context.Context) ([]fncall.ModelInfo, error) {
	return append([]fncall.ModelInfo(nil), f.Models...), nil
}

// Requests returns the chat requests received so far.
func (f *FakeModel) Requests() []fncall.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fncall.ChatRequest(nil), f.requests...)
}

var (
	_ fncall.ChatModel      = (*FakeModel)(nil)
	_ fncall.ModelInspector = (*FakeModel)(nil)
	_ fncall.ModelLister    = (*FakeModel)(nil)
)
