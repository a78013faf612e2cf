package fncall

import "context"

// Message roles used in chat requests.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is what the core hands to a model: the model id, the ordered
// conversation, the tool schemas the model may call, and whether to stream.
type ChatRequest struct {
	Model    string
	Messages []Message
	Tools    []ToolSchema
	Stream   bool
}

// ChatResponse is the model's reply: its message and the tool calls it made,
// in response order.
type ChatResponse struct {
	Message   Message
	ToolCalls []ToolCall
}

// ChatModel is the model-call boundary implemented by providers.
type ChatModel interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// ModelInspector is the model-introspection boundary: it returns the prompt
// template of a model.
type ModelInspector interface {
	ModelTemplate(ctx context.Context, model string) (string, error)
}

// ModelInfo is one entry of the model listing.
type ModelInfo struct {
	Name string
	Size int64
}

// ModelLister is the model-listing boundary.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}
