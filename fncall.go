package fncall

import (
	"context"
	"reflect"
)

// Definition is the fixed metadata of a capability type: the name the model
// calls it by and a one-line description of what it does.
type Definition struct {
	Name        string
	Description string
}

// Describer is implemented by every capability type. Definition must be
// declared on a value receiver and must not read instance state, so that the
// zero value of the type (or a nil pointer to it) answers it.
type Describer interface {
	Definition() Definition
}

// Function is the typed contract of an LLM-callable capability. FromArguments
// parses the raw argument map produced by the model into the request type;
// Apply runs the request. Both return a *FunctionError when the input is
// rejected; any other error is treated as an unexpected failure.
type Function[Req, Res any] interface {
	Describer
	FromArguments(args map[string]any) (Req, error)
	Apply(ctx context.Context, req Req) (Res, error)
}

// Capability is the type-erased view of a Function held by the Registry.
// It is provider-agnostic (no knowledge of Ollama, OpenAI, etc.).
type Capability interface {
	Describer
	// Schema returns the derived Tool Schema of the capability.
	Schema() ToolSchema
	// Invoke parses args and applies the capability, returning its result.
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// CapabilityMetadata is implemented by capabilities built with New or Declare.
type CapabilityMetadata interface {
	RequestType() reflect.Type
	Tags() []string
}

// ToolCall is a single invocation request as produced by the model: the
// function name, its position in the model response, and the raw arguments.
type ToolCall struct {
	Name      string
	Index     int
	Arguments map[string]any
}

// Status tags a call Outcome.
type Status int

// Outcome statuses. Only StatusSucceeded carries a value.
const (
	StatusAbsent Status = iota
	StatusSucceeded
	StatusRejected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusRejected:
		return "rejected"
	case StatusFailed:
		return "failed"
	default:
		return "absent"
	}
}

// Outcome is the per-call result of dispatch. Callers that only care about
// presence use Present; Status and Err keep the reason for an absence.
type Outcome struct {
	Call   ToolCall
	Status Status
	Value  any
	Err    error
}

// Present reports whether the outcome wraps a result value.
func (o Outcome) Present() bool { return o.Status == StatusSucceeded }

// Get returns the value and whether it is present.
func (o Outcome) Get() (any, bool) {
	if !o.Present() {
		return nil, false
	}
	return o.Value, true
}
