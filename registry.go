package fncall

import (
	"fmt"
	"log/slog"
	"slices"
)

// Registry maps function names to capabilities. It is built once by
// NewRegistry and read-only afterwards, so concurrent lookups need no locking.
// The Registry does not own its capabilities or their resources.
type Registry struct {
	functions map[string]Capability // wrapped with middlewares
	order     []string              // registration order
	logger    *slog.Logger
}

// NewRegistry builds a Registry in a single pass over caps, keyed by each
// capability's declared name. Two capabilities with the same name fail with
// ErrDuplicateFunction unless WithReplaceDuplicates is set, in which case the
// later one wins and a warning is logged.
func NewRegistry(caps []Capability, opts ...RegistryOption) (*Registry, error) {
	var o registryOptions
	for _, opt := range opts {
		opt(&o)
	}
	r := &Registry{
		functions: make(map[string]Capability, len(caps)),
		order:     make([]string, 0, len(caps)),
		logger:    loggerOrDefault(o.logger),
	}
	for i, c := range caps {
		if c == nil {
			return nil, &ContractError{Reason: fmt.Sprintf("capability %d is nil", i)}
		}
		name := c.Definition().Name
		if name == "" {
			return nil, &ContractError{Reason: fmt.Sprintf("capability %d has no name", i)}
		}
		if _, exists := r.functions[name]; exists {
			if !o.replaceDuplicates {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateFunction, name)
			}
			r.logger.Warn("function replaced by later registration", "function", name)
		} else {
			r.order = append(r.order, name)
		}
		r.functions[name] = Chain(c, o.middlewares...)
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error. Use at program startup.
func MustRegistry(caps []Capability, opts ...RegistryOption) *Registry {
	r, err := NewRegistry(caps, opts...)
	if err != nil {
		panic("fncall: " + err.Error())
	}
	return r
}

// Resolve returns the capability registered under name, or (nil, false).
func (r *Registry) Resolve(name string) (Capability, bool) {
	if r == nil {
		return nil, false
	}
	c, ok := r.functions[name]
	return c, ok
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	_, ok := r.Resolve(name)
	return ok
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.order)
}

// Schemas returns the Tool Schemas of all capabilities in registration order,
// e.g. for attaching to an outbound chat request.
func (r *Registry) Schemas() []ToolSchema {
	if r == nil {
		return nil
	}
	out := make([]ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.functions[name].Schema())
	}
	return out
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
