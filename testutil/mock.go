// Package testutil provides test helpers for fncall (e.g. MockCapability, FakeModel).
package testutil

import (
	"context"

	"github.com/skosovsky/fncall"
)

// MockCapability is a configurable Capability implementation for tests.
type MockCapability struct {
	NameVal   string
	DescVal   string
	ParamsVal fncall.Parameters
	InvokeFn  func(ctx context.Context, args map[string]any) (any, error)
}

// Definition returns the capability name (default "mock") and description.
func (m *MockCapability) Definition() fncall.Definition {
	name := m.NameVal
	if name == "" {
		name = "mock"
	}
	return fncall.Definition{Name: name, Description: m.DescVal}
}

// Schema returns a schema over ParamsVal (or an empty object schema).
func (m *MockCapability) Schema() fncall.ToolSchema {
	params := m.ParamsVal
	if params.Properties == nil {
		params = fncall.NewParameters()
	}
	def := m.Definition()
	return fncall.ToolSchema{Name: def.Name, Description: def.Description, Parameters: params}.Clone()
}

// Invoke runs InvokeFn if set, otherwise returns nil.
func (m *MockCapability) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if m.InvokeFn != nil {
		return m.InvokeFn(ctx, args)
	}
	return nil, nil
}

// Ensure MockCapability implements Capability.
var _ fncall.Capability = (*MockCapability)(nil)
