package fncall

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// capability is the internal implementation of Capability built by New or Declare.
type capability struct {
	def     Definition
	schema  ToolSchema
	reqType reflect.Type
	invoke  func(context.Context, map[string]any) (any, error)
	opts    capabilityOptions
}

// New builds a Capability from a typed Function. The schema is derived once
// here, so a malformed capability type fails at startup with a *ContractError.
// Invoke runs optional schema validation, FromArguments, Validatable and Apply;
// errors other than *FunctionError are wrapped as *SystemError.
func New[Req, Res any](fn Function[Req, Res], opts ...Option) (Capability, error) {
	if any(fn) == nil {
		return nil, &ContractError{Reason: "function must not be nil"}
	}
	var o capabilityOptions
	for _, opt := range opts {
		opt(&o)
	}
	schema, err := DeriveFor(fn, o.derive...)
	if err != nil {
		return nil, err
	}
	validator, err := maybeCompile(schema, o)
	if err != nil {
		return nil, err
	}
	invoke := func(ctx context.Context, args map[string]any) (any, error) {
		if validator != nil {
			if err := validateArguments(validator, args); err != nil {
				return nil, err
			}
		}
		req, err := fn.FromArguments(args)
		if err != nil {
			return nil, wrapHandlerError(err)
		}
		if err := runValidatable(req); err != nil {
			return nil, err
		}
		res, err := fn.Apply(ctx, req)
		if err != nil {
			return nil, wrapHandlerError(err)
		}
		return res, nil
	}
	return &capability{
		def:     schema.definition(),
		schema:  schema,
		reqType: reflect.TypeFor[Req](),
		invoke:  invoke,
		opts:    o,
	}, nil
}

// Declare builds a Capability from an explicit property list instead of a
// reflected request type. The handler receives the raw argument map.
// params is copied; the caller's value is never mutated.
func Declare(
	def Definition,
	params Parameters,
	handler func(ctx context.Context, args map[string]any) (any, error),
	opts ...Option,
) (Capability, error) {
	if handler == nil {
		return nil, &ContractError{Type: def.Name, Reason: "handler must not be nil"}
	}
	var o capabilityOptions
	for _, opt := range opts {
		opt(&o)
	}
	schema := ToolSchema{Name: def.Name, Description: def.Description, Parameters: params}.Clone()
	if params.Type == "" {
		schema.Parameters.Type = TypeObject
	}
	if err := schema.check(); err != nil {
		return nil, err
	}
	validator, err := maybeCompile(schema, o)
	if err != nil {
		return nil, err
	}
	invoke := func(ctx context.Context, args map[string]any) (any, error) {
		if validator != nil {
			if err := validateArguments(validator, args); err != nil {
				return nil, err
			}
		}
		res, err := handler(ctx, args)
		if err != nil {
			return nil, wrapHandlerError(err)
		}
		return res, nil
	}
	return &capability{
		def:     def,
		schema:  schema,
		reqType: reflect.TypeFor[map[string]any](),
		invoke:  invoke,
		opts:    o,
	}, nil
}

func maybeCompile(schema ToolSchema, o capabilityOptions) (*jsonschema.Schema, error) {
	if !o.validateSchema {
		return nil, nil
	}
	validator, err := compileSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", schema.Name, err)
	}
	return validator, nil
}

func (s ToolSchema) definition() Definition {
	return Definition{Name: s.Name, Description: s.Description}
}

func (c *capability) Definition() Definition { return c.def }

// Schema returns a deep copy of the derived schema.
func (c *capability) Schema() ToolSchema { return c.schema.Clone() }

func (c *capability) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return c.invoke(ctx, args)
}

func (c *capability) RequestType() reflect.Type { return c.reqType }
func (c *capability) Tags() []string            { return append([]string(nil), c.opts.tags...) }

// Named returns a Describer that targets a capability by name alone, for
// Dispatcher operations on capabilities whose type carries no metadata.
func Named(name string) Describer { return namedTarget(name) }

type namedTarget string

func (n namedTarget) Definition() Definition { return Definition{Name: string(n)} }

// nameOf returns the target's declared name; a nil target or one whose
// Definition panics (pointer receiver reading a nil instance) has no name.
func nameOf(t Describer) (name string, err error) {
	if t == nil {
		return "", errors.New("nil target")
	}
	defer func() {
		if p := recover(); p != nil {
			name, err = "", &panicError{p: p}
		}
	}()
	return t.Definition().Name, nil
}

var (
	_ Capability         = (*capability)(nil)
	_ CapabilityMetadata = (*capability)(nil)
)
