package fncall

import (
	"log/slog"
)

// deriveOptions hold optional schema derivation settings.
type deriveOptions struct {
	optionalFields bool
}

// DeriveOption configures schema derivation (e.g. WithOptionalFields).
type DeriveOption func(*deriveOptions)

// WithOptionalFields lets pointer and omitempty fields stay out of the
// required list. Without it every derived property is required.
func WithOptionalFields() DeriveOption {
	return func(o *deriveOptions) {
		o.optionalFields = true
	}
}

// capabilityOptions hold optional capability settings.
type capabilityOptions struct {
	derive         []DeriveOption
	validateSchema bool
	tags           []string
}

// Option configures a capability built with New or Declare.
type Option func(*capabilityOptions)

// WithDeriveOptions passes derivation options through New.
func WithDeriveOptions(opts ...DeriveOption) Option {
	return func(o *capabilityOptions) {
		o.derive = append(o.derive, opts...)
	}
}

// WithSchemaValidation validates raw arguments against the derived schema
// before FromArguments runs. A violation is a rejected call.
func WithSchemaValidation() Option {
	return func(o *capabilityOptions) {
		o.validateSchema = true
	}
}

// WithTags sets capability tags (metadata for discovery).
func WithTags(tags ...string) Option {
	return func(o *capabilityOptions) {
		o.tags = tags
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	replaceDuplicates bool
	middlewares       []Middleware
	logger            *slog.Logger
}

// WithReplaceDuplicates makes a later capability silently replace an earlier
// one with the same name instead of failing NewRegistry.
func WithReplaceDuplicates() RegistryOption {
	return func(o *registryOptions) {
		o.replaceDuplicates = true
	}
}

// WithMiddleware wraps every registered capability. The first middleware is outermost.
func WithMiddleware(middlewares ...Middleware) RegistryOption {
	return func(o *registryOptions) {
		o.middlewares = append(o.middlewares, middlewares...)
	}
}

// WithRegistryLogger sets the logger used for registration warnings.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(o *registryOptions) {
		o.logger = logger
	}
}

// DispatchOption configures a Dispatcher.
type DispatchOption func(*dispatchOptions)

type dispatchOptions struct {
	logger        *slog.Logger
	recoverPanics bool
}

// WithLogger sets the logger that reports unexpected invocation failures.
func WithLogger(logger *slog.Logger) DispatchOption {
	return func(o *dispatchOptions) {
		o.logger = logger
	}
}

// WithRecoverPanics controls panic recovery during invocation (default true).
// A recovered panic becomes a failed Outcome.
func WithRecoverPanics(enable bool) DispatchOption {
	return func(o *dispatchOptions) {
		o.recoverPanics = enable
	}
}

// GateOption configures a ToolGate.
type GateOption func(*ToolGate)

// WithMarker overrides the template substring that signals tool support.
func WithMarker(marker string) GateOption {
	return func(g *ToolGate) {
		g.marker = marker
	}
}

// WithGateLogger sets the logger used when model lookups fail.
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *ToolGate) {
		g.logger = logger
	}
}

// WithConcurrency bounds concurrent model lookups in ToolModels and
// ToolModelReport. Pass 0 or negative for unlimited.
func WithConcurrency(n int) GateOption {
	return func(g *ToolGate) {
		g.concurrency = n
	}
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
