// Package fncallotel provides an OpenTelemetry tracing middleware for fncall
// capabilities: one span per invocation, tagged with the function name and
// the outcome status.
package fncallotel

import (
	"context"
	"reflect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skosovsky/fncall"
)

const instrumentationName = "github.com/skosovsky/fncall/ext/fncallotel"

// Attribute keys set on every invocation span.
const (
	AttrFunctionName = attribute.Key("fncall.function.name")
	AttrStatus       = attribute.Key("fncall.status")
)

type config struct {
	tracer trace.Tracer
}

// Option configures the middleware.
type Option func(*config)

// WithTracerProvider uses tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.tracer = tp.Tracer(instrumentationName)
	}
}

// Middleware returns a fncall.Middleware that wraps each Invoke in a span
// named "fncall.invoke <function>". Rejected input is recorded as an event
// and leaves the span status unset; unexpected failures set status Error.
func Middleware(opts ...Option) fncall.Middleware {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(instrumentationName)
	}
	return func(next fncall.Capability) fncall.Capability {
		return &tracedCapability{Capability: next, tracer: cfg.tracer}
	}
}

type tracedCapability struct {
	fncall.Capability
	tracer trace.Tracer
}

// RequestType and Tags forward fncall.CapabilityMetadata of the wrapped capability.
func (t *tracedCapability) RequestType() reflect.Type {
	if m, ok := t.Capability.(fncall.CapabilityMetadata); ok {
		return m.RequestType()
	}
	return nil
}

func (t *tracedCapability) Tags() []string {
	if m, ok := t.Capability.(fncall.CapabilityMetadata); ok {
		return m.Tags()
	}
	return nil
}

func (t *tracedCapability) Invoke(ctx context.Context, args map[string]any) (any, error) {
	name := t.Definition().Name
	ctx, span := t.tracer.Start(ctx, "fncall.invoke "+name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(AttrFunctionName.String(name)),
	)
	defer span.End()

	res, err := t.Capability.Invoke(ctx, args)
	switch {
	case err == nil:
		span.SetAttributes(AttrStatus.String(fncall.StatusSucceeded.String()))
	case fncall.IsFunctionError(err):
		span.SetAttributes(AttrStatus.String(fncall.StatusRejected.String()))
		span.AddEvent("input rejected", trace.WithAttributes(attribute.String("reason", err.Error())))
	default:
		span.SetAttributes(AttrStatus.String(fncall.StatusFailed.String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}
