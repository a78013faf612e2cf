package fncallotel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/skosovsky/fncall"
	"github.com/skosovsky/fncall/testutil"
)

func attr(span sdktrace.ReadOnlySpan, key attribute.Key) string {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestMiddleware_Spans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ok := &testutil.MockCapability{NameVal: "ok", DescVal: "d", InvokeFn: func(context.Context, map[string]any) (any, error) {
		return "done", nil
	}}
	rejecting := &testutil.MockCapability{NameVal: "rejecting", DescVal: "d", InvokeFn: func(context.Context, map[string]any) (any, error) {
		return nil, fncall.Reject("query is required")
	}}
	failing := &testutil.MockCapability{NameVal: "failing", DescVal: "d", InvokeFn: func(context.Context, map[string]any) (any, error) {
		return nil, &fncall.SystemError{Err: errors.New("timeout")}
	}}
	reg, err := fncall.NewRegistry([]fncall.Capability{ok, rejecting, failing},
		fncall.WithMiddleware(Middleware(WithTracerProvider(tp))))
	require.NoError(t, err)

	d := fncall.Dispatch([]fncall.ToolCall{
		{Name: "ok", Index: 0},
		{Name: "rejecting", Index: 1},
		{Name: "failing", Index: 2},
	}, reg, fncall.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	out := d.ExecuteAll(context.Background())
	require.Len(t, out, 1)

	spans := rec.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, "fncall.invoke ok", spans[0].Name())
	assert.Equal(t, "ok", attr(spans[0], AttrFunctionName))
	assert.Equal(t, "succeeded", attr(spans[0], AttrStatus))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, "rejected", attr(spans[1], AttrStatus))
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	require.Len(t, spans[1].Events(), 1)
	assert.Equal(t, "input rejected", spans[1].Events()[0].Name)

	assert.Equal(t, "failed", attr(spans[2], AttrStatus))
	assert.Equal(t, codes.Error, spans[2].Status().Code)
}

func TestMiddleware_DefaultTracer(t *testing.T) {
	c := Middleware()(&testutil.MockCapability{NameVal: "m"})
	assert.Equal(t, "m", c.Definition().Name)
	_, err := c.Invoke(context.Background(), map[string]any{})
	require.NoError(t, err)
}

func TestMiddleware_KeepsMetadata(t *testing.T) {
	c, err := fncall.Declare(fncall.Definition{Name: "tagged", Description: "d"}, fncall.NewParameters(),
		func(context.Context, map[string]any) (any, error) { return nil, nil },
		fncall.WithTags("search"))
	require.NoError(t, err)

	wrapped := fncall.Chain(c, Middleware(), fncall.WithLogging(nil))
	m, ok := wrapped.(fncall.CapabilityMetadata)
	require.True(t, ok)
	assert.Equal(t, []string{"search"}, m.Tags())
	assert.Equal(t, reflect.TypeFor[map[string]any](), m.RequestType())

	inner, ok := Middleware()(c).(fncall.CapabilityMetadata)
	require.True(t, ok)
	assert.Equal(t, []string{"search"}, inner.Tags())

	bare, ok := Middleware()(&testutil.MockCapability{NameVal: "m"}).(fncall.CapabilityMetadata)
	require.True(t, ok)
	assert.Nil(t, bare.Tags())
	assert.Nil(t, bare.RequestType())
}
