package fncall

import (
	"context"
	"log/slog"
	"reflect"
	"time"
)

// Middleware wraps a Capability with cross-cutting behavior (logging, recovery, timeout).
type Middleware func(Capability) Capability

// WithLogging returns a middleware that logs start, end, duration, and errors.
func WithLogging(logger *slog.Logger) Middleware {
	logger = loggerOrDefault(logger)
	return func(next Capability) Capability {
		return &loggingCapability{capabilityBase: capabilityBase{next: next}, logger: logger}
	}
}

// WithRecovery returns a middleware that recovers panics and returns SystemError.
func WithRecovery() Middleware {
	return func(next Capability) Capability {
		return &recoveryCapability{capabilityBase{next: next}}
	}
}

// WithTimeout returns a middleware that bounds each invocation with d.
// The core imposes no timeout unless this middleware is installed.
func WithTimeout(d time.Duration) Middleware {
	return func(next Capability) Capability {
		return &timeoutCapability{capabilityBase: capabilityBase{next: next}, timeout: d}
	}
}

// Chain applies middlewares to c; the first middleware is outermost.
func Chain(c Capability, middlewares ...Middleware) Capability {
	for i := len(middlewares) - 1; i >= 0; i-- {
		c = middlewares[i](c)
	}
	return c
}

// capabilityBase delegates Capability and CapabilityMetadata to the wrapped capability.
type capabilityBase struct{ next Capability }

func (b *capabilityBase) Definition() Definition { return b.next.Definition() }
func (b *capabilityBase) Schema() ToolSchema     { return b.next.Schema() }

func (b *capabilityBase) RequestType() reflect.Type {
	if m, ok := b.next.(CapabilityMetadata); ok {
		return m.RequestType()
	}
	return nil
}

func (b *capabilityBase) Tags() []string {
	if m, ok := b.next.(CapabilityMetadata); ok {
		return m.Tags()
	}
	return nil
}

type loggingCapability struct {
	capabilityBase
	logger *slog.Logger
}

func (l *loggingCapability) Invoke(ctx context.Context, args map[string]any) (any, error) {
	name := l.next.Definition().Name
	l.logger.DebugContext(ctx, "function start", "function", name)
	start := time.Now()
	res, err := l.next.Invoke(ctx, args)
	dur := time.Since(start)
	switch {
	case err == nil:
		l.logger.DebugContext(ctx, "function end", "function", name, "duration", dur)
	case IsFunctionError(err):
		l.logger.InfoContext(ctx, "function rejected input", "function", name, "duration", dur, "error", err)
	default:
		l.logger.ErrorContext(ctx, "function error", "function", name, "duration", dur, "error", err)
	}
	return res, err
}

type recoveryCapability struct{ capabilityBase }

func (r *recoveryCapability) Invoke(ctx context.Context, args map[string]any) (res any, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = &SystemError{Err: &panicError{p: p}}
		}
	}()
	return r.next.Invoke(ctx, args)
}

type timeoutCapability struct {
	capabilityBase
	timeout time.Duration
}

func (t *timeoutCapability) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if t.timeout <= 0 {
		return t.next.Invoke(ctx, args)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Invoke(ctx, args)
}
