package fncall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// Dispatcher executes one model response's tool-call batch against a Registry.
// It is a request-scoped value: it holds no state beyond its inputs, runs calls
// sequentially on the caller's goroutine, and never lets one call's failure
// abort another.
type Dispatcher struct {
	calls         []ToolCall
	registry      *Registry
	logger        *slog.Logger
	recoverPanics bool
}

// Dispatch returns a Dispatcher over calls, kept in the order the model
// returned them. Index is carried through to outcomes but never reorders the batch.
func Dispatch(calls []ToolCall, registry *Registry, opts ...DispatchOption) *Dispatcher {
	o := dispatchOptions{recoverPanics: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &Dispatcher{
		calls:         slices.Clone(calls),
		registry:      registry,
		logger:        loggerOrDefault(o.logger),
		recoverPanics: o.recoverPanics,
	}
}

// Calls returns the batch as given, unfiltered.
func (d *Dispatcher) Calls() []ToolCall {
	return slices.Clone(d.calls)
}

// Filter returns the calls naming t, in order. It reports false when the
// batch is empty, t is not registered, or no call matches.
func (d *Dispatcher) Filter(t Describer) ([]ToolCall, bool) {
	name, err := nameOf(t)
	if err != nil || len(d.calls) == 0 || !d.registry.Contains(name) {
		return nil, false
	}
	var matches []ToolCall
	for _, call := range d.calls {
		if call.Name == name {
			matches = append(matches, call)
		}
	}
	if len(matches) == 0 {
		return nil, false
	}
	return matches, true
}

// ExecuteFirst invokes t with the first matching call's arguments.
func (d *Dispatcher) ExecuteFirst(ctx context.Context, t Describer) Outcome {
	matches, ok := d.Filter(t)
	if !ok {
		return Outcome{Status: StatusAbsent}
	}
	return d.invoke(ctx, matches[0])
}

// ExecuteLast invokes t with the last matching call's arguments.
func (d *Dispatcher) ExecuteLast(ctx context.Context, t Describer) Outcome {
	matches, ok := d.Filter(t)
	if !ok {
		return Outcome{Status: StatusAbsent}
	}
	return d.invoke(ctx, matches[len(matches)-1])
}

// ExecuteAllOf invokes t once per matching call, in order, and returns one
// Outcome per call (absent ones included). The result is empty, never nil,
// when nothing matches.
func (d *Dispatcher) ExecuteAllOf(ctx context.Context, t Describer) []Outcome {
	matches, _ := d.Filter(t)
	out := make([]Outcome, 0, len(matches))
	for _, call := range matches {
		out = append(out, d.invoke(ctx, call))
	}
	return out
}

// ExecuteAll walks the whole batch in order and invokes every call whose
// name is registered. Unregistered names are skipped, and only present
// outcomes are returned, so the result may be shorter than the batch.
func (d *Dispatcher) ExecuteAll(ctx context.Context) []Outcome {
	out := make([]Outcome, 0, len(d.calls))
	for _, call := range d.calls {
		if !d.registry.Contains(call.Name) {
			d.logger.DebugContext(ctx, "skipping unregistered function", "function", call.Name, "index", call.Index)
			continue
		}
		if o := d.invoke(ctx, call); o.Present() {
			out = append(out, o)
		}
	}
	return out
}

// Invokes reports whether any call in the batch names t, whether or not t is registered.
func (d *Dispatcher) Invokes(t Describer) bool {
	name, err := nameOf(t)
	if err != nil {
		return false
	}
	return slices.ContainsFunc(d.calls, func(c ToolCall) bool { return c.Name == name })
}

func (d *Dispatcher) invoke(ctx context.Context, call ToolCall) (out Outcome) {
	out.Call = call
	c, ok := d.registry.Resolve(call.Name)
	if !ok {
		out.Err = fmt.Errorf("%w: %s", ErrFunctionNotFound, call.Name)
		return out
	}
	if d.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				out.Status = StatusFailed
				out.Value = nil
				out.Err = &SystemError{Err: &panicError{p: p}}
				d.logFailure(ctx, call, out.Err)
			}
		}()
	}
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	v, err := c.Invoke(ctx, args)
	switch {
	case err == nil:
		out.Status = StatusSucceeded
		out.Value = v
	case IsFunctionError(err):
		out.Status = StatusRejected
		out.Err = err
		d.logger.DebugContext(ctx, "function rejected input", "function", call.Name, "index", call.Index, "error", err)
	default:
		out.Status = StatusFailed
		out.Err = err
		d.logFailure(ctx, call, err)
	}
	return out
}

func (d *Dispatcher) logFailure(ctx context.Context, call ToolCall, err error) {
	cause := err
	var se *SystemError
	if errors.As(err, &se) && se.Err != nil {
		cause = se.Err
	}
	d.logger.ErrorContext(ctx, "function invocation failed", "function", call.Name, "index", call.Index, "error", cause)
}

// String renders the batch and the registry for inspection.
func (d *Dispatcher) String() string {
	var sb strings.Builder
	sb.WriteString("Dispatcher[\n  Calls:\n")
	if len(d.calls) == 0 {
		sb.WriteString("    (none)\n")
	}
	for _, call := range d.calls {
		fmt.Fprintf(&sb, "    - Name: %s, Index: %d, Arguments: %v\n", call.Name, call.Index, call.Arguments)
	}
	sb.WriteString("  Registry:\n")
	names := d.registry.Names()
	if len(names) == 0 {
		sb.WriteString("    (empty)\n")
	}
	for _, name := range names {
		c, _ := d.registry.Resolve(name)
		fmt.Fprintf(&sb, "    - %s: %s\n", name, c.Definition().Description)
	}
	sb.WriteString("]")
	return sb.String()
}

// ValueAs returns the outcome's value as R when present and of that type.
func ValueAs[R any](o Outcome) (R, bool) {
	var zero R
	if !o.Present() {
		return zero, false
	}
	v, ok := o.Value.(R)
	if !ok {
		return zero, false
	}
	return v, true
}

// First is ExecuteFirst with the result asserted to R.
func First[R any](ctx context.Context, d *Dispatcher, t Describer) (R, bool) {
	return ValueAs[R](d.ExecuteFirst(ctx, t))
}

// Last is ExecuteLast with the result asserted to R.
func Last[R any](ctx context.Context, d *Dispatcher, t Describer) (R, bool) {
	return ValueAs[R](d.ExecuteLast(ctx, t))
}

// AllOf is ExecuteAllOf keeping only present results of type R.
func AllOf[R any](ctx context.Context, d *Dispatcher, t Describer) []R {
	outcomes := d.ExecuteAllOf(ctx, t)
	out := make([]R, 0, len(outcomes))
	for _, o := range outcomes {
		if v, ok := ValueAs[R](o); ok {
			out = append(out, v)
		}
	}
	return out
}
