package fncall

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decode converts a raw argument map into T through JSON, the way a model's
// arguments would have arrived on the wire. Failures are *FunctionError.
func Decode[T any](args map[string]any) (T, error) {
	var zero T
	data, err := json.Marshal(args)
	if err != nil {
		return zero, wrapDecodeError(err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, wrapDecodeError(err)
	}
	return out, nil
}

// StringArg returns args[key] as a trimmed string. A missing key yields ""
// and ok=false; a value of another type is a *FunctionError.
func StringArg(args map[string]any, key string) (string, bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", true, &FunctionError{Reason: fmt.Sprintf("argument %q must be a string, got %T", key, v)}
	}
	return strings.TrimSpace(s), true, nil
}

// RequireString returns a non-blank string argument or a *FunctionError.
func RequireString(args map[string]any, key string) (string, error) {
	s, _, err := StringArg(args, key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", Reject("%s is required", key)
	}
	return s, nil
}

// IntArg returns args[key] as an int. JSON numbers arrive as float64; integral
// values are accepted, fractional ones are rejected.
func IntArg(args map[string]any, key string) (int, bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	case float64:
		if n != float64(int(n)) {
			return 0, true, Reject("argument %q must be an integer, got %v", key, n)
		}
		return int(n), true, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, true, Reject("argument %q must be an integer, got %s", key, n)
		}
		return int(i), true, nil
	default:
		return 0, true, Reject("argument %q must be an integer, got %T", key, v)
	}
}
