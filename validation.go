package fncall

import (
	"bytes"
	"encoding/json"
	"net/url"
	"reflect"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validatable is implemented by request structs that need custom business
// validation. Called after FromArguments.
type Validatable interface {
	Validate() error
}

// compileSchema compiles the parameters of s into a validator. The schema is
// registered under an in-memory location derived from the function name.
func compileSchema(s ToolSchema) (*jsonschema.Schema, error) {
	data, err := json.Marshal(s.Parameters)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	loc := url.PathEscape(s.Name) + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(loc, doc); err != nil {
		return nil, err
	}
	return c.Compile(loc)
}

// validateArguments runs schema validation on a raw argument map.
// Arguments are normalized through JSON so numbers compare the way the schema expects.
func validateArguments(sch *jsonschema.Schema, args map[string]any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return wrapDecodeError(err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return wrapDecodeError(err)
	}
	if err := sch.Validate(inst); err != nil {
		return &FunctionError{Reason: err.Error(), Err: ErrValidation}
	}
	return nil
}

// runValidatable calls Validate on req; if req does not implement Validatable,
// it tries &req for value types (pointer receiver). Never calls Validate twice.
func runValidatable[T any](req T) error {
	if v, ok := any(req).(Validatable); ok {
		return asRejection(v.Validate())
	}
	typ := reflect.TypeOf(req)
	if typ == nil || typ.Kind() == reflect.Pointer {
		return nil
	}
	if v, ok := any(&req).(Validatable); ok {
		return asRejection(v.Validate())
	}
	return nil
}

func asRejection(err error) error {
	if err == nil || IsFunctionError(err) {
		return err
	}
	return &FunctionError{Reason: err.Error(), Err: ErrValidation}
}
