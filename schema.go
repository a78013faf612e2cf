package fncall

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// PropertyType is the JSON type of a tool parameter.
type PropertyType string

// Property types understood by tool-calling models.
const (
	TypeString  PropertyType = "string"
	TypeInteger PropertyType = "integer"
	TypeBoolean PropertyType = "boolean"
	TypeNumber  PropertyType = "number"
	TypeObject  PropertyType = "object"
)

// Property describes a single request field. Required is carried in
// Parameters.Required on the wire and is not serialized here.
type Property struct {
	Type        PropertyType `json:"type"`
	Description string       `json:"description,omitempty"`
	Enum        []string     `json:"enum,omitempty"`
	Required    bool         `json:"-"`
}

// Parameters is the object schema of a tool. Properties keep declaration order.
type Parameters struct {
	Type       PropertyType                             `json:"type"`
	Properties *orderedmap.OrderedMap[string, Property] `json:"properties"`
	Required   []string                                 `json:"required"`
}

// NewParameters returns an empty object schema.
func NewParameters() Parameters {
	return Parameters{
		Type:       TypeObject,
		Properties: orderedmap.New[string, Property](),
		Required:   []string{},
	}
}

// Add appends a property. A property already present keeps its first definition.
func (p *Parameters) Add(name string, prop Property) {
	if p.Properties == nil {
		p.Properties = orderedmap.New[string, Property]()
	}
	if _, exists := p.Properties.Get(name); exists {
		return
	}
	p.Properties.Set(name, prop)
	if prop.Required {
		p.Required = append(p.Required, name)
	}
}

// Property returns the named property.
func (p Parameters) Property(name string) (Property, bool) {
	if p.Properties == nil {
		return Property{}, false
	}
	return p.Properties.Get(name)
}

// Names returns property names in declaration order.
func (p Parameters) Names() []string {
	if p.Properties == nil {
		return nil
	}
	names := make([]string, 0, p.Properties.Len())
	for pair := p.Properties.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// ToolSchema is the structured description of a capability handed to a model.
type ToolSchema struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

// Clone returns a deep copy so callers cannot mutate a registered schema.
func (s ToolSchema) Clone() ToolSchema {
	out := ToolSchema{Name: s.Name, Description: s.Description, Parameters: NewParameters()}
	out.Parameters.Type = s.Parameters.Type
	if s.Parameters.Properties != nil {
		for pair := s.Parameters.Properties.Oldest(); pair != nil; pair = pair.Next() {
			prop := pair.Value
			prop.Enum = slices.Clone(prop.Enum)
			out.Parameters.Properties.Set(pair.Key, prop)
		}
	}
	out.Parameters.Required = append(out.Parameters.Required, s.Parameters.Required...)
	return out
}

// check enforces the schema invariants: metadata present, object type,
// and required names a subset of property names.
func (s ToolSchema) check() error {
	if s.Name == "" {
		return &ContractError{Reason: "missing function name"}
	}
	if s.Description == "" {
		return &ContractError{Type: s.Name, Reason: "missing function description"}
	}
	if s.Parameters.Type != TypeObject {
		return &ContractError{Type: s.Name, Reason: fmt.Sprintf("parameters type must be %q", TypeObject)}
	}
	for _, name := range s.Parameters.Required {
		if _, ok := s.Parameters.Property(name); !ok {
			return &ContractError{Type: s.Name, Reason: fmt.Sprintf("required property %q is not declared", name)}
		}
	}
	return nil
}

// JSONSchema exports the parameters as a JSON Schema document for providers
// that take a schema object (OpenAI, Anthropic) rather than Ollama's shape.
func (s ToolSchema) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	if s.Parameters.Properties != nil {
		for pair := s.Parameters.Properties.Oldest(); pair != nil; pair = pair.Next() {
			ps := &jsonschema.Schema{
				Type:        string(pair.Value.Type),
				Description: pair.Value.Description,
			}
			for _, v := range pair.Value.Enum {
				ps.Enum = append(ps.Enum, v)
			}
			props.Set(pair.Key, ps)
		}
	}
	return &jsonschema.Schema{
		Type:       string(TypeObject),
		Properties: props,
		Required:   slices.Clone(s.Parameters.Required),
	}
}

// Enumerator is implemented by request field types with a closed value set.
// Values returns the members in declaration order.
type Enumerator interface {
	Values() []string
}

var enumeratorType = reflect.TypeFor[Enumerator]()

// Derive builds the Tool Schema of a request type Req under def.
// It fails with a *ContractError when def lacks a name or description, or
// when Req is not a struct (or pointer to struct).
func Derive[Req any](def Definition, opts ...DeriveOption) (ToolSchema, error) {
	var o deriveOptions
	for _, opt := range opts {
		opt(&o)
	}
	return deriveSchema(def, reflect.TypeFor[Req](), o)
}

// DeriveFor derives the schema of fn's request type using fn's Definition.
func DeriveFor[Req, Res any](fn Function[Req, Res], opts ...DeriveOption) (ToolSchema, error) {
	return Derive[Req](fn.Definition(), opts...)
}

func deriveSchema(def Definition, typ reflect.Type, o deriveOptions) (ToolSchema, error) {
	typeName := "<nil>"
	if typ != nil {
		typeName = typ.String()
	}
	if def.Name == "" {
		return ToolSchema{}, &ContractError{Type: typeName, Reason: "missing function name"}
	}
	if def.Description == "" {
		return ToolSchema{}, &ContractError{Type: typeName, Reason: "missing function description"}
	}
	if typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return ToolSchema{}, &ContractError{Type: typeName, Reason: "request type must be a struct"}
	}

	params := NewParameters()
	for i := range typ.NumField() {
		field := typ.Field(i)
		// Unexported and embedded fields are not part of the request shape.
		if !field.IsExported() || field.Anonymous {
			continue
		}
		jsonName, omitempty, skip := parseJSONTag(field.Tag.Get("json"))
		if skip {
			continue
		}
		name := jsonName
		if name == "" {
			name = accessorName(field.Name)
		}
		ft := field.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		prop := Property{
			Type:        propertyType(ft),
			Description: field.Tag.Get("description"),
			Enum:        enumValues(field),
			Required:    true,
		}
		if o.optionalFields && (omitempty || field.Type.Kind() == reflect.Pointer) {
			prop.Required = false
		}
		params.Add(name, prop)
	}
	return ToolSchema{Name: def.Name, Description: def.Description, Parameters: params}, nil
}

// parseJSONTag returns the tag name, whether omitempty is set, and whether the field is skipped.
func parseJSONTag(tag string) (name string, omitempty, skip bool) {
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	return parts[0], slices.Contains(parts[1:], "omitempty"), false
}

// accessorName strips a Get/Is prefix and lower-cases the first character.
// The prefix is only stripped when an upper-case letter follows, so Issue stays issue.
func accessorName(name string) string {
	for _, prefix := range []string{"Get", "Is"} {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || rest == "" {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(rest); unicode.IsUpper(r) {
			name = rest
			break
		}
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:]
}

func propertyType(t reflect.Type) PropertyType {
	switch t.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Bool:
		return TypeBoolean
	case reflect.Float32, reflect.Float64:
		return TypeNumber
	default:
		return TypeString
	}
}

// enumValues returns the closed value set of a field: from an Enumerator
// implementation on the field type, else from an enum:"a,b" tag.
func enumValues(field reflect.StructField) []string {
	ft := field.Type
	for ft.Kind() == reflect.Pointer {
		ft = ft.Elem()
	}
	switch {
	case ft.Implements(enumeratorType):
		if e, ok := reflect.Zero(ft).Interface().(Enumerator); ok {
			return slices.Clone(e.Values())
		}
	case reflect.PointerTo(ft).Implements(enumeratorType):
		if e, ok := reflect.New(ft).Interface().(Enumerator); ok {
			return slices.Clone(e.Values())
		}
	}
	tag := field.Tag.Get("enum")
	if tag == "" {
		return nil
	}
	parts := strings.Split(tag, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
