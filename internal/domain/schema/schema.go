package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Type is a JSON Schema primitive type name.
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeNull    Type = "null"
)

func (t Type) valid() bool {
	switch t {
	case TypeObject, TypeArray, TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeNull:
		return true
	}
	return false
}

// Types accepts both `"type": "string"` and `"type": ["string", "null"]`.
type Types []Type

func (ts Types) Has(t Type) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}

func (ts Types) MarshalJSON() ([]byte, error) {
	if len(ts) == 1 {
		return json.Marshal(string(ts[0]))
	}
	return json.Marshal([]Type(ts))
}

func (ts *Types) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*ts = Types{Type(one)}
		return nil
	}
	var many []Type
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("schema: type must be a string or an array of strings")
	}
	*ts = many
	return nil
}

// Schema is the subset of JSON Schema understood by the insight service.
// Keywords outside this subset are accepted and ignored.
type Schema struct {
	Type                 Types              `json:"type,omitempty"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Minimum              *float64           `json:"minimum,omitempty"`
	Maximum              *float64           `json:"maximum,omitempty"`
	MinItems             *int               `json:"minItems,omitempty"`
	MaxItems             *int               `json:"maxItems,omitempty"`
	MinLength            *int               `json:"minLength,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
}

// ErrNotObject is returned by CheckRequest when the top-level schema is not an object.
var ErrNotObject = errors.New("schema: response schema must be of type object")

// Parse decodes a JSON encoded schema and checks it is internally consistent.
func Parse(raw []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("schema: decode: %w", err)
	}
	if err := s.check("$"); err != nil {
		return nil, err
	}
	return &s, nil
}

// MarshalJSON lets *Schema be handed straight to providers that take a json.Marshaler.
func (s *Schema) MarshalJSON() ([]byte, error) {
	type plain Schema
	return json.Marshal((*plain)(s))
}

// Object is a small builder for object schemas used by tests and the CLI.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: Types{TypeObject}, Properties: props, Required: required}
}

// Of returns a schema with a single primitive type.
func Of(t Type) *Schema { return &Schema{Type: Types{t}} }

// ArrayOf returns an array schema with the given item schema.
func ArrayOf(items *Schema) *Schema { return &Schema{Type: Types{TypeArray}, Items: items} }

// CheckRequest enforces the request-level contract: a top-level object that
// declares at least one property.
func (s *Schema) CheckRequest() error {
	if s == nil {
		return errors.New("schema: response schema is required")
	}
	if !s.Type.Has(TypeObject) {
		return ErrNotObject
	}
	if len(s.Properties) == 0 {
		return errors.New("schema: response schema must declare at least one property")
	}
	return s.check("$")
}

// RequiredFields returns the top-level fields a response must carry. With no
// explicit "required" list every declared property is required.
func (s *Schema) RequiredFields() []string {
	if s.Required != nil {
		return s.Required
	}
	out := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Schema) check(path string) error {
	for _, t := range s.Type {
		if !t.valid() {
			return fmt.Errorf("schema: %s: unknown type %q", path, t)
		}
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok && len(s.Properties) > 0 {
			return fmt.Errorf("schema: %s: required field %q is not declared in properties", path, name)
		}
	}
	for name, p := range s.Properties {
		if p == nil {
			return fmt.Errorf("schema: %s.%s: empty property schema", path, name)
		}
		if err := p.check(path + "." + name); err != nil {
			return err
		}
	}
	if s.Items != nil {
		return s.Items.check(path + "[]")
	}
	return nil
}

// String renders the schema as compact JSON, mostly for prompts and logs.
func (s *Schema) String() string {
	b, err := s.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Indent renders the schema as indented JSON.
func (s *Schema) Indent() string {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "{}"
	}
	return strings.TrimSpace(string(b))
}
