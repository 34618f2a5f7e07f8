package schema

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"unicode/utf8"
)

// Violation is a single mismatch between a value and its schema.
type Violation struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (v Violation) String() string { return v.Path + ": " + v.Reason }

// ValidationError collects every violation found in one value.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	const max = 5
	parts := make([]string, 0, max)
	for i, v := range e.Violations {
		if i == max {
			parts = append(parts, fmt.Sprintf("and %d more", len(e.Violations)-max))
			break
		}
		parts = append(parts, v.String())
	}
	return "schema violation: " + strings.Join(parts, "; ")
}

// Validate checks a decoded JSON value (as produced by encoding/json into any)
// against the schema. The root object uses RequiredFields, nested objects only
// their explicit "required" list.
func (s *Schema) Validate(v any) error {
	var out []Violation
	s.validate("$", v, true, &out)
	if len(out) == 0 {
		return nil
	}
	return &ValidationError{Violations: out}
}

func (s *Schema) validate(path string, v any, root bool, out *[]Violation) {
	add := func(format string, args ...any) {
		*out = append(*out, Violation{Path: path, Reason: fmt.Sprintf(format, args...)})
	}

	if len(s.Type) > 0 && !matchesAny(s.Type, v) {
		add("expected %s, got %s", typeNames(s.Type), kindOf(v))
		return
	}

	if len(s.Enum) > 0 && !inEnum(s.Enum, v) {
		add("value %v is not one of %v", v, s.Enum)
	}

	switch x := v.(type) {
	case map[string]any:
		required := s.Required
		if root {
			required = s.RequiredFields()
		}
		for _, name := range required {
			if _, ok := x[name]; !ok {
				*out = append(*out, Violation{Path: path + "." + name, Reason: "required field is missing"})
			}
		}
		names := make([]string, 0, len(x))
		for name := range x {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p, declared := s.Properties[name]
			if !declared {
				if s.AdditionalProperties != nil && !*s.AdditionalProperties {
					*out = append(*out, Violation{Path: path + "." + name, Reason: "additional property is not allowed"})
				}
				continue
			}
			p.validate(path+"."+name, x[name], false, out)
		}
	case []any:
		if s.MinItems != nil && len(x) < *s.MinItems {
			add("expected at least %d items, got %d", *s.MinItems, len(x))
		}
		if s.MaxItems != nil && len(x) > *s.MaxItems {
			add("expected at most %d items, got %d", *s.MaxItems, len(x))
		}
		if s.Items != nil {
			for i, item := range x {
				s.Items.validate(fmt.Sprintf("%s[%d]", path, i), item, false, out)
			}
		}
	case string:
		if s.MinLength != nil && utf8.RuneCountInString(x) < *s.MinLength {
			add("expected at least %d characters", *s.MinLength)
		}
	case float64:
		if s.Minimum != nil && x < *s.Minimum {
			add("%v is below minimum %v", x, *s.Minimum)
		}
		if s.Maximum != nil && x > *s.Maximum {
			add("%v is above maximum %v", x, *s.Maximum)
		}
	}
}

func matchesAny(ts Types, v any) bool {
	for _, t := range ts {
		if matches(t, v) {
			return true
		}
	}
	return false
}

func matches(t Type, v any) bool {
	switch t {
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		_, ok := v.(float64)
		return ok
	case TypeInteger:
		f, ok := v.(float64)
		return ok && !math.IsInf(f, 0) && f == math.Trunc(f)
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeNull:
		return v == nil
	}
	return false
}

func kindOf(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		if x == math.Trunc(x) {
			return "integer"
		}
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

func typeNames(ts Types) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = string(t)
	}
	return strings.Join(names, " or ")
}

func inEnum(enum []any, v any) bool {
	for _, e := range enum {
		if reflect.DeepEqual(normalizeNumber(e), normalizeNumber(v)) {
			return true
		}
	}
	return false
}

// normalizeNumber folds Go numeric literals from hand-built schemas onto the
// float64 that encoding/json produces.
func normalizeNumber(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	}
	return v
}
