package severity

import "github.com/bryanwahyu/automaton-insight/internal/domain/schema"

// Fields holds the JSON keys whose string values are treated as severities.
var Fields = map[string]bool{
	"severity":     true,
	"risk_level":   true,
	"level":        true,
	"threat_level": true,
}

// Normalize rewrites recognised severity fields in a decoded JSON value to the
// canonical spelling, in place, and returns the tally of everything it saw.
// Values that do not parse are left untouched. A field whose schema declares
// an enum keeps the caller's spelling and is only counted, so a result that
// validated against s still validates after Normalize. s may be nil.
func Normalize(v any, s *schema.Schema) Counts {
	var c Counts
	normalize(v, s, &c)
	return c
}

func normalize(v any, s *schema.Schema, c *Counts) {
	switch x := v.(type) {
	case map[string]any:
		for k, vv := range x {
			prop := property(s, k)
			if str, ok := vv.(string); ok && Fields[k] {
				if l, ok := Parse(str); ok {
					if prop == nil || len(prop.Enum) == 0 {
						x[k] = string(l)
					}
					c.Add(l)
				}
				continue
			}
			normalize(vv, prop, c)
		}
	case []any:
		var items *schema.Schema
		if s != nil {
			items = s.Items
		}
		for _, vv := range x {
			normalize(vv, items, c)
		}
	}
}

func property(s *schema.Schema, key string) *schema.Schema {
	if s == nil {
		return nil
	}
	return s.Properties[key]
}
