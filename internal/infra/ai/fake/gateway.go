package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
	"github.com/bryanwahyu/automaton-insight/internal/domain/schema"
	"github.com/bryanwahyu/automaton-insight/internal/domain/severity"
)

// Gateway answers offline with a deterministic object shaped by the request
// schema. Severity-like fields and "findings" arrays are filled from Detect.
type Gateway struct {
	Latency time.Duration
}

func New(latency time.Duration) *Gateway { return &Gateway{Latency: latency} }

func (g *Gateway) Name() string { return "fake" }

func (g *Gateway) Complete(ctx context.Context, c domain.Completion) ([]byte, error) {
	if g.Latency > 0 {
		t := time.NewTimer(g.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, domain.Classify(ctx, ctx.Err())
		case <-t.C:
		}
	}
	if c.Schema == nil {
		return nil, domain.InvalidResponse(nil, fmt.Errorf("fake gateway needs a schema"))
	}
	findings := Detect(c.Prompt)
	v := sample(c.Schema, "", findings, 0)
	b, err := json.Marshal(v)
	if err != nil {
		return nil, domain.InvalidResponse(nil, err)
	}
	return b, nil
}

const maxDepth = 8

func sample(s *schema.Schema, name string, findings []Finding, depth int) any {
	if s == nil || depth > maxDepth {
		return nil
	}
	if len(s.Enum) > 0 {
		return pickEnum(s.Enum, name, findings)
	}
	switch {
	case s.Type.Has(schema.TypeObject):
		return sampleObject(s, findings, depth)
	case s.Type.Has(schema.TypeArray):
		return sampleArray(s, name, findings, depth)
	case s.Type.Has(schema.TypeString):
		return sampleString(s, name, findings)
	case s.Type.Has(schema.TypeInteger):
		return int(sampleNumber(s, name, findings))
	case s.Type.Has(schema.TypeNumber):
		return sampleNumber(s, name, findings)
	case s.Type.Has(schema.TypeBoolean):
		return Top(findings).Rank() >= severity.High.Rank()
	}
	return nil
}

func sampleObject(s *schema.Schema, findings []Finding, depth int) map[string]any {
	out := make(map[string]any, len(s.Properties))
	names := make([]string, 0, len(s.Properties))
	for n := range s.Properties {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		out[n] = sample(s.Properties[n], n, findings, depth+1)
	}
	return out
}

func sampleArray(s *schema.Schema, name string, findings []Finding, depth int) []any {
	n := 1
	if strings.EqualFold(name, "findings") {
		n = len(findings)
	}
	if s.MinItems != nil && *s.MinItems > n {
		n = *s.MinItems
	}
	if s.MaxItems != nil && *s.MaxItems < n {
		n = *s.MaxItems
	}
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		// each item sees the finding at its position first
		scoped := findings
		if i < len(findings) {
			scoped = findings[i : i+1]
		}
		out = append(out, sample(s.Items, name, scoped, depth+1))
	}
	return out
}

func sampleString(s *schema.Schema, name string, findings []Finding) string {
	lower := strings.ToLower(name)
	var v string
	switch {
	case isSeverityField(lower):
		v = string(Top(findings))
	case lower == "title" || lower == "name":
		v = findings[0].Title
	case lower == "summary" || lower == "description" || lower == "details":
		v = findings[0].Summary
	case strings.Contains(lower, "recommend") || lower == "advice" || lower == "remediation":
		v = findings[0].Recommendation
	case name == "":
		v = "sample"
	default:
		v = "sample " + name
	}
	if s.MinLength != nil {
		for len(v) < *s.MinLength {
			v += "."
		}
	}
	return v
}

func sampleNumber(s *schema.Schema, name string, findings []Finding) float64 {
	v := 0.0
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "score") || strings.Contains(lower, "risk"):
		v = float64(Top(findings).Rank() * 20)
	case strings.Contains(lower, "count") || lower == "total":
		v = float64(len(findings))
	}
	if s.Minimum != nil && v < *s.Minimum {
		v = *s.Minimum
	}
	if s.Maximum != nil && v > *s.Maximum {
		v = *s.Maximum
	}
	return v
}

func pickEnum(enum []any, name string, findings []Finding) any {
	if isSeverityField(strings.ToLower(name)) {
		top := Top(findings)
		for _, e := range enum {
			if str, ok := e.(string); ok {
				if l, ok := severity.Parse(str); ok && l == top {
					return e
				}
			}
		}
	}
	return enum[0]
}

func isSeverityField(lower string) bool {
	return severity.Fields[lower]
}
