package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/automaton-insight/internal/domain/schema"
)

// GetSystemPrompt provides strict directions and the caller's schema for JSON output.
func GetSystemPrompt(s *schema.Schema) string {
	var b strings.Builder
	b.WriteString(`You are a senior application security analyst. You must produce one valid JSON object only (no markdown, no commentary) that follows the JSON schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- Every property listed in "required" must be present with the declared type.
- Do not add properties that are not declared when additionalProperties is false.
- Use lowercase severity values: critical, high, medium, low, info.
- Keep string values concise.
`)
	if s != nil {
		if req := s.RequiredFields(); len(req) > 0 {
			fmt.Fprintf(&b, "- Required top-level fields: %s.\n", strings.Join(req, ", "))
		}
		b.WriteString("\nJSON schema:\n")
		b.WriteString(s.Indent())
	}
	return b.String()
}

// GetUserPrompt wraps the caller's prompt.
func GetUserPrompt(p string) string {
	return fmt.Sprintf("%s\n\nRespond with the JSON object per schema.", strings.TrimSpace(p))
}

// Combined joins system and user prompts for providers without a system role.
func Combined(s *schema.Schema, p string) string {
	return GetSystemPrompt(s) + "\n\n" + GetUserPrompt(p)
}
