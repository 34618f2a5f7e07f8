package insight

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
	"github.com/bryanwahyu/automaton-insight/internal/domain/schema"
)

var errNotObject = errors.New("response is not a JSON object")

// Decode turns raw model output into a validated Result. Markdown code fences
// are stripped and a JSON object wrapped in a JSON string is unwrapped once.
// Every failure is an InvalidResponse carrying the raw payload.
func Decode(raw []byte, s *schema.Schema) (domain.Result, error) {
	body := extractJSON(raw)
	if len(body) == 0 {
		return nil, domain.InvalidResponse(raw, errors.New("empty response"))
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, domain.InvalidResponse(raw, fmt.Errorf("malformed JSON: %w", err))
	}
	if str, ok := v.(string); ok {
		if err := json.Unmarshal([]byte(str), &v); err != nil {
			return nil, domain.InvalidResponse(raw, errNotObject)
		}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, domain.InvalidResponse(raw, errNotObject)
	}
	if err := s.Validate(obj); err != nil {
		return nil, domain.InvalidResponse(raw, err)
	}
	return domain.Result(obj), nil
}

func extractJSON(raw []byte) []byte {
	content := bytes.TrimSpace(raw)
	// Remove markdown code blocks if present
	if i := bytes.Index(content, []byte("```")); i >= 0 {
		start := i + 3
		if bytes.HasPrefix(content[start:], []byte("json")) {
			start += 4
		}
		end := bytes.LastIndex(content, []byte("```"))
		if end > start {
			content = content[start:end]
		}
	}
	return bytes.TrimSpace(content)
}
