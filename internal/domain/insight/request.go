package insight

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bryanwahyu/automaton-insight/internal/domain/schema"
)

// ErrInvalidRequest is returned before any gateway call when the request
// itself breaks the contract (empty prompt, non-object schema).
var ErrInvalidRequest = errors.New("insight: invalid request")

// Request is one structured-output call: a prompt plus the schema the caller
// is going to read from the result.
type Request struct {
	TenantID string         `json:"tenant_id,omitempty"`
	Slot     string         `json:"slot,omitempty"`
	Prompt   string         `json:"prompt"`
	Schema   *schema.Schema `json:"response_json_schema"`
}

// Validate checks the input constraints.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt must not be empty", ErrInvalidRequest)
	}
	if err := r.Schema.CheckRequest(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Completion is what a Gateway receives.
type Completion struct {
	Prompt string
	Schema *schema.Schema
}

// Result is a decoded response that passed schema validation.
type Result map[string]any
