package insight

import (
	"errors"
	"time"
)

// RunID identifier type
type RunID string

// RunStatus enum
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run is one recorded invocation, kept for auditing and the history endpoint.
type Run struct {
	ID           RunID     `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Slot         string    `json:"slot,omitempty"`
	Provider     string    `json:"provider"`
	Prompt       string    `json:"prompt"`
	SchemaJSON   string    `json:"schema_json"`
	Status       RunStatus `json:"status"`
	ErrorKind    Kind      `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ResultJSON   string    `json:"result_json,omitempty"` // JSON string from AI
	PayloadURL   string    `json:"payload_url,omitempty"`
	Attempts     int       `json:"attempts"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Page represents a paginated list of runs
type Page struct {
	Data     []*Run `json:"data"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// ErrRunNotFound is returned by repositories when no run matches.
var ErrRunNotFound = errors.New("insight: run not found")
