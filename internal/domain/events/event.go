package events

import (
	"context"
	"time"

	"github.com/bryanwahyu/automaton-insight/internal/domain/severity"
)

// Kind enum
type Kind string

const (
	ThreatDetected     Kind = "threat_detected"
	DeploymentRecorded Kind = "deployment_recorded"
	InsightCompleted   Kind = "insight_completed"
	InsightFailed      Kind = "insight_failed"
)

// Kinds lists every known event kind.
var Kinds = []Kind{ThreatDetected, DeploymentRecorded, InsightCompleted, InsightFailed}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, x := range Kinds {
		if x == k {
			return true
		}
	}
	return false
}

// Event is one entry in the shared, append-only event log.
type Event struct {
	Seq      uint64            `json:"seq"`
	Kind     Kind              `json:"kind"`
	TenantID string            `json:"tenant_id"`
	Source   string            `json:"source,omitempty"`
	Severity severity.Level    `json:"severity,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	At       time.Time         `json:"at"`
}

// Publisher appends an event and returns it with Seq and At filled in.
type Publisher interface {
	Publish(ctx context.Context, e Event) Event
}

// Counts is a per-kind tally.
type Counts map[Kind]int
