package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrDegraded marks a check that still serves traffic but needs attention.
// Wrap it to report "degraded" instead of "unhealthy".
var ErrDegraded = errors.New("degraded")

// HealthChecker defines interface for health checking
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// DatabaseHealthChecker pings the run history database.
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.DB.PingContext(ctx)
}

// DropCounter is satisfied by the event bus.
type DropCounter interface {
	Dropped() uint64
}

// EventBusChecker reports degraded when more than Tolerance deliveries were
// dropped for slow subscribers since the previous check.
type EventBusChecker struct {
	Bus       DropCounter
	Tolerance uint64

	last atomic.Uint64
}

func (c *EventBusChecker) Check(context.Context) error {
	now := c.Bus.Dropped()
	prev := c.last.Swap(now)
	if d := now - prev; now >= prev && d > c.Tolerance {
		return fmt.Errorf("%w: %d events dropped for slow subscribers", ErrDegraded, d)
	}
	return nil
}

// Ticker is satisfied by the telemetry feed.
type Ticker interface {
	LastTick() time.Time
}

// TelemetryChecker reports degraded when a running feed has not ticked for
// longer than MaxAge. A feed that never ticked is considered idle.
type TelemetryChecker struct {
	Feed   Ticker
	MaxAge time.Duration
	Now    func() time.Time
}

func (c *TelemetryChecker) Check(context.Context) error {
	last := c.Feed.LastTick()
	if last.IsZero() {
		return nil
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if age := now().Sub(last); age > c.MaxAge {
		return fmt.Errorf("%w: telemetry stalled for %s", ErrDegraded, age.Round(time.Second))
	}
	return nil
}

// HealthStatus is the /healthz body.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

// CheckStatus represents individual check status
type CheckStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthHandler runs every checker concurrently. Any unhealthy check answers
// 503; degraded checks keep 200 so load balancers leave the instance in.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := HealthStatus{
			Status:    statusHealthy,
			Timestamp: time.Now(),
			Checks:    make(map[string]CheckStatus, len(checkers)),
		}

		var mu sync.Mutex
		var g errgroup.Group
		for name, checker := range checkers {
			g.Go(func() error {
				start := time.Now()
				err := checker.Check(ctx)
				cs := CheckStatus{Status: statusHealthy, LatencyMS: time.Since(start).Milliseconds()}
				switch {
				case errors.Is(err, ErrDegraded):
					cs.Status, cs.Message = statusDegraded, err.Error()
				case err != nil:
					cs.Status, cs.Message = statusUnhealthy, err.Error()
				}

				mu.Lock()
				defer mu.Unlock()
				health.Checks[name] = cs
				if rank(cs.Status) > rank(health.Status) {
					health.Status = cs.Status
				}
				return nil
			})
		}
		_ = g.Wait()

		statusCode := http.StatusOK
		if health.Status == statusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(health)
	}
}

func rank(status string) int {
	switch status {
	case statusUnhealthy:
		return 2
	case statusDegraded:
		return 1
	}
	return 0
}

// LivenessHandler answers "ok" while the process is up.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
