package insight

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bryanwahyu/automaton-insight/internal/application"
	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
	"github.com/bryanwahyu/automaton-insight/internal/metrics"
)

// Status of a slot.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
)

// ErrSuperseded is the cause carried by calls replaced by a newer trigger.
var ErrSuperseded = errors.New("superseded by a newer request")

// Snapshot is the state a UI renders for one slot.
type Snapshot struct {
	Name       string        `json:"name"`
	Status     Status        `json:"status"`
	Generation uint64        `json:"generation"`
	Result     domain.Result `json:"result,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
	ErrorKind  domain.Kind   `json:"error_kind,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Slot owns the displayed state of one target (a screen widget). Every
// trigger bumps the generation and cancels the call in flight; a result is
// applied only while its generation is current, so the most recent trigger
// always wins regardless of completion order.
type Slot struct {
	name    string
	invoker Invoker
	clock   application.Clock

	base       context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
	closeOnce  sync.Once

	mu        sync.Mutex
	gen       uint64
	cancel    context.CancelFunc
	status    Status
	result    domain.Result
	lastErr   error
	updatedAt time.Time
}

// NewSlot creates an idle slot.
func NewSlot(name string, inv Invoker, clock application.Clock) *Slot {
	if clock == nil {
		clock = application.SystemClock{}
	}
	base, cancel := context.WithCancel(context.Background())
	return &Slot{
		name:       name,
		invoker:    inv,
		clock:      clock,
		base:       base,
		baseCancel: cancel,
		status:     StatusIdle,
		updatedAt:  clock.Now(),
	}
}

// Trigger runs a request and blocks until it settles. A call superseded while
// in flight returns a Cancelled error and leaves the slot untouched.
func (s *Slot) Trigger(ctx context.Context, req domain.Request) (domain.Result, error) {
	gen, callCtx, done := s.begin(ctx)
	defer done()
	res, err := s.invoker.Invoke(callCtx, req)
	return s.finish(gen, res, err)
}

// Start runs a request in the background and returns its generation.
func (s *Slot) Start(req domain.Request) uint64 {
	gen, callCtx, done := s.begin(s.base)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer done()
		res, err := s.invoker.Invoke(callCtx, req)
		_, _ = s.finish(gen, res, err)
	}()
	return gen
}

// Snapshot returns a copy of the current state.
func (s *Slot) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Name:       s.name,
		Status:     s.status,
		Generation: s.gen,
		Result:     s.result,
		UpdatedAt:  s.updatedAt,
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
		snap.ErrorKind = domain.KindOf(s.lastErr)
	}
	return snap
}

// Wait blocks until every background call started with Start has settled.
func (s *Slot) Wait() { s.wg.Wait() }

// Close cancels the call in flight and waits for background calls.
func (s *Slot) Close() {
	s.closeOnce.Do(func() {
		s.baseCancel()
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
}

func (s *Slot) begin(ctx context.Context) (uint64, context.Context, func()) {
	callCtx, cancel := context.WithCancelCause(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = func() { cancel(ErrSuperseded) }
	s.status = StatusLoading
	s.updatedAt = s.clock.Now()
	s.mu.Unlock()

	return gen, callCtx, func() { cancel(nil) }
}

func (s *Slot) finish(gen uint64, res domain.Result, err error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		metrics.SlotSupersededTotal.Inc()
		return nil, domain.Cancelled(ErrSuperseded)
	}

	s.cancel = nil
	s.updatedAt = s.clock.Now()
	if err == nil {
		s.result = res
		s.lastErr = nil
		s.status = StatusReady
		return res, nil
	}

	// keep whatever was displayed before; only the loading flag clears
	if s.result != nil {
		s.status = StatusReady
	} else {
		s.status = StatusIdle
	}
	if domain.KindOf(err) != domain.KindCancelled {
		s.lastErr = err
	}
	return nil, err
}
