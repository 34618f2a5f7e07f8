package insight

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bryanwahyu/automaton-insight/internal/domain/events"
	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
	"github.com/bryanwahyu/automaton-insight/internal/domain/schema"
)

type step struct {
	delay     time.Duration
	body      string
	err       error
	ignoreCtx bool
}

// scriptedGateway answers by prompt so concurrent calls stay deterministic.
type scriptedGateway struct {
	mu    sync.Mutex
	steps map[string]step
	calls int
}

func newGateway(steps map[string]step) *scriptedGateway {
	return &scriptedGateway{steps: steps}
}

func (g *scriptedGateway) Name() string { return "scripted" }

func (g *scriptedGateway) Complete(ctx context.Context, c domain.Completion) ([]byte, error) {
	g.mu.Lock()
	g.calls++
	st, ok := g.steps[c.Prompt]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no script for prompt %q", c.Prompt)
	}
	if st.delay > 0 {
		if st.ignoreCtx {
			time.Sleep(st.delay)
		} else {
			select {
			case <-time.After(st.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if st.err != nil {
		return nil, st.err
	}
	return []byte(st.body), nil
}

func (g *scriptedGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type memRuns struct {
	mu   sync.Mutex
	runs []*domain.Run
}

func (m *memRuns) Save(_ context.Context, r *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
	return nil
}

func (m *memRuns) Get(_ context.Context, tenant string, id domain.RunID) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.TenantID == tenant && r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("run %s not found", id)
}

func (m *memRuns) Paginate(_ context.Context, tenant string, page, pageSize int) ([]*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Run
	for _, r := range m.runs {
		if r.TenantID == tenant {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRuns) All() []*domain.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Run(nil), m.runs...)
}

type memPayloads struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memPayloads) PutPayload(_ context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = data
	return "mem://" + key, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	e.Seq = uint64(len(p.events) + 1)
	p.events = append(p.events, e)
	return e
}

func (p *recordingPublisher) All() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

func scoreSchema() *schema.Schema {
	return schema.Object(map[string]*schema.Schema{"score": schema.Of(schema.TypeNumber)}, "score")
}
