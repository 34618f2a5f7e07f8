package eventbus

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-insight/internal/application"
	"github.com/bryanwahyu/automaton-insight/internal/domain/events"
	"github.com/bryanwahyu/automaton-insight/internal/metrics"
)

const (
	defaultCapacity   = 10000
	defaultSubscriber = 64
	defaultMaxTenants = 1024
)

// Bus is an append-only, in-memory event log with fan-out to subscribers.
// Publish never blocks: a subscriber whose buffer is full misses the event
// and the drop is counted.
type Bus struct {
	clock      application.Clock
	logger     *zap.Logger
	capacity   int
	maxTenants int

	mu      sync.RWMutex
	seq     uint64
	log     []events.Event
	counts  *lru.Cache[string, events.Counts]
	subs    map[uint64]*subscriber
	nextSub uint64
	dropped uint64
}

type subscriber struct {
	tenant string
	ch     chan events.Event
}

// Option configures a Bus.
type Option func(*Bus)

// WithCapacity bounds how many events are kept for replay. Counts are not
// affected by trimming.
func WithCapacity(n int) Option { return func(b *Bus) { b.capacity = n } }

// WithMaxTenants bounds how many tenants keep per-kind counts. The least
// recently active tenant's counts are forgotten first.
func WithMaxTenants(n int) Option { return func(b *Bus) { b.maxTenants = n } }

// WithClock sets the clock used to stamp events.
func WithClock(c application.Clock) Option { return func(b *Bus) { b.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(b *Bus) { b.logger = l } }

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		clock:      application.SystemClock{},
		logger:     zap.NewNop(),
		capacity:   defaultCapacity,
		maxTenants: defaultMaxTenants,
		subs:       map[uint64]*subscriber{},
	}
	for _, o := range opts {
		o(b)
	}
	if b.capacity <= 0 {
		b.capacity = defaultCapacity
	}
	if b.maxTenants <= 0 {
		b.maxTenants = defaultMaxTenants
	}
	b.counts, _ = lru.New[string, events.Counts](b.maxTenants)
	return b
}

// Publish appends e, stamping Seq and At, and fans it out.
func (b *Bus) Publish(_ context.Context, e events.Event) events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	e.Seq = b.seq
	if e.At.IsZero() {
		e.At = b.clock.Now()
	}
	b.log = append(b.log, e)
	if len(b.log) > b.capacity {
		b.log = append([]events.Event(nil), b.log[len(b.log)-b.capacity:]...)
	}
	c, ok := b.counts.Get(e.TenantID)
	if !ok {
		c = events.Counts{}
		b.counts.Add(e.TenantID, c)
	}
	c[e.Kind]++
	metrics.EventsPublishedTotal.WithLabelValues(string(e.Kind)).Inc()

	for id, s := range b.subs {
		if s.tenant != "" && s.tenant != e.TenantID {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.dropped++
			metrics.EventsDroppedTotal.Inc()
			b.logger.Warn("event dropped for slow subscriber",
				zap.Uint64("subscriber", id), zap.Uint64("seq", e.Seq), zap.String("kind", string(e.Kind)))
		}
	}
	return e
}

// Since returns the retained events of tenant with Seq > seq, oldest first.
// An empty tenant matches every tenant.
func (b *Bus) Since(tenant string, seq uint64) []events.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := []events.Event{}
	for _, e := range b.log {
		if e.Seq <= seq {
			continue
		}
		if tenant != "" && e.TenantID != tenant {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Counts returns the per-kind totals for tenant, every known kind included.
func (b *Bus) Counts(tenant string) events.Counts {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(events.Counts, len(events.Kinds))
	for _, k := range events.Kinds {
		out[k] = 0
	}
	if c, ok := b.counts.Peek(tenant); ok {
		for k, n := range c {
			out[k] = n
		}
	}
	return out
}

// Tenants reports how many tenants currently have counts.
func (b *Bus) Tenants() int { return b.counts.Len() }

// Dropped reports how many deliveries were skipped for slow subscribers.
func (b *Bus) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Subscribe delivers every event of tenant published after the call until
// ctx ends, at which point the channel is closed. An empty tenant receives
// all tenants.
func (b *Bus) Subscribe(ctx context.Context, tenant string, buffer int) <-chan events.Event {
	if buffer <= 0 {
		buffer = defaultSubscriber
	}
	s := &subscriber{tenant: tenant, ch: make(chan events.Event, buffer)}

	b.mu.Lock()
	b.nextSub++
	id := b.nextSub
	b.subs[id] = s
	b.mu.Unlock()

	context.AfterFunc(ctx, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		close(s.ch)
	})
	return s.ch
}

// WaitFor blocks until an event matching fn is published or ctx ends.
func (b *Bus) WaitFor(ctx context.Context, tenant string, fn func(events.Event) bool) (events.Event, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := b.Subscribe(ctx, tenant, 0)
	for {
		select {
		case <-ctx.Done():
			return events.Event{}, ctx.Err()
		case e, ok := <-ch:
			if !ok {
				return events.Event{}, ctx.Err()
			}
			if fn(e) {
				return e, nil
			}
		}
	}
}

var _ events.Publisher = (*Bus)(nil)
