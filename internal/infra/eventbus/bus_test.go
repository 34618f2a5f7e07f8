package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bryanwahyu/automaton-insight/internal/domain/events"
	"github.com/bryanwahyu/automaton-insight/internal/domain/severity"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestPublish_StampsAndCounts(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	b := New(WithClock(fixedClock{now}))

	e1 := b.Publish(context.Background(), events.Event{Kind: events.ThreatDetected, TenantID: "acme", Severity: severity.High})
	e2 := b.Publish(context.Background(), events.Event{Kind: events.DeploymentRecorded, TenantID: "acme"})
	b.Publish(context.Background(), events.Event{Kind: events.ThreatDetected, TenantID: "globex"})

	assert.Equal(t, uint64(1), e1.Seq)
	assert.Equal(t, uint64(2), e2.Seq)
	assert.Equal(t, now, e1.At)

	c := b.Counts("acme")
	assert.Equal(t, 1, c[events.ThreatDetected])
	assert.Equal(t, 1, c[events.DeploymentRecorded])
	assert.Equal(t, 0, c[events.InsightFailed])
	assert.Equal(t, 1, b.Counts("globex")[events.ThreatDetected])
}

func TestSince_FiltersByTenantAndSeq(t *testing.T) {
	b := New()
	for i := 0; i < 3; i++ {
		b.Publish(context.Background(), events.Event{Kind: events.ThreatDetected, TenantID: "acme"})
		b.Publish(context.Background(), events.Event{Kind: events.ThreatDetected, TenantID: "globex"})
	}

	got := b.Since("acme", 2)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].Seq)
	assert.Equal(t, uint64(5), got[1].Seq)
	assert.Len(t, b.Since("", 0), 6)
}

func TestCapacity_TrimsLogButKeepsCounts(t *testing.T) {
	b := New(WithCapacity(2))
	for i := 0; i < 5; i++ {
		b.Publish(context.Background(), events.Event{Kind: events.DeploymentRecorded, TenantID: "acme"})
	}
	got := b.Since("acme", 0)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(4), got[0].Seq)
	assert.Equal(t, 5, b.Counts("acme")[events.DeploymentRecorded])
}

func TestCounts_TenantsAreBounded(t *testing.T) {
	b := New(WithMaxTenants(2))
	for _, tenant := range []string{"acme", "globex", "initech"} {
		b.Publish(context.Background(), events.Event{Kind: events.ThreatDetected, TenantID: tenant})
	}

	assert.Equal(t, 2, b.Tenants())
	assert.Equal(t, 0, b.Counts("acme")[events.ThreatDetected])
	assert.Equal(t, 1, b.Counts("initech")[events.ThreatDetected])
}

func TestNew_NonPositiveCapacityFallsBack(t *testing.T) {
	b := New(WithCapacity(0))
	b.Publish(context.Background(), events.Event{Kind: events.DeploymentRecorded, TenantID: "acme"})
	assert.Len(t, b.Since("acme", 0), 1)
}

func TestSubscribe_DeliversAndCloses(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx, "acme", 4)

	b.Publish(context.Background(), events.Event{Kind: events.ThreatDetected, TenantID: "globex"})
	b.Publish(context.Background(), events.Event{Kind: events.ThreatDetected, TenantID: "acme"})

	e := <-ch
	assert.Equal(t, "acme", e.TenantID)

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestSubscribe_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = b.Subscribe(ctx, "", 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(context.Background(), events.Event{Kind: events.ThreatDetected, TenantID: "acme"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Equal(t, uint64(9), b.Dropped())
}

func TestWaitFor(t *testing.T) {
	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	var got events.Event
	var err error
	go func() {
		defer wg.Done()
		got, err = b.WaitFor(ctx, "acme", func(e events.Event) bool { return e.Kind == events.InsightFailed })
	}()

	require.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return len(b.subs) == 1
	}, time.Second, time.Millisecond)

	b.Publish(context.Background(), events.Event{Kind: events.InsightCompleted, TenantID: "acme"})
	b.Publish(context.Background(), events.Event{Kind: events.InsightFailed, TenantID: "acme"})
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, events.InsightFailed, got.Kind)
}
