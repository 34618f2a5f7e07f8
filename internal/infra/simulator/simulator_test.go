package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRandomWalk_StaysInBounds(t *testing.T) {
	w := NewRandomWalk(7, 50, 0, 100, 30)
	for i := 0; i < 1000; i++ {
		v := w.Next()
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 100.0)
	}
}

func TestRandomWalk_StepIsBounded(t *testing.T) {
	w := NewRandomWalk(1, 500, 0, 1000, 5)
	prev := w.Value()
	for i := 0; i < 200; i++ {
		v := w.Next()
		assert.LessOrEqual(t, v-prev, 5.0)
		assert.GreaterOrEqual(t, v-prev, -5.0)
		prev = v
	}
}

func TestRandomWalk_SeedIsDeterministic(t *testing.T) {
	a := NewRandomWalk(42, 10, 0, 20, 1)
	b := NewRandomWalk(42, 10, 0, 20, 1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestRandomWalk_ClampsStartAndSwapsBounds(t *testing.T) {
	w := NewRandomWalk(1, 500, 100, 0, 1)
	assert.Equal(t, 100.0, w.Value())
}

func TestWindow_DropsOldest(t *testing.T) {
	w := NewWindow(0)
	require.Equal(t, DefaultWindow, w.Cap())
	for i := 0; i < 25; i++ {
		w.Push(Point{Value: float64(i)})
	}

	pts := w.Points()
	require.Len(t, pts, DefaultWindow)
	assert.Equal(t, 5.0, pts[0].Value)
	assert.Equal(t, 24.0, pts[len(pts)-1].Value)
}

func TestFeed_WindowAndTick(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFeed(nil, WithWindow(3), WithNow(func() time.Time { return now }))

	pts, err := f.Window("acme", "threat_score")
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, 40.0, pts[0].Value)

	for i := 0; i < 5; i++ {
		f.Tick()
	}
	pts, err = f.Window("acme", "threat_score")
	require.NoError(t, err)
	assert.Len(t, pts, 3)
	for _, p := range pts {
		assert.GreaterOrEqual(t, p.Value, 0.0)
		assert.LessOrEqual(t, p.Value, 100.0)
	}

	_, err = f.Window("acme", "nope")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestFeed_TenantsAreIndependent(t *testing.T) {
	f := NewFeed(nil)
	_, _ = f.Window("a", "tvl")
	_, _ = f.Window("b", "tvl")
	for i := 0; i < 10; i++ {
		f.Tick()
	}
	a, _ := f.Window("a", "tvl")
	b, _ := f.Window("b", "tvl")
	assert.NotEqual(t, a, b)
}

func TestFeed_RunStopsOnCancel(t *testing.T) {
	f := NewFeed(nil, WithInterval(time.Millisecond))
	_, _ = f.Window("acme", "volume")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	require.Eventually(t, func() bool {
		pts, _ := f.Window("acme", "volume")
		return len(pts) > 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestFeed_SeriesAreBounded(t *testing.T) {
	f := NewFeed([]Metric{{Name: "x", Start: 1, Min: 0, Max: 10, Step: 1}}, WithMaxSeries(3))

	for _, tenant := range []string{"a", "b", "c", "d", "e"} {
		_, err := f.Window(tenant, "x")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.Len())

	f.Tick()
	assert.Equal(t, 3, f.Len())

	// an evicted tenant starts a fresh one-point window
	pts, err := f.Window("a", "x")
	require.NoError(t, err)
	assert.Len(t, pts, 1)
	assert.Equal(t, 3, f.Len())
}

func TestFeed_LastTick(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	f := NewFeed(nil, WithNow(func() time.Time { return now }))
	assert.True(t, f.LastTick().IsZero())

	f.Tick()
	assert.True(t, now.Equal(f.LastTick()))
}
