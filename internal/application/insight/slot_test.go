package insight

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
)

func req(prompt string) domain.Request {
	return domain.Request{TenantID: "acme", Slot: "risk", Prompt: prompt, Schema: scoreSchema()}
}

func TestSlot_RapidFireLatestWins(t *testing.T) {
	for _, ignoreCtx := range []bool{false, true} {
		gw := newGateway(map[string]step{
			"first":  {delay: 100 * time.Millisecond, body: `{"score": 1}`, ignoreCtx: ignoreCtx},
			"second": {delay: 20 * time.Millisecond, body: `{"score": 2}`, ignoreCtx: ignoreCtx},
		})
		slot := NewSlot("risk", &Service{Gateway: gw}, nil)

		g1 := slot.Start(req("first"))
		time.Sleep(5 * time.Millisecond)
		g2 := slot.Start(req("second"))
		slot.Wait()

		snap := slot.Snapshot()
		assert.Equal(t, uint64(1), g1)
		assert.Equal(t, uint64(2), g2)
		assert.Equal(t, StatusReady, snap.Status)
		assert.Equal(t, domain.Result{"score": float64(2)}, snap.Result, "ignoreCtx=%v", ignoreCtx)
		assert.Empty(t, snap.LastError)
		slot.Close()
	}
}

func TestSlot_TriggerSupersededReturnsCancelled(t *testing.T) {
	gw := newGateway(map[string]step{
		"a": {delay: 80 * time.Millisecond, body: `{"score": 1}`, ignoreCtx: true},
		"b": {delay: 10 * time.Millisecond, body: `{"score": 2}`},
	})
	slot := NewSlot("risk", &Service{Gateway: gw}, nil)
	defer slot.Close()

	var wg sync.WaitGroup
	var errA error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errA = slot.Trigger(context.Background(), req("a"))
	}()
	time.Sleep(5 * time.Millisecond)

	resB, errB := slot.Trigger(context.Background(), req("b"))
	wg.Wait()

	require.NoError(t, errB)
	assert.Equal(t, float64(2), resB["score"])
	assert.ErrorIs(t, errA, domain.ErrCancelled)
	assert.ErrorIs(t, errA, ErrSuperseded)
	assert.Equal(t, domain.Result{"score": float64(2)}, slot.Snapshot().Result)
}

func TestSlot_TransportFailureKeepsPriorResult(t *testing.T) {
	gw := newGateway(map[string]step{
		"ok":   {body: `{"score": 1}`},
		"down": {err: errors.New("503 service unavailable")},
	})
	slot := NewSlot("risk", &Service{Gateway: gw}, nil)
	defer slot.Close()

	_, err := slot.Trigger(context.Background(), req("ok"))
	require.NoError(t, err)

	_, err = slot.Trigger(context.Background(), req("down"))
	require.ErrorIs(t, err, domain.ErrTransport)

	snap := slot.Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, domain.Result{"score": float64(1)}, snap.Result)
	assert.Equal(t, domain.KindTransport, snap.ErrorKind)
	assert.Contains(t, snap.LastError, "503")
}

func TestSlot_FailureWithoutResultGoesIdle(t *testing.T) {
	gw := newGateway(map[string]step{"bad": {body: `{"other": 1}`}})
	slot := NewSlot("risk", &Service{Gateway: gw}, nil)
	defer slot.Close()

	_, err := slot.Trigger(context.Background(), req("bad"))
	require.ErrorIs(t, err, domain.ErrInvalidResponse)

	snap := slot.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.Result)
	assert.Equal(t, domain.KindInvalidResponse, snap.ErrorKind)
}

func TestSlot_SuccessClearsLastError(t *testing.T) {
	gw := newGateway(map[string]step{
		"bad": {body: `nope`},
		"ok":  {body: `{"score": 3}`},
	})
	slot := NewSlot("risk", &Service{Gateway: gw}, nil)
	defer slot.Close()

	_, _ = slot.Trigger(context.Background(), req("bad"))
	require.NotEmpty(t, slot.Snapshot().LastError)
	_, err := slot.Trigger(context.Background(), req("ok"))
	require.NoError(t, err)
	assert.Empty(t, slot.Snapshot().LastError)
}

func TestSlot_CallerCancellationIsSilent(t *testing.T) {
	gw := newGateway(map[string]step{"slow": {delay: time.Second, body: `{"score": 1}`}})
	slot := NewSlot("risk", &Service{Gateway: gw}, nil)
	defer slot.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	_, err := slot.Trigger(ctx, req("slow"))
	require.ErrorIs(t, err, domain.ErrCancelled)

	snap := slot.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.LastError)
	assert.Equal(t, uint64(1), snap.Generation)
}

func TestSlot_CloseCancelsInFlight(t *testing.T) {
	gw := newGateway(map[string]step{"slow": {delay: 5 * time.Second, body: `{"score": 1}`}})
	slot := NewSlot("risk", &Service{Gateway: gw}, nil)

	slot.Start(req("slow"))
	assert.Equal(t, StatusLoading, slot.Snapshot().Status)

	done := make(chan struct{})
	go func() {
		slot.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not cancel the call in flight")
	}
	assert.NotEqual(t, StatusLoading, slot.Snapshot().Status)
}

func TestRegistry_ReusesAndEvicts(t *testing.T) {
	gw := newGateway(map[string]step{"ok": {body: `{"score": 1}`}})
	reg, err := NewRegistry(2, &Service{Gateway: gw}, nil)
	require.NoError(t, err)
	defer reg.Close()

	a := reg.Slot("acme", "risk")
	assert.Same(t, a, reg.Slot("acme", "risk"))
	assert.NotSame(t, a, reg.Slot("globex", "risk"))

	reg.Slot("acme", "compliance")
	assert.Equal(t, 2, reg.Len())
	_, ok := reg.Lookup("acme", "risk")
	assert.False(t, ok, "least recently used slot is evicted")
}
