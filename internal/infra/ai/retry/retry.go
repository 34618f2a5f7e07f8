package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
	"github.com/bryanwahyu/automaton-insight/internal/metrics"
)

const (
	defaultBaseDelay = 300 * time.Millisecond
	defaultMaxDelay  = 5 * time.Second
)

// Options configure the retrying gateway.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Logger      *zap.Logger
}

// Gateway retries transport failures of the wrapped gateway with jittered
// exponential backoff. Invalid responses and cancellations return immediately.
type Gateway struct {
	next domain.Gateway
	opts Options
	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New wraps next. MaxAttempts below 1 is treated as 1 (no retry).
func New(next domain.Gateway, opts Options) *Gateway {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Gateway{next: next, opts: opts, sleep: sleepCtx}
}

func (g *Gateway) Name() string { return g.next.Name() }

func (g *Gateway) Complete(ctx context.Context, c domain.Completion) ([]byte, error) {
	var lastErr error
	delay := g.opts.BaseDelay
	for attempt := 1; attempt <= g.opts.MaxAttempts; attempt++ {
		domain.CountAttempt(ctx)
		raw, err := g.next.Complete(ctx, c)
		if err == nil {
			metrics.GatewayAttemptsTotal.WithLabelValues(g.Name(), "ok").Inc()
			return raw, nil
		}
		lastErr = domain.Classify(ctx, err)
		metrics.GatewayAttemptsTotal.WithLabelValues(g.Name(), string(domain.KindOf(lastErr))).Inc()

		var rf *domain.RequestFailed
		if !errors.As(lastErr, &rf) || !rf.Retryable() {
			return nil, lastErr
		}
		if attempt == g.opts.MaxAttempts || ctx.Err() != nil {
			break
		}

		wait := delay + jitter(delay)
		g.opts.Logger.Warn("gateway attempt failed, retrying",
			zap.String("provider", g.Name()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(lastErr))
		if err := g.sleep(ctx, wait); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, domain.Cancelled(err)
			}
			return nil, lastErr
		}
		delay *= 2
		if delay > g.opts.MaxDelay {
			delay = g.opts.MaxDelay
		}
	}
	return nil, lastErr
}

// jitter returns random(0, d/2).
func jitter(d time.Duration) time.Duration {
	half := int64(d / 2)
	if half <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(half))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
