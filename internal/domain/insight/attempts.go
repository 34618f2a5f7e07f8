package insight

import (
	"context"
	"sync/atomic"
)

type attemptsKey struct{}

// WithAttempts returns a context that gateway middleware can count attempts on.
func WithAttempts(ctx context.Context) context.Context {
	return context.WithValue(ctx, attemptsKey{}, new(atomic.Int32))
}

// CountAttempt records one gateway call on ctx, if it carries a counter.
func CountAttempt(ctx context.Context) {
	if c, ok := ctx.Value(attemptsKey{}).(*atomic.Int32); ok {
		c.Add(1)
	}
}

// AttemptsFrom reports how many gateway calls were counted on ctx.
func AttemptsFrom(ctx context.Context) int {
	if c, ok := ctx.Value(attemptsKey{}).(*atomic.Int32); ok {
		return int(c.Load())
	}
	return 0
}
