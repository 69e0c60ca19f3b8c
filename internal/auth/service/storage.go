package service

import (
	"context"
	"time"
)

// DefaultStoreTimeout bounds a single store call.
const DefaultStoreTimeout = 5 * time.Second

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// bounded returns a context that expires after d (or the default).
func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultStoreTimeout
	}
	return context.WithTimeout(ctx, d)
}

// call runs fn under a store timeout.
func call[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := bounded(ctx, d)
	defer cancel()
	return fn(ctx)
}

// exec is call for store operations without a result.
func exec(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	ctx, cancel := bounded(ctx, d)
	defer cancel()
	return fn(ctx)
}
