package cache

import (
	"context"
	"time"
)

// NullCache stores nothing. The CLI uses it for --no-cache and the topology
// client falls back to it when no cache is configured, so every lookup is a
// miss and every fetch reaches the service.
//
// A cancelled context is still reported, so callers see the same
// cancellation behavior with caching on or off.
type NullCache struct{}

var _ Cache = NullCache{}

// NewNullCache returns a [NullCache].
func NewNullCache() Cache {
	return NullCache{}
}

// Get reports a miss, or ctx.Err() once ctx is done.
func (NullCache) Get(ctx context.Context, _ string) ([]byte, bool, error) {
	return nil, false, ctx.Err()
}

// Set discards data.
func (NullCache) Set(ctx context.Context, _ string, _ []byte, _ time.Duration) error {
	return ctx.Err()
}

// Delete has nothing to remove.
func (NullCache) Delete(ctx context.Context, _ string) error {
	return ctx.Err()
}

func (NullCache) Close() error { return nil }
