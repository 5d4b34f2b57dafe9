// Package cache provides short-lived read caches used by checkout. Values are
// stored as JSON so the in-memory and Redis backends behave identically.
package cache

import (
	"context"
	"time"
)

// Cache is the injected cache abstraction. Get decodes the stored value into
// dest and reports whether the key was present and not expired.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Clock supplies the current time for TTL evaluation.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns UTC wall-clock time.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
