// Package cache holds long-lived values that are fetched on first use and
// reused afterwards.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fetcher loads a fresh value.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Value caches the result of a Fetcher. Concurrent misses share a single
// fetch. Errors are returned to every waiter and are not stored.
type Value[T any] struct {
	fetch Fetcher[T]
	ttl   time.Duration
	now   func() time.Time

	mu       sync.RWMutex
	value    T
	storedAt time.Time
	ok       bool

	group singleflight.Group
}

// New returns a Value backed by fetch. A ttl of zero keeps the first
// successful result for the life of the process.
func New[T any](fetch Fetcher[T], ttl time.Duration) *Value[T] {
	return &Value[T]{fetch: fetch, ttl: ttl, now: time.Now}
}

// Get returns the cached value, fetching and storing it when absent or expired.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	if val, ok := v.cached(); ok {
		return val, nil
	}

	res, err, _ := v.group.Do("value", func() (any, error) {
		if val, ok := v.cached(); ok {
			return val, nil
		}
		val, err := v.fetch(ctx)
		if err != nil {
			return val, err
		}
		v.Set(val)
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Set stores val as if it had just been fetched.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	v.value = val
	v.storedAt = v.now()
	v.ok = true
	v.mu.Unlock()
}

// Invalidate drops the stored value so the next Get fetches again.
func (v *Value[T]) Invalidate() {
	v.mu.Lock()
	var zero T
	v.value = zero
	v.ok = false
	v.mu.Unlock()
}

func (v *Value[T]) cached() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if !v.ok {
		var zero T
		return zero, false
	}
	if v.ttl > 0 && v.now().Sub(v.storedAt) >= v.ttl {
		var zero T
		return zero, false
	}
	return v.value, true
}
