package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFetchesOnce(t *testing.T) {
	var calls atomic.Int32
	v := New(func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "secret", nil
	}, 0)

	for i := 0; i < 5; i++ {
		got, err := v.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "secret", got)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetSharesConcurrentFetch(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	v := New(func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}, 0)

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := v.Get(context.Background())
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, 42, got)
	}
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestGetDoesNotCacheErrors(t *testing.T) {
	var calls atomic.Int32
	v := New(func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("unavailable")
		}
		return "ok", nil
	}, 0)

	_, err := v.Get(context.Background())
	require.Error(t, err)

	got, err := v.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetRefreshesAfterTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	var calls atomic.Int32
	v := New(func(ctx context.Context) (int32, error) {
		return calls.Add(1), nil
	}, time.Minute)
	v.now = func() time.Time { return now }

	first, err := v.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), first)

	now = now.Add(30 * time.Second)
	second, _ := v.Get(context.Background())
	assert.Equal(t, int32(1), second)

	now = now.Add(31 * time.Second)
	third, _ := v.Get(context.Background())
	assert.Equal(t, int32(2), third)
}

func TestSetAndInvalidate(t *testing.T) {
	var calls atomic.Int32
	v := New(func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "fetched", nil
	}, 0)

	v.Set("preset")
	got, err := v.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "preset", got)
	assert.Zero(t, calls.Load())

	v.Invalidate()
	got, err = v.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fetched", got)
	assert.Equal(t, int32(1), calls.Load())
}
