package progress

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

func counter(n *int32) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) {
		v := atomic.AddInt32(n, 1)
		return []byte{byte(v)}, nil
	}
}

func TestMemoryCache_GetOrCompute(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemoryCache(16)
	require.NoError(t, err)

	var calls int32
	first, err := cache.GetOrCompute(ctx, StatsKey(1), time.Minute, counter(&calls))
	require.NoError(t, err)
	second, err := cache.GetOrCompute(ctx, StatsKey(1), time.Minute, counter(&calls))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, calls)
}

func TestMemoryCache_InvalidateIsPerUser(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemoryCache(16)
	require.NoError(t, err)

	var a, b int32
	_, _ = cache.GetOrCompute(ctx, StatsKey(1), time.Minute, counter(&a))
	_, _ = cache.GetOrCompute(ctx, DailyProgressKey(1, "2024-05-10"), time.Minute, counter(&a))
	_, _ = cache.GetOrCompute(ctx, StatsKey(2), time.Minute, counter(&b))
	require.NoError(t, cache.Invalidate(ctx, 1))

	_, _ = cache.GetOrCompute(ctx, StatsKey(1), time.Minute, counter(&a))
	_, _ = cache.GetOrCompute(ctx, StatsKey(2), time.Minute, counter(&b))

	assert.EqualValues(t, 3, a)
	assert.EqualValues(t, 1, b)
	assert.Equal(t, 2, cache.Len())
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemoryCache(16)
	require.NoError(t, err)

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	var calls int32
	_, _ = cache.GetOrCompute(ctx, StatsKey(1), time.Minute, counter(&calls))
	now = now.Add(2 * time.Minute)
	_, _ = cache.GetOrCompute(ctx, StatsKey(1), time.Minute, counter(&calls))
	assert.EqualValues(t, 2, calls)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, cache.Cleanup())
	assert.Zero(t, cache.Len())
}

func TestMemoryCache_InvalidateDuringComputeIsNotStored(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemoryCache(16)
	require.NoError(t, err)

	_, err = cache.GetOrCompute(ctx, StatsKey(1), time.Minute, func(ctx context.Context) ([]byte, error) {
		require.NoError(t, cache.Invalidate(ctx, 1))
		return []byte("stale"), nil
	})
	require.NoError(t, err)

	got, err := cache.GetOrCompute(ctx, StatsKey(1), time.Minute, func(context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(got))
}

func TestMemoryCache_ConcurrentMissesComputeOnce(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemoryCache(16)
	require.NoError(t, err)

	var calls int32
	release := make(chan struct{})
	compute := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("v"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.GetOrCompute(ctx, StatsKey(7), time.Minute, compute)
			assert.NoError(t, err)
			assert.Equal(t, "v", string(v))
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestMemoryCache_CancelledCallerDoesNotFailSharedCompute(t *testing.T) {
	cache, err := NewMemoryCache(16)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) ([]byte, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte("v"), nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.GetOrCompute(firstCtx, StatsKey(3), time.Minute, compute)
		firstErr <- err
	}()
	<-started

	type result struct {
		value []byte
		err   error
	}
	second := make(chan result, 1)
	go func() {
		v, err := cache.GetOrCompute(context.Background(), StatsKey(3), time.Minute, compute)
		second <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "v", string(got.value))

	cached, err := cache.GetOrCompute(context.Background(), StatsKey(3), time.Minute, func(context.Context) ([]byte, error) {
		t.Error("value should have been cached")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "v", string(cached))
}

func TestMemoryCache_ComputeHasOwnDeadline(t *testing.T) {
	cache, err := NewMemoryCache(16)
	require.NoError(t, err)
	cache.computeTimeout = 10 * time.Millisecond

	_, err = cache.GetOrCompute(context.Background(), StatsKey(4), time.Minute, func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryCache_ComputeErrorNotCached(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemoryCache(16)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = cache.GetOrCompute(ctx, StatsKey(1), time.Minute, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, cache.Len())
}

func TestCached_RoundTrip(t *testing.T) {
	ctx := context.Background()
	type view struct {
		Level int `json:"level"`
	}

	got, err := Cached(ctx, NopCache{}, StatsKey(1), time.Minute, func(context.Context) (view, error) {
		return view{Level: 4}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, got.Level)
}
