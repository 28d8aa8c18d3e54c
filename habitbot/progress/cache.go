package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/ellavondegurechaff/habitbot/habitbot/config"
)

// Cache holds expensive per-user aggregate views. Writers invalidate a user
// after their transaction commits.
type Cache interface {
	GetOrCompute(ctx context.Context, key Key, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error)
	Invalidate(ctx context.Context, userID int64) error
}

type KeyKind string

const (
	KindUserStats     KeyKind = "user_stats"
	KindDailyProgress KeyKind = "daily_progress"
	KindUserHabits    KeyKind = "user_habits"
)

type Key struct {
	Kind   KeyKind
	UserID int64
	// Suffix distinguishes variants, such as the day or active/all.
	Suffix string
}

func StatsKey(userID int64) Key { return Key{Kind: KindUserStats, UserID: userID} }

func DailyProgressKey(userID int64, day string) Key {
	return Key{Kind: KindDailyProgress, UserID: userID, Suffix: day}
}

func HabitsKey(userID int64, activeOnly bool) Key {
	suffix := "all"
	if activeOnly {
		suffix = "active"
	}
	return Key{Kind: KindUserHabits, UserID: userID, Suffix: suffix}
}

func (k Key) String() string {
	if k.Suffix == "" {
		return fmt.Sprintf("%s:%d", k.Kind, k.UserID)
	}
	return fmt.Sprintf("%s:%d:%s", k.Kind, k.UserID, k.Suffix)
}

// Cached wraps Cache with JSON encoding of the cached value.
func Cached[T any](ctx context.Context, c Cache, key Key, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var out T
	raw, err := c.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return out, nil
}

type cachedEntry struct {
	value      []byte
	expiresAt  time.Time
	generation uint64
}

// MemoryCache is a bounded in-process LRU with per-entry expiry. Each user has
// a generation counter bumped on Invalidate: entries from older generations
// are never served and computes started before an invalidation are not stored.
type MemoryCache struct {
	entries        *lru.Cache
	group          singleflight.Group
	now            func() time.Time
	computeTimeout time.Duration

	mu          sync.Mutex
	generations map[int64]uint64
}

func NewMemoryCache(size int) (*MemoryCache, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &MemoryCache{
		entries:        entries,
		now:            time.Now,
		computeTimeout: config.StatsQueryTimeout,
		generations:    make(map[int64]uint64),
	}, nil
}

func (c *MemoryCache) generation(userID int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[userID]
}

func (c *MemoryCache) GetOrCompute(ctx context.Context, key Key, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	gen := c.generation(key.UserID)
	name := key.String()

	if v, ok := c.entries.Get(name); ok {
		entry := v.(cachedEntry)
		if entry.generation == gen && c.now().Before(entry.expiresAt) {
			return entry.value, nil
		}
	}

	// The shared compute outlives any one caller, so it runs detached from
	// the caller that started it with its own deadline.
	flight := fmt.Sprintf("%s#%d", name, gen)
	ch := c.group.DoChan(flight, func() (interface{}, error) {
		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()

		value, err := compute(computeCtx)
		if err != nil {
			return nil, err
		}
		if c.generation(key.UserID) == gen {
			c.entries.Add(name, cachedEntry{
				value:      value,
				expiresAt:  c.now().Add(ttl),
				generation: gen,
			})
		}
		return value, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *MemoryCache) Invalidate(_ context.Context, userID int64) error {
	c.mu.Lock()
	c.generations[userID]++
	c.mu.Unlock()

	for _, k := range c.entries.Keys() {
		name, ok := k.(string)
		if ok && keyBelongsTo(name, userID) {
			c.entries.Remove(name)
		}
	}
	return nil
}

// Cleanup drops expired entries and returns how many were removed.
func (c *MemoryCache) Cleanup() int {
	now := c.now()
	removed := 0
	for _, k := range c.entries.Keys() {
		v, ok := c.entries.Peek(k)
		if !ok {
			continue
		}
		if entry := v.(cachedEntry); !now.Before(entry.expiresAt) {
			c.entries.Remove(k)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Cache cleanup finished",
			slog.String("type", "sys"),
			slog.Int("removed", removed),
			slog.Int("remaining", c.entries.Len()))
	}
	return removed
}

func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

func keyBelongsTo(name string, userID int64) bool {
	parts := strings.SplitN(name, ":", 3)
	return len(parts) >= 2 && parts[1] == fmt.Sprint(userID)
}

// NopCache computes every time. Used when caching is disabled.
type NopCache struct{}

func (NopCache) GetOrCompute(ctx context.Context, _ Key, _ time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	return compute(ctx)
}

func (NopCache) Invalidate(context.Context, int64) error { return nil }
