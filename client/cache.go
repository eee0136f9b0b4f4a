package client

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultStaleTime = 5 * time.Minute
	ListStaleTime    = 2 * time.Minute
	StatsStaleTime   = 5 * time.Minute
	DefaultGCTime    = 10 * time.Minute
)

// Fetcher loads the value for one cache key.
type Fetcher func(ctx context.Context) (any, error)

type entry struct {
	data        any
	hasData     bool
	fetchedAt   time.Time
	staleTime   time.Duration
	invalidated bool
	lastUsed    time.Time
	fetch       Fetcher
}

func (e *entry) fresh(now time.Time) bool {
	return e.hasData && !e.invalidated && now.Sub(e.fetchedAt) < e.staleTime
}

// Cache stores server data by query key. Concurrent loads of one key share a
// single request, and each key remembers its fetcher so invalidated keys can
// be refetched.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	retry   RetryPolicy
	gcTime  time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

func NewCache(retry RetryPolicy, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries: make(map[string]*entry),
		retry:   retry,
		gcTime:  DefaultGCTime,
		now:     time.Now,
		logger:  logger,
	}
}

// Fetch returns the cached value for key while it is fresh and loads it with
// fetch otherwise.
func (c *Cache) Fetch(ctx context.Context, key string, staleTime time.Duration, fetch Fetcher) (any, error) {
	c.mu.Lock()
	now := c.now()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	e.fetch = fetch
	e.staleTime = staleTime
	e.lastUsed = now
	if e.fresh(now) {
		data := e.data
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	return c.load(ctx, key)
}

func (c *Cache) load(ctx context.Context, key string) (any, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		e, ok := c.entries[key]
		var fetch Fetcher
		if ok {
			fetch = e.fetch
		}
		c.mu.Unlock()
		if fetch == nil {
			return nil, fmt.Errorf("cache: no fetcher for %q", key)
		}

		var data any
		err := c.retry.Do(ctx, func(ctx context.Context) error {
			d, err := fetch(ctx)
			if err != nil {
				return err
			}
			data = d
			return nil
		})
		if err != nil {
			c.logger.Debug("cache_fetch_failed", "key", key, "error", err)
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if e, ok := c.entries[key]; ok {
			e.data = data
			e.hasData = true
			e.fetchedAt = c.now()
			e.invalidated = false
		}
		return data, nil
	})
	return v, err
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.hasData {
		return nil, false
	}
	return e.data, true
}

// Set stores data under key as freshly fetched.
func (c *Cache) Set(key string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{staleTime: DefaultStaleTime}
		c.entries[key] = e
	}
	now := c.now()
	e.data = data
	e.hasData = true
	e.fetchedAt = now
	e.lastUsed = now
	e.invalidated = false
}

// Update replaces the data of every populated key under prefix with the
// result of fn. fn must not modify old in place.
func (c *Cache) Update(prefix string, fn func(key string, old any) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.hasData && strings.HasPrefix(key, prefix) {
			e.data = fn(key, e.data)
		}
	}
}

func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *Cache) Keys(prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []string
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

type snapshotEntry struct {
	data        any
	hasData     bool
	fetchedAt   time.Time
	invalidated bool
}

// Snapshot is the saved data of a set of keys, taken before an optimistic
// change.
type Snapshot map[string]snapshotEntry

func (c *Cache) Snapshot(prefixes ...string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{}
	for key, e := range c.entries {
		if hasAnyPrefix(key, prefixes) {
			s[key] = snapshotEntry{data: e.data, hasData: e.hasData, fetchedAt: e.fetchedAt, invalidated: e.invalidated}
		}
	}
	return s
}

// Restore puts back the data recorded in s.
func (c *Cache) Restore(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, saved := range s {
		e, ok := c.entries[key]
		if !ok {
			e = &entry{staleTime: DefaultStaleTime, lastUsed: c.now()}
			c.entries[key] = e
		}
		e.data = saved.data
		e.hasData = saved.hasData
		e.fetchedAt = saved.fetchedAt
		e.invalidated = saved.invalidated
	}
}

// Invalidate marks every key under the prefixes stale and returns them.
func (c *Cache) Invalidate(prefixes ...string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []string
	for key, e := range c.entries {
		if hasAnyPrefix(key, prefixes) {
			e.invalidated = true
			keys = append(keys, key)
		}
	}
	return keys
}

// InvalidateAndRefetch invalidates the prefixes and reloads, in parallel, the
// invalidated keys that have a fetcher.
func (c *Cache) InvalidateAndRefetch(ctx context.Context, prefixes ...string) error {
	keys := c.Invalidate(prefixes...)

	g, ctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		c.mu.Lock()
		e, ok := c.entries[key]
		active := ok && e.fetch != nil
		c.mu.Unlock()
		if !active {
			continue
		}
		g.Go(func() error {
			_, err := c.load(ctx, key)
			return err
		})
	}
	return g.Wait()
}

// GC drops keys nobody has read for longer than the gc time.
func (c *Cache) GC() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.lastUsed) > c.gcTime {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// StartGC runs GC every interval until ctx is done.
func (c *Cache) StartGC(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.GC(); n > 0 {
					c.logger.Debug("cache_gc", "removed", n)
				}
			}
		}
	}()
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func fetchAs[T any](ctx context.Context, c *Cache, key string, staleTime time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.Fetch(ctx, key, staleTime, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache: %q holds %T", key, v)
	}
	return t, nil
}
