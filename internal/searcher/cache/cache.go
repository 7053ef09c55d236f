// Package cache memoises stateless search views keyed by the query options
// and the collection version, so a reload never serves a stale result.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/session"
)

const keyPrefix = "search:"

// Key identifies a cacheable search.
type Key struct {
	Version int64
	Options filter.Options
}

// Cacheable reports whether results for k are deterministic.
func (k Key) Cacheable() bool {
	return k.Options.Sort != filter.SortShuffle
}

func (k Key) String() string {
	o := k.Options
	query := o.Query
	if !o.CaseSensitive {
		query = filter.Fold(query, false)
	}
	sort := o.Sort
	if sort == "" {
		sort = filter.SortDefault
	}
	raw := strconv.FormatInt(k.Version, 10) + "\x00" + query + "\x00" +
		strconv.FormatBool(o.CaseSensitive) + "\x00" + strconv.FormatBool(o.ExcludeMode) + "\x00" + string(sort)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%sv%d:%x", keyPrefix, k.Version, hash[:16])
}

type QueryCache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(store Store, ttl time.Duration) *QueryCache {
	return &QueryCache{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, key Key) (*session.View, bool) {
	if !key.Cacheable() {
		return nil, false
	}
	k := key.String()
	var view session.View
	ok, err := c.store.Get(ctx, k, &view)
	if err != nil {
		c.logger.Error("cache get failed", "key", k, "error", err)
	}
	if !ok || err != nil {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", k)
	return &view, true
}

func (c *QueryCache) Set(ctx context.Context, key Key, view *session.View) {
	if !key.Cacheable() {
		return
	}
	k := key.String()
	if err := c.store.Set(ctx, k, view, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached view for key or computes it once across
// concurrent callers. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key Key,
	computeFn func() (*session.View, error),
) (*session.View, bool, error) {
	if !key.Cacheable() {
		c.misses.Add(1)
		v, err := computeFn()
		return v, false, err
	}
	if view, ok := c.Get(ctx, key); ok {
		return view, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (any, error) {
		view, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, view)
		return view, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*session.View), false, nil
}

// Invalidate drops every cached search.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.Flush(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

// InvalidateVersion drops cached searches for one collection version.
func (c *QueryCache) InvalidateVersion(ctx context.Context, version int64) (int64, error) {
	return c.store.Flush(ctx, fmt.Sprintf("%sv%d:*", keyPrefix, version))
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
