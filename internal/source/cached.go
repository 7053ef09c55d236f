package source

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/cache"
)

const collectionKey = "collection:current"

// CachedProvider keeps the last loaded collection in a cache store so
// restarts and sibling instances skip the origin fetch.
type CachedProvider struct {
	inner  Provider
	store  cache.Store
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

func NewCachedProvider(inner Provider, store cache.Store, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner:  inner,
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "cached-source"),
	}
}

// Load returns the cached collection when present, otherwise loads through
// the inner provider once across concurrent callers.
func (p *CachedProvider) Load(ctx context.Context) ([]document.Document, error) {
	var docs []document.Document
	ok, err := p.store.Get(ctx, collectionKey, &docs)
	if err != nil {
		p.logger.Warn("collection cache read failed", "error", err)
	}
	if ok && err == nil {
		p.logger.Debug("collection served from cache", "documents", len(docs))
		return docs, nil
	}
	return p.Refresh(ctx)
}

// Refresh bypasses the cache, loads from the origin, and stores the result.
func (p *CachedProvider) Refresh(ctx context.Context) ([]document.Document, error) {
	v, err, _ := p.group.Do(collectionKey, func() (any, error) {
		docs, err := p.inner.Load(ctx)
		if err != nil {
			return nil, err
		}
		if err := p.store.Set(ctx, collectionKey, docs, p.ttl); err != nil {
			p.logger.Warn("collection cache write failed", "error", err)
		}
		return docs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]document.Document), nil
}
