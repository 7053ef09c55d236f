package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/session"
)

func testCollection() *document.Collection {
	cat := document.NewCatalog()
	return cat.Replace([]document.Document{
		{ID: "1", Title: "Alpha", Body: "first", Timestamp: time.Unix(100, 0).UTC()},
		{ID: "2", Title: "Beta", Body: "alpha inside", Timestamp: time.Unix(200, 0).UTC()},
		{ID: "3", Title: "Gamma", Body: "none", Timestamp: time.Unix(300, 0).UTC()},
	})
}

func TestKeyNormalisesCaseInsensitiveQuery(t *testing.T) {
	a := Key{Version: 1, Options: filter.Options{Query: "Alpha"}}
	b := Key{Version: 1, Options: filter.Options{Query: "ALPHA", Sort: filter.SortDefault}}
	assert.Equal(t, a.String(), b.String())

	cs := Key{Version: 1, Options: filter.Options{Query: "Alpha", CaseSensitive: true}}
	cs2 := Key{Version: 1, Options: filter.Options{Query: "ALPHA", CaseSensitive: true}}
	assert.NotEqual(t, cs.String(), cs2.String())

	assert.NotEqual(t, a.String(), Key{Version: 2, Options: a.Options}.String())
	assert.NotEqual(t, a.String(), Key{Version: 1, Options: filter.Options{Query: "alpha", ExcludeMode: true}}.String())
	assert.False(t, Key{Options: filter.Options{Sort: filter.SortShuffle}}.Cacheable())
}

func TestGetOrComputeCachesView(t *testing.T) {
	c := New(NewMemoryStore(), time.Minute)
	col := testCollection()
	key := Key{Version: col.Version, Options: filter.Options{Query: "alpha"}}

	var computed atomic.Int32
	compute := func() (*session.View, error) {
		computed.Add(1)
		v := session.Evaluate(filter.NewEngine(1), col, key.Options)
		return &v, nil
	}

	first, hit, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []int{0, 1}, first.MatchedIndices)

	second, hit, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.MatchedIndices, second.MatchedIndices)
	assert.Equal(t, first.Cursor, second.Cursor)
	require.Len(t, second.Documents, 2)
	assert.Equal(t, first.Documents[1].BodySpans, second.Documents[1].BodySpans)
	assert.Equal(t, int32(1), computed.Load())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestGetOrComputeSingleflight(t *testing.T) {
	c := New(NewMemoryStore(), time.Minute)
	col := testCollection()
	key := Key{Version: col.Version, Options: filter.Options{Query: "a"}}

	var computed atomic.Int32
	release := make(chan struct{})
	compute := func() (*session.View, error) {
		computed.Add(1)
		<-release
		v := session.Evaluate(filter.NewEngine(1), col, key.Options)
		return &v, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), key, compute)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, computed.Load(), int32(8))
	assert.GreaterOrEqual(t, computed.Load(), int32(1))
}

func TestShuffleBypassesCache(t *testing.T) {
	store := NewMemoryStore()
	c := New(store, time.Minute)
	key := Key{Version: 1, Options: filter.Options{Sort: filter.SortShuffle}}

	calls := 0
	for i := 0; i < 2; i++ {
		_, hit, err := c.GetOrCompute(context.Background(), key, func() (*session.View, error) {
			calls++
			return &session.View{}, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, store.Len())
}

func TestInvalidate(t *testing.T) {
	store := NewMemoryStore()
	c := New(store, time.Minute)
	ctx := context.Background()

	c.Set(ctx, Key{Version: 1, Options: filter.Options{Query: "a"}}, &session.View{})
	c.Set(ctx, Key{Version: 2, Options: filter.Options{Query: "a"}}, &session.View{})

	n, err := c.InvalidateVersion(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", 42, time.Second))
	var v int
	ok, err := s.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	now = now.Add(2 * time.Second)
	ok, err = s.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}
