package source

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/resilience"
)

func fixedEnricher(now time.Time) *Enricher {
	e := NewEnricher(7)
	e.now = func() time.Time { return now }
	return e
}

func TestDecode(t *testing.T) {
	docs, err := Decode(strings.NewReader(`{"posts":[
		{"id": 5, "title": "T", "body": "B", "tags": ["x"]},
		{"id": "abc", "title": "U", "body": "C", "timestamp": "2024-01-02T03:04:05+02:00"},
		{"title": "no id", "body": ""}
	]}`))
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "5", docs[0].ID)
	assert.Equal(t, []string{"x"}, docs[0].Tags)
	assert.True(t, docs[0].Timestamp.IsZero())
	assert.Equal(t, "abc", docs[1].ID)
	assert.Equal(t, time.Date(2024, 1, 2, 1, 4, 5, 0, time.UTC), docs[1].Timestamp)
	assert.Equal(t, "3", docs[2].ID)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, body := range []string{`not json`, `{"items": []}`, `{"posts": [{"id": true}]}`} {
		_, err := Decode(strings.NewReader(body))
		assert.ErrorIs(t, err, apperrors.ErrMalformedCollection, body)
	}
}

func TestEncodeDecodeKeepsOrderAndFields(t *testing.T) {
	in := []document.Document{
		{ID: "2", Title: "b", Body: "x", Timestamp: time.Unix(20, 0).UTC(), Image: "img"},
		{ID: "1", Title: "a", Body: "y", Timestamp: time.Unix(10, 0).UTC(), Tags: []string{"t"}},
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, in))

	out, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEnrich(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fixed := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []document.Document{
		{ID: "1"},
		{ID: "2", Image: "keep.png", Timestamp: fixed},
	}

	fixedEnricher(now).Enrich(docs)

	assert.Equal(t, "https://picsum.photos/300/200?random=0", docs[0].Image)
	assert.Equal(t, "keep.png", docs[1].Image)
	assert.Equal(t, fixed, docs[1].Timestamp)
	assert.False(t, docs[0].Timestamp.After(now))
	assert.True(t, docs[0].Timestamp.After(now.Add(-timestampSpread-time.Millisecond)))
}

func TestEnrichSeedIsDeterministic(t *testing.T) {
	now := time.Now()
	a := fixedEnricher(now).Enrich([]document.Document{{ID: "1"}, {ID: "2"}})
	b := fixedEnricher(now).Enrich([]document.Document{{ID: "1"}, {ID: "2"}})
	assert.Equal(t, a, b)
}

func TestValidate(t *testing.T) {
	ts := time.Unix(1, 0)
	tests := []struct {
		name    string
		docs    []document.Document
		wantErr bool
	}{
		{"empty collection", []document.Document{}, false},
		{"valid", []document.Document{{ID: "1", Timestamp: ts}, {ID: "2", Timestamp: ts}}, false},
		{"empty title and body allowed", []document.Document{{ID: "1", Timestamp: ts}}, false},
		{"missing id", []document.Document{{Timestamp: ts}}, true},
		{"duplicate id", []document.Document{{ID: "1", Timestamp: ts}, {ID: "1", Timestamp: ts}}, true},
		{"missing timestamp", []document.Document{{ID: "1"}}, true},
		{"oversized title", []document.Document{{ID: "1", Timestamp: ts, Title: strings.Repeat("x", maxTitleLength+1)}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.docs)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrMalformedCollection)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
			assert.Equal(t, 422, apperrors.HTTPStatusCode(err))
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Problems: map[int]string{3: "b", 1: "a"}}
	assert.Equal(t, "posts[1]: a; posts[3]: b", err.Error())
}

func TestHTTPProvider(t *testing.T) {
	payload, err := os.ReadFile(filepath.Join("testdata", "posts.json"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(payload)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, srv.Client(), fixedEnricher(time.Now()))
	docs, err := p.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), docs[2].Timestamp)
	assert.Equal(t, "https://picsum.photos/300/200?random=1", docs[1].Image)
}

func TestHTTPProviderErrors(t *testing.T) {
	status := http.StatusInternalServerError
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()
	p := NewHTTPProvider(srv.URL, srv.Client(), nil)

	_, err := p.Load(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
	assert.False(t, resilience.IsPermanent(err))

	status = http.StatusNotFound
	_, err = p.Load(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
	assert.True(t, resilience.IsPermanent(err))
}

func TestFileProvider(t *testing.T) {
	p := NewFileProvider(filepath.Join("testdata", "posts.json"), nil)
	docs, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	_, err = NewFileProvider(filepath.Join(t.TempDir(), "missing.json"), nil).Load(context.Background())
	assert.True(t, resilience.IsPermanent(err))
}

func TestCachedProvider(t *testing.T) {
	var loads atomic.Int32
	docs := []document.Document{{ID: "1", Title: "a", Timestamp: time.Unix(5, 0).UTC()}}
	inner := ProviderFunc(func(context.Context) ([]document.Document, error) {
		loads.Add(1)
		return docs, nil
	})
	p := NewCachedProvider(inner, cache.NewMemoryStore(), time.Minute)

	for i := 0; i < 3; i++ {
		got, err := p.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, docs, got)
	}
	assert.Equal(t, int32(1), loads.Load())

	_, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), loads.Load())
}

func TestResilientProviderRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	inner := ProviderFunc(func(context.Context) ([]document.Document, error) {
		if calls.Add(1) < 3 {
			return nil, apperrors.ErrSourceUnavailable
		}
		return []document.Document{{ID: "1"}}, nil
	})
	p := NewResilientProvider(inner,
		resilience.NewCircuitBreaker("test", resilience.CircuitBreakerConfig{FailureThreshold: 10}),
		resilience.RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		time.Second,
	)

	docs, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestResilientProviderFailsFastWhenOpen(t *testing.T) {
	var calls atomic.Int32
	inner := ProviderFunc(func(context.Context) ([]document.Document, error) {
		calls.Add(1)
		return nil, apperrors.ErrSourceUnavailable
	})
	breaker := resilience.NewCircuitBreaker("test", resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	p := NewResilientProvider(inner, breaker,
		resilience.RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, time.Second)

	_, err := p.Load(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, resilience.StateOpen, p.Breaker().GetState())
}

func TestResilientProviderDoesNotRetryPermanent(t *testing.T) {
	var calls atomic.Int32
	inner := ProviderFunc(func(context.Context) ([]document.Document, error) {
		calls.Add(1)
		return nil, resilience.Permanent(apperrors.ErrMalformedCollection)
	})
	p := NewResilientProvider(inner,
		resilience.NewCircuitBreaker("test", resilience.CircuitBreakerConfig{}),
		resilience.RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, time.Second)

	_, err := p.Load(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrMalformedCollection)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNew(t *testing.T) {
	p, err := New(config.SourceConfig{Kind: KindFile, Path: "x.json"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileProvider{}, p)

	p, err = New(config.SourceConfig{Kind: KindHTTP, URL: "http://example"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTPProvider{}, p)

	_, err = New(config.SourceConfig{Kind: KindPostgres}, nil)
	assert.Error(t, err)

	_, err = New(config.SourceConfig{Kind: "ftp"}, nil)
	assert.Error(t, err)
}
