package aggregator

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/postgres"
)

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	cfg := config.PostgresConfig{
		Host:            envOr("BSB_TEST_POSTGRES_HOST", "localhost"),
		Port:            5432,
		Database:        envOr("BSB_TEST_POSTGRES_DATABASE", "blogsearch"),
		User:            envOr("BSB_TEST_POSTGRES_USER", "blogsearch"),
		Password:        envOr("BSB_TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}
	db, err := postgres.New(cfg)
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestSaveAndLoadSnapshots(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	_, err := db.DB.ExecContext(ctx, `DELETE FROM analytics_snapshots`)
	require.NoError(t, err)

	store := NewStore(db)
	latest, err := store.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Now()
	for i := 1; i <= 3; i++ {
		store.now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		require.NoError(t, store.SaveSnapshot(ctx, analytics.AggregatedStats{TotalSearches: int64(i)}))
	}

	latest, err = store.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(3), latest.TotalSearches)

	list, err := store.ListSnapshots(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].TotalSearches)
	assert.Equal(t, int64(2), list[1].TotalSearches)

	store.now = func() time.Time { return base.Add(2 * time.Second) }
	pruned, err := store.Prune(ctx, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}

func TestRunWritesFinalSnapshot(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := db.DB.ExecContext(ctx, `DELETE FROM analytics_snapshots`)
	require.NoError(t, err)

	agg := analytics.NewAggregator(10)
	agg.Record(analytics.BrowseEvent{Type: analytics.EventSearch, Query: "alpha", Matches: 1})

	store := NewStore(db)
	done := make(chan error, 1)
	go func() { done <- store.Run(ctx, agg, time.Hour) }()
	cancel()
	require.NoError(t, <-done)

	latest, err := store.LatestSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(1), latest.TotalSearches)
}
