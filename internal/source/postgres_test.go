package source

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/postgres"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	host := os.Getenv("BSB_TEST_POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	db, err := postgres.New(config.PostgresConfig{
		Host:            host,
		Port:            5432,
		Database:        "blogsearch",
		User:            "blogsearch",
		Password:        "localdev",
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestPostgresProviderStoreAndLoad(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	prefix := fmt.Sprintf("t%d-", time.Now().UnixNano())
	t.Cleanup(func() {
		db.DB.ExecContext(context.Background(), `DELETE FROM posts WHERE id LIKE $1`, prefix+"%")
	})

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	docs := []document.Document{
		{ID: prefix + "1", Title: "Alpha", Body: "first", Timestamp: ts, Tags: []string{"a"}},
		{ID: prefix + "2", Title: "Beta", Body: "second", Timestamp: ts.Add(time.Hour)},
	}
	p := NewPostgresProvider(db)
	require.NoError(t, p.Store(ctx, docs))

	docs[0].Title = "Alpha v2"
	require.NoError(t, p.Store(ctx, docs[:1]))

	loaded, err := p.Load(ctx)
	require.NoError(t, err)

	byID := make(map[string]document.Document)
	for _, d := range loaded {
		byID[d.ID] = d
	}
	assert.Equal(t, "Alpha v2", byID[prefix+"1"].Title)
	assert.Equal(t, []string{"a"}, byID[prefix+"1"].Tags)
	assert.True(t, ts.Add(time.Hour).Equal(byID[prefix+"2"].Timestamp))
}
