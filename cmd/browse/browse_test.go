package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/filter"
)

const fixturePosts = `{"posts": [
	{"id": 1, "title": "Alpha one", "body": "first alpha body", "timestamp": "2024-01-01T00:00:00Z"},
	{"id": 2, "title": "Beta two", "body": "nothing here", "timestamp": "2024-02-01T00:00:00Z"},
	{"id": 3, "title": "Gamma three", "body": "ALPHA again", "timestamp": "2024-03-01T00:00:00Z"}
]}`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "posts.json")
	require.NoError(t, os.WriteFile(path, []byte(fixturePosts), 0o644))
	return path
}

func fixtureCollection() *document.Collection {
	day := func(m time.Month) time.Time { return time.Date(2024, m, 1, 0, 0, 0, 0, time.UTC) }
	return document.NewCatalog().Replace([]document.Document{
		{ID: "1", Title: "Alpha one", Body: "first alpha body", Timestamp: day(1)},
		{ID: "2", Title: "Beta two", Body: "nothing here", Timestamp: day(2)},
		{ID: "3", Title: "Gamma three", Body: "ALPHA again", Timestamp: day(3)},
	})
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchCommand(t *testing.T) {
	path := writeFixture(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name: "highlights matches and marks the first",
			args: []string{"alpha"},
			want: []string{
				`query "alpha"  case off  exclude off  sort default  showing 2 of 3  match 1/2`,
				"> #1 2024-01-01  [Alpha] one",
				"    first [alpha] body",
				"  #3 2024-03-01  Gamma three",
				"    [ALPHA] again",
			},
			notWant: []string{"#2"},
		},
		{
			name:    "exclusion shows the rest without markers",
			args:    []string{"--exclude", "alpha"},
			want:    []string{"showing 1 of 3", "  #2 2024-02-01  Beta two"},
			notWant: []string{"match ", "["},
		},
		{
			name:    "case sensitive",
			args:    []string{"--case", "ALPHA"},
			want:    []string{"showing 1 of 3  match 1/1", "> #3"},
			notWant: []string{"#1"},
		},
		{
			name: "newest first",
			args: []string{"--sort", "desc", "alpha"},
			want: []string{"> #3 2024-03-01"},
		},
		{
			name: "empty query passes everything",
			args: []string{},
			want: []string{"showing 3 of 3", "  #1", "  #2", "  #3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"search", "--file", path}, tt.args...)
			out, err := execute(t, args...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, nw := range tt.notWant {
				assert.NotContains(t, out, nw)
			}
		})
	}
}

func TestSearchCommandJSON(t *testing.T) {
	out, err := execute(t, "search", "--file", writeFixture(t), "--json", "beta")
	require.NoError(t, err)
	assert.Contains(t, out, `"matched_indices": [`)
	assert.Contains(t, out, `"label": "1/1"`)
}

func TestSearchCommandErrors(t *testing.T) {
	_, err := execute(t, "search", "--file", writeFixture(t), "--sort", "sideways", "x")
	assert.Error(t, err)

	_, err = execute(t, "search", "--file", filepath.Join(t.TempDir(), "missing.json"), "x")
	assert.Error(t, err)
}

func TestREPLSession(t *testing.T) {
	var out bytes.Buffer
	r := newREPL(&out, filter.NewEngine(1), fixtureCollection())

	require.NoError(t, r.run(strings.NewReader("n\n/alpha\nn\nn\np\nx\nq\n")))
	got := out.String()

	expected := []string{
		`query ""  case off  exclude off  sort default  showing 3 of 3`,
		"no matches",
		"-> [1] #1 Alpha one",
		`query "alpha"  case off  exclude off  sort default  showing 2 of 3  match 1/2`,
		"-> [2] #3 Gamma three",
		"match 2/2",
		"    [ALPHA] again",
		"match 1/2",
		`query "alpha"  case off  exclude on  sort default  showing 1 of 3`,
	}
	last := 0
	for _, e := range expected {
		idx := strings.Index(got[last:], e)
		require.GreaterOrEqual(t, idx, 0, "missing %q after offset %d in:\n%s", e, last, got)
		last += idx + len(e)
	}
}

func TestREPLCommands(t *testing.T) {
	var out bytes.Buffer
	r := newREPL(&out, filter.NewEngine(1), fixtureCollection())

	assert.False(t, r.exec("s sideways"))
	assert.Contains(t, out.String(), `unknown sort mode "sideways"`)

	assert.False(t, r.exec("s asc"))
	assert.Equal(t, filter.SortAscending, r.session.Options().Sort)

	assert.False(t, r.exec("c"))
	assert.True(t, r.session.Options().CaseSensitive)

	assert.False(t, r.exec("/"))
	assert.Equal(t, "", r.session.Options().Query)

	assert.False(t, r.exec("bogus"))
	assert.Contains(t, out.String(), `unknown command "bogus"`)

	assert.False(t, r.exec("   "))
	assert.True(t, r.exec("quit"))
}

func TestREPLStopsAtEOF(t *testing.T) {
	var out bytes.Buffer
	r := newREPL(&out, filter.NewEngine(1), fixtureCollection())
	assert.NoError(t, r.run(strings.NewReader("/beta")))
	assert.Contains(t, out.String(), "-> [1] #2 Beta two")
}

func TestSearchURL(t *testing.T) {
	raw := searchURL(loadTestConfig{BaseURL: "http://svc", Sort: "desc", CaseSensitive: true}, "his mother")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/search", u.Path)
	assert.Equal(t, "his mother", u.Query().Get("q"))
	assert.Equal(t, "desc", u.Query().Get("sort"))
	assert.Equal(t, "true", u.Query().Get("case"))
}

func TestRunLoadTest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cache_hit": true, "documents": []}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	stats := runLoadTest(context.Background(), &out, loadTestConfig{
		BaseURL:     srv.URL,
		Concurrency: 2,
		Duration:    200 * time.Millisecond,
		Queries:     []string{"a", "b"},
		Sort:        "default",
	})

	total := stats.totalRequests.Load()
	require.Greater(t, total, int64(0))
	assert.Equal(t, total, stats.successCount.Load())
	assert.Equal(t, total, stats.cacheHits.Load())

	require.NoError(t, printLoadReport(&out, stats, 200*time.Millisecond))
	assert.Contains(t, out.String(), "Cache Hit Rate:  100.00%")
	assert.Contains(t, out.String(), "200: ")
}

func TestLoadReportFailsWithoutRequests(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, printLoadReport(&out, newLoadStats(), time.Second))
}
