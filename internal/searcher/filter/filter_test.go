package filter

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func alphaBeta() []document.Document {
	return []document.Document{
		{ID: "1", Title: "Alpha", Body: "text", Timestamp: base},
		{ID: "2", Title: "beta", Body: "ALPHA inside", Timestamp: base.Add(time.Hour)},
	}
}

func corpus() []document.Document {
	return []document.Document{
		{ID: "a", Title: "Go concurrency", Body: "channels and goroutines", Timestamp: base.Add(3 * time.Hour)},
		{ID: "b", Title: "Rust ownership", Body: "borrow checker", Timestamp: base.Add(1 * time.Hour)},
		{ID: "c", Title: "GO modules", Body: "versioning", Timestamp: base.Add(5 * time.Hour)},
		{ID: "d", Title: "Python typing", Body: "gradual types, go figure", Timestamp: base.Add(2 * time.Hour)},
		{ID: "e", Title: "Zig comptime", Body: "metaprogramming", Timestamp: base.Add(4 * time.Hour)},
	}
}

func ids(docs []document.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestApplyAlphaScenarios(t *testing.T) {
	tests := []struct {
		name        string
		opts        Options
		wantIDs     []string
		wantMatched []int
	}{
		{
			name:        "case insensitive matches both",
			opts:        Options{Query: "alpha"},
			wantIDs:     []string{"1", "2"},
			wantMatched: []int{0, 1},
		},
		{
			name:        "case sensitive matches exact casing only",
			opts:        Options{Query: "alpha", CaseSensitive: true},
			wantIDs:     []string{},
			wantMatched: []int{},
		},
		{
			name:        "case sensitive with exact casing",
			opts:        Options{Query: "Alpha", CaseSensitive: true},
			wantIDs:     []string{"1"},
			wantMatched: []int{0},
		},
		{
			name:        "exclude case insensitive drops both",
			opts:        Options{Query: "alpha", ExcludeMode: true},
			wantIDs:     []string{},
			wantMatched: []int{},
		},
		{
			name:        "exclude case sensitive keeps non exact",
			opts:        Options{Query: "ALPHA", CaseSensitive: true, ExcludeMode: true},
			wantIDs:     []string{"1"},
			wantMatched: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Apply(alphaBeta(), tt.opts)
			assert.Equal(t, tt.wantIDs, ids(res.Documents))
			assert.Equal(t, tt.wantMatched, res.MatchedIndices)
		})
	}
}

// With a lowercase first title only that document survives the
// case-sensitive rule, while folding still matches the uppercase body.
func TestApplyCaseSensitiveTitleOnly(t *testing.T) {
	docs := alphaBeta()
	docs[0].Title = "alpha"

	res := Apply(docs, Options{Query: "alpha", CaseSensitive: true})
	assert.Equal(t, []int{0}, res.MatchedIndices)
	assert.Equal(t, []string{"1"}, ids(res.Documents))

	res = Apply(docs, Options{Query: "alpha"})
	assert.Equal(t, []int{0, 1}, res.MatchedIndices)
}

func TestApplyEmptyQueryPassesThrough(t *testing.T) {
	for _, mode := range []SortMode{SortDefault, SortAscending, SortDescending, SortShuffle} {
		for _, exclude := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/exclude=%v", mode, exclude), func(t *testing.T) {
				docs := corpus()
				res := Apply(docs, Options{Sort: mode, ExcludeMode: exclude})

				assert.Equal(t, ids(docs), ids(res.Documents))
				assert.Empty(t, res.MatchedIndices)
				assert.NotNil(t, res.MatchedIndices)
			})
		}
	}
}

func TestApplyEmptyCollection(t *testing.T) {
	res := Apply(nil, Options{Query: "anything", Sort: SortAscending})
	assert.Empty(t, res.Documents)
	assert.Empty(t, res.MatchedIndices)

	res = Apply([]document.Document{}, Options{})
	assert.Empty(t, res.Documents)
}

func TestApplyExcludePartitionsCollection(t *testing.T) {
	queries := []string{"go", "GO", "o", "types", "zzz", "Rust ownership", " "}
	for _, q := range queries {
		for _, cs := range []bool{false, true} {
			t.Run(fmt.Sprintf("%q/case=%v", q, cs), func(t *testing.T) {
				docs := corpus()
				inc := Apply(docs, Options{Query: q, CaseSensitive: cs})
				exc := Apply(docs, Options{Query: q, CaseSensitive: cs, ExcludeMode: true})

				require.Equal(t, len(docs), len(inc.Documents)+len(exc.Documents))
				seen := make(map[string]int)
				for _, d := range inc.Documents {
					seen[d.ID]++
				}
				for _, d := range exc.Documents {
					seen[d.ID]++
				}
				for _, d := range docs {
					assert.Equal(t, 1, seen[d.ID], "doc %s must be in exactly one side", d.ID)
				}
				assert.Empty(t, exc.MatchedIndices)
			})
		}
	}
}

func TestApplyCaseFolding(t *testing.T) {
	docs := corpus()

	insensitive := Apply(docs, Options{Query: "go"})
	assert.Equal(t, []string{"a", "c", "d"}, ids(insensitive.Documents))

	sensitive := Apply(docs, Options{Query: "Go", CaseSensitive: true})
	assert.Equal(t, []string{"a"}, ids(sensitive.Documents))

	upper := Apply(docs, Options{Query: "GO", CaseSensitive: true})
	assert.Equal(t, []string{"c"}, ids(upper.Documents))
}

func TestApplySortOrders(t *testing.T) {
	docs := corpus()

	asc := Apply(docs, Options{Query: "o", Sort: SortAscending})
	require.NotEmpty(t, asc.Documents)
	for i := 1; i < len(asc.Documents); i++ {
		assert.False(t, asc.Documents[i].Timestamp.Before(asc.Documents[i-1].Timestamp))
	}

	desc := Apply(docs, Options{Query: "o", Sort: SortDescending})
	for i := 1; i < len(desc.Documents); i++ {
		assert.False(t, desc.Documents[i-1].Timestamp.Before(desc.Documents[i].Timestamp))
	}

	def := Apply(docs, Options{Query: "o"})
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(def.Documents))
}

func TestApplySortIsStableForEqualTimestamps(t *testing.T) {
	docs := []document.Document{
		{ID: "1", Title: "x", Timestamp: base},
		{ID: "2", Title: "x", Timestamp: base},
		{ID: "3", Title: "x", Timestamp: base.Add(-time.Minute)},
	}

	asc := Apply(docs, Options{Query: "x", Sort: SortAscending})
	assert.Equal(t, []string{"3", "1", "2"}, ids(asc.Documents))

	desc := Apply(docs, Options{Query: "x", Sort: SortDescending})
	assert.Equal(t, []string{"1", "2", "3"}, ids(desc.Documents))
}

func TestApplyMatchedIndicesFollowSortedOutput(t *testing.T) {
	res := Apply(corpus(), Options{Query: "go", Sort: SortDescending})

	assert.Equal(t, []string{"c", "a", "d"}, ids(res.Documents))
	assert.Equal(t, []int{0, 1, 2}, res.MatchedIndices)
	for i := 1; i < len(res.MatchedIndices); i++ {
		assert.Greater(t, res.MatchedIndices[i], res.MatchedIndices[i-1])
	}
	for _, idx := range res.MatchedIndices {
		assert.True(t, Matches(res.Documents[idx], "go", false))
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	docs := corpus()
	before := ids(docs)

	Apply(docs, Options{Query: "o", Sort: SortDescending})
	Apply(docs, Options{Sort: SortShuffle})

	assert.Equal(t, before, ids(docs))
}

func TestApplyLiteralMatching(t *testing.T) {
	docs := []document.Document{
		{ID: "1", Title: "price is $5.00 (approx)"},
		{ID: "2", Title: "price is 5500 approx"},
	}

	res := Apply(docs, Options{Query: "$5.00 (a"})
	assert.Equal(t, []string{"1"}, ids(res.Documents))

	res = Apply(docs, Options{Query: "5.0"})
	assert.Equal(t, []string{"1"}, ids(res.Documents))
}

func TestShuffleWithSeedIsReproducible(t *testing.T) {
	docs := corpus()

	first := NewEngine(42).Apply(docs, Options{Query: "o", Sort: SortShuffle})
	second := NewEngine(42).Apply(docs, Options{Query: "o", Sort: SortShuffle})

	assert.Equal(t, ids(first.Documents), ids(second.Documents))
	assert.ElementsMatch(t, ids(docs), ids(first.Documents))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, first.MatchedIndices)
}

func TestParseSortMode(t *testing.T) {
	tests := []struct {
		in      string
		want    SortMode
		wantErr bool
	}{
		{"", SortDefault, false},
		{"default", SortDefault, false},
		{"asc", SortAscending, false},
		{"Ascending", SortAscending, false},
		{"desc", SortDescending, false},
		{"descending", SortDescending, false},
		{"random", SortShuffle, false},
		{"sideways", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSortMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func BenchmarkApply(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, n := range sizes {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			docs := make([]document.Document, n)
			for i := range docs {
				docs[i] = document.Document{
					ID:        fmt.Sprintf("doc-%d", i),
					Title:     fmt.Sprintf("Post number %d about search", i),
					Body:      "Lorem ipsum dolor sit amet, consectetur adipiscing elit",
					Timestamp: base.Add(time.Duration(n-i) * time.Minute),
				}
			}
			opts := Options{Query: "SEARCH", Sort: SortAscending}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = Apply(docs, opts)
			}
		})
	}
}
