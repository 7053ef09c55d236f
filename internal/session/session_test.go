package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/cursor"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/highlight"
)

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

func blogCollection() *document.Collection {
	return document.NewCatalog().Replace([]document.Document{
		{ID: "1", Title: "Alpha", Body: "x", Timestamp: day(3)},
		{ID: "2", Title: "Beta", Body: "alpha here", Timestamp: day(1)},
		{ID: "3", Title: "Gamma", Body: "nothing", Timestamp: day(2)},
		{ID: "4", Title: "Delta ALPHA", Body: "", Timestamp: day(4)},
	})
}

type recordingViewport struct {
	mu    sync.Mutex
	calls []string
}

func (v *recordingViewport) BringIntoView(_ int, doc document.Document) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, doc.ID)
}

func (v *recordingViewport) last() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.calls) == 0 {
		return ""
	}
	return v.calls[len(v.calls)-1]
}

func ids(view View) []string {
	out := make([]string, len(view.Documents))
	for i, d := range view.Documents {
		out[i] = d.ID
	}
	return out
}

func TestEmptyQueryShowsWholeCollection(t *testing.T) {
	s := New("s", filter.NewEngine(1), nil)
	view := s.Load(blogCollection())

	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(view))
	assert.Empty(t, view.MatchedIndices)
	assert.False(t, view.Cursor.Active)
	assert.Equal(t, "", view.Cursor.Label)
	assert.Equal(t, -1, view.Focus)
	assert.Equal(t, []highlight.Span{{Text: "Alpha", Kind: highlight.Plain}}, view.Documents[0].TitleSpans)
}

func TestSetQueryRecomputesAndResetsCursor(t *testing.T) {
	vp := &recordingViewport{}
	s := New("s", filter.NewEngine(1), vp)
	s.Load(blogCollection())

	view := s.SetQuery("alpha")
	assert.Equal(t, []string{"1", "2", "4"}, ids(view))
	assert.Equal(t, []int{0, 1, 2}, view.MatchedIndices)
	assert.Equal(t, CursorState{Position: 0, Total: 3, Active: true, Label: "1/3"}, view.Cursor)
	assert.Equal(t, 0, view.Focus)
	assert.True(t, view.Documents[0].Current)
	assert.Equal(t, "1", vp.last())

	view = s.Step(cursor.Forward)
	view = s.Step(cursor.Forward)
	assert.Equal(t, "3/3", view.Cursor.Label)
	assert.Equal(t, "4", vp.last())

	view = s.Step(cursor.Forward)
	assert.Equal(t, "1/3", view.Cursor.Label)

	s.Step(cursor.Backward)
	view = s.ToggleCaseSensitive()
	assert.Equal(t, []string{"2"}, ids(view))
	assert.Equal(t, 0, view.Cursor.Position)
	assert.Equal(t, "1/1", view.Cursor.Label)
	assert.Equal(t, "2", vp.last())
}

func TestExcludeModeHasNoMatches(t *testing.T) {
	s := New("s", filter.NewEngine(1), nil)
	s.Load(blogCollection())
	s.SetQuery("alpha")

	view := s.ToggleExclude()
	assert.Equal(t, []string{"3"}, ids(view))
	assert.Empty(t, view.MatchedIndices)
	assert.False(t, view.Cursor.Active)
	assert.Equal(t, []highlight.Span{{Text: "nothing", Kind: highlight.Plain}}, view.Documents[0].BodySpans)

	view = s.Step(cursor.Forward)
	assert.Equal(t, 0, view.Cursor.Position)
	assert.Equal(t, -1, view.Focus)
}

func TestSortAppliesToMatches(t *testing.T) {
	s := New("s", filter.NewEngine(1), nil)
	s.Load(blogCollection())
	s.SetQuery("alpha")

	view := s.SetSort(filter.SortAscending)
	assert.Equal(t, []string{"2", "1", "4"}, ids(view))
	assert.Equal(t, []int{0, 1, 2}, view.MatchedIndices)

	view = s.SetSort(filter.SortDescending)
	assert.Equal(t, []string{"4", "1", "2"}, ids(view))

	view = s.Step(cursor.Forward)
	assert.Equal(t, "1", view.Documents[view.Focus].ID)
}

func TestHighlightSpansFollowOptions(t *testing.T) {
	s := New("s", filter.NewEngine(1), nil)
	s.Load(blogCollection())

	view := s.SetQuery("ALPHA")
	title := view.Documents[2].TitleSpans
	assert.Equal(t, []highlight.Span{
		{Text: "Delta ", Kind: highlight.Plain},
		{Text: "ALPHA", Kind: highlight.Matched},
	}, title)

	view = s.SetOptions(filter.Options{Query: "ALPHA", CaseSensitive: true})
	assert.Equal(t, []string{"4"}, ids(view))
	assert.Equal(t, filter.SortDefault, view.Options.Sort)
}

func TestLoadReplacesCollectionAndResets(t *testing.T) {
	s := New("s", filter.NewEngine(1), nil)
	s.Load(blogCollection())
	s.SetQuery("alpha")
	s.Step(cursor.Forward)

	next := document.NewCatalog()
	next.Replace(nil)
	col := next.Replace([]document.Document{{ID: "9", Title: "alpha only", Timestamp: day(9)}})
	view := s.Load(col)

	assert.Equal(t, []string{"9"}, ids(view))
	assert.Equal(t, "1/1", view.Cursor.Label)
	assert.Equal(t, int64(2), view.CollectionVersion)
	assert.Equal(t, 1, view.CollectionSize)

	view = s.Load(nil)
	assert.Empty(t, view.Documents)
	assert.False(t, view.Cursor.Active)
}

func TestViewDoesNotShareState(t *testing.T) {
	s := New("s", filter.NewEngine(1), nil)
	s.Load(blogCollection())
	view := s.SetQuery("alpha")
	view.MatchedIndices[0] = 99

	assert.Equal(t, []int{0, 1, 2}, s.View().MatchedIndices)
}

func TestConcurrentOperations(t *testing.T) {
	s := New("s", filter.NewEngine(1), ViewportFunc(func(int, document.Document) {}))
	s.Load(blogCollection())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 4 {
			case 0:
				s.SetQuery("a")
			case 1:
				s.Step(cursor.Forward)
			case 2:
				s.ToggleCaseSensitive()
			default:
				v := s.View()
				if v.Cursor.Active {
					assert.Less(t, v.Cursor.Position, v.Cursor.Total)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestEvaluate(t *testing.T) {
	view := Evaluate(filter.NewEngine(1), blogCollection(), filter.Options{Query: "alpha", ExcludeMode: true})
	assert.Equal(t, []string{"3"}, ids(view))
	assert.Equal(t, "", view.ID)
	assert.Equal(t, filter.SortDefault, view.Options.Sort)

	view = Evaluate(filter.NewEngine(1), nil, filter.Options{Query: "x"})
	assert.Empty(t, view.Documents)
}
