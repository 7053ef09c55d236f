// Package session ties the filter, cursor, and highlight packages together
// into a browse session. Every change to the collection or the options
// recomputes the filter result and resets the cursor in the same call, and
// every cursor move is reported to a Viewport so the presentation layer can
// bring the current document into view.
package session

import (
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/cursor"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/highlight"
)

// Viewport is the presentation capability for scrolling. position is the
// index into the current result documents.
type Viewport interface {
	BringIntoView(position int, doc document.Document)
}

// ViewportFunc adapts a function to Viewport.
type ViewportFunc func(position int, doc document.Document)

// BringIntoView calls f.
func (f ViewportFunc) BringIntoView(position int, doc document.Document) {
	f(position, doc)
}

// CursorState is the externally visible cursor.
type CursorState struct {
	Position int    `json:"position"`
	Total    int    `json:"total"`
	Active   bool   `json:"active"`
	Label    string `json:"label"`
}

// DocumentView is a result document with its highlight spans.
type DocumentView struct {
	document.Document
	TitleSpans []highlight.Span `json:"title_spans"`
	BodySpans  []highlight.Span `json:"body_spans"`
	Current    bool             `json:"current"`
}

// View is the snapshot handed to the presentation layer after each
// operation. Focus is the document position of the current match, or -1.
type View struct {
	ID                string         `json:"id"`
	Options           filter.Options `json:"options"`
	CollectionVersion int64          `json:"collection_version"`
	CollectionSize    int            `json:"collection_size"`
	Documents         []DocumentView `json:"documents"`
	MatchedIndices    []int          `json:"matched_indices"`
	Cursor            CursorState    `json:"cursor"`
	Focus             int            `json:"focus"`
}

// Session is a single user's browse state. It is safe for concurrent use;
// operations are serialised so no intermediate state is observable.
type Session struct {
	mu         sync.Mutex
	id         string
	engine     *filter.Engine
	viewport   Viewport
	docs       []document.Document
	version    int64
	opts       filter.Options
	result     *filter.Result
	cursor     *cursor.Cursor
	lastAccess time.Time
}

// New creates a session over an empty collection. viewport may be nil.
func New(id string, engine *filter.Engine, viewport Viewport) *Session {
	if engine == nil {
		engine = filter.NewEngine(time.Now().UnixNano())
	}
	s := &Session{
		id:         id,
		engine:     engine,
		viewport:   viewport,
		opts:       filter.Options{Sort: filter.SortDefault},
		cursor:     cursor.New(nil),
		lastAccess: time.Now(),
	}
	s.recompute()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Load replaces the collection and recomputes.
func (s *Session) Load(col *document.Collection) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if col == nil {
		s.docs, s.version = nil, 0
	} else {
		s.docs, s.version = col.Docs, col.Version
	}
	s.recompute()
	return s.viewLocked()
}

// SetOptions replaces all query options and recomputes.
func (s *Session) SetOptions(opts filter.Options) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if opts.Sort == "" {
		opts.Sort = filter.SortDefault
	}
	s.opts = opts
	s.recompute()
	return s.viewLocked()
}

// SetQuery changes only the query text.
func (s *Session) SetQuery(query string) View {
	return s.update(func(o *filter.Options) { o.Query = query })
}

// ToggleCaseSensitive flips case sensitivity.
func (s *Session) ToggleCaseSensitive() View {
	return s.update(func(o *filter.Options) { o.CaseSensitive = !o.CaseSensitive })
}

// ToggleExclude flips exclusion mode.
func (s *Session) ToggleExclude() View {
	return s.update(func(o *filter.Options) { o.ExcludeMode = !o.ExcludeMode })
}

// SetSort changes the sort mode.
func (s *Session) SetSort(mode filter.SortMode) View {
	return s.update(func(o *filter.Options) { o.Sort = mode })
}

// Step moves the cursor and notifies the viewport. The filter is not rerun.
func (s *Session) Step(dir cursor.Direction) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if _, docIndex, ok := s.cursor.Step(dir); ok {
		s.notify(docIndex)
	}
	return s.viewLocked()
}

// View returns the current snapshot without changing state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.viewLocked()
}

// Options returns the current options.
func (s *Session) Options() filter.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// LastAccess returns when the session was last used.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

func (s *Session) update(fn func(o *filter.Options)) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.opts)
	s.recompute()
	return s.viewLocked()
}

// recompute reruns the filter and resets the cursor. Callers hold s.mu.
func (s *Session) recompute() {
	s.touch()
	s.result = s.engine.Apply(s.docs, s.opts)
	s.cursor.Reset(s.result.MatchedIndices)
	if _, docIndex, ok := s.cursor.Current(); ok {
		s.notify(docIndex)
	}
}

func (s *Session) notify(docIndex int) {
	if s.viewport == nil {
		return
	}
	s.viewport.BringIntoView(docIndex, s.result.Documents[docIndex])
}

func (s *Session) touch() {
	s.lastAccess = time.Now()
}

func (s *Session) viewLocked() View {
	focus := -1
	if _, docIndex, ok := s.cursor.Current(); ok {
		focus = docIndex
	}

	docs := make([]DocumentView, len(s.result.Documents))
	for i, d := range s.result.Documents {
		docs[i] = DocumentView{
			Document:   d,
			TitleSpans: highlight.Spans(d.Title, s.opts.Query, s.opts.CaseSensitive, s.opts.ExcludeMode),
			BodySpans:  highlight.Spans(d.Body, s.opts.Query, s.opts.CaseSensitive, s.opts.ExcludeMode),
			Current:    i == focus,
		}
	}

	matched := make([]int, len(s.result.MatchedIndices))
	copy(matched, s.result.MatchedIndices)

	return View{
		ID:                s.id,
		Options:           s.opts,
		CollectionVersion: s.version,
		CollectionSize:    len(s.docs),
		Documents:         docs,
		MatchedIndices:    matched,
		Cursor: CursorState{
			Position: s.cursor.Position(),
			Total:    s.cursor.Total(),
			Active:   s.cursor.Active(),
			Label:    s.cursor.Label(),
		},
		Focus: focus,
	}
}

// Evaluate computes a one-off view of col under opts without registering a
// session. The cursor sits on the first match.
func Evaluate(engine *filter.Engine, col *document.Collection, opts filter.Options) View {
	s := New("", engine, nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	if col != nil {
		s.docs, s.version = col.Docs, col.Version
	}
	if opts.Sort == "" {
		opts.Sort = filter.SortDefault
	}
	s.opts = opts
	s.recompute()
	return s.viewLocked()
}
