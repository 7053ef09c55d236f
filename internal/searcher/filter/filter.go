// Package filter implements the literal substring filter over a document
// collection. Given the collection and a set of Options it produces the
// filtered, sorted document list and the positions in that list that matched
// the query.
package filter

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
)

// SortMode selects how the kept documents are ordered.
type SortMode string

const (
	// SortDefault keeps collection order.
	SortDefault SortMode = "default"
	// SortAscending orders by Timestamp, oldest first.
	SortAscending SortMode = "ascending"
	// SortDescending orders by Timestamp, newest first.
	SortDescending SortMode = "descending"
	// SortShuffle reorders randomly on every Apply. It is non-deterministic
	// unless the Engine was built with a fixed seed.
	SortShuffle SortMode = "shuffle"
)

// ParseSortMode accepts the canonical names plus the short forms used by the
// CLI and query strings. An empty string is SortDefault.
func ParseSortMode(s string) (SortMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default", "none":
		return SortDefault, nil
	case "asc", "ascending", "oldest":
		return SortAscending, nil
	case "desc", "descending", "newest":
		return SortDescending, nil
	case "shuffle", "random":
		return SortShuffle, nil
	default:
		return "", fmt.Errorf("unknown sort mode %q", s)
	}
}

// Options fully determines a filter result. CaseSensitive and ExcludeMode
// are independent switches; all four combinations are valid.
type Options struct {
	Query         string   `json:"query"`
	CaseSensitive bool     `json:"case_sensitive"`
	ExcludeMode   bool     `json:"exclude_mode"`
	Sort          SortMode `json:"sort"`
}

// Result is the output of Apply. MatchedIndices is strictly increasing, every
// value indexes into Documents, and it is empty when the query is empty or
// ExcludeMode is set.
type Result struct {
	Documents      []document.Document `json:"documents"`
	MatchedIndices []int               `json:"matched_indices"`
}

// Fold applies the case rule shared by filtering and highlighting.
func Fold(s string, caseSensitive bool) string {
	if caseSensitive {
		return s
	}
	return strings.ToLower(s)
}

// Matches reports whether the document's title or body contains query under
// the given case rule.
func Matches(doc document.Document, query string, caseSensitive bool) bool {
	return matchesFolded(doc, Fold(query, caseSensitive), caseSensitive)
}

func matchesFolded(doc document.Document, term string, caseSensitive bool) bool {
	return strings.Contains(Fold(doc.Title, caseSensitive), term) ||
		strings.Contains(Fold(doc.Body, caseSensitive), term)
}

// Engine applies Options to collections. The only state it carries is the
// random source used by SortShuffle.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates an Engine whose shuffle order is driven by seed.
func NewEngine(seed int64) *Engine {
	return &Engine{rng: rand.New(rand.NewSource(seed))}
}

var defaultEngine = NewEngine(time.Now().UnixNano())

// Apply runs the default Engine.
func Apply(docs []document.Document, opts Options) *Result {
	return defaultEngine.Apply(docs, opts)
}

// Apply filters and sorts docs according to opts. docs is never modified.
func (e *Engine) Apply(docs []document.Document, opts Options) *Result {
	if opts.Query == "" {
		out := make([]document.Document, len(docs))
		copy(out, docs)
		return &Result{Documents: out, MatchedIndices: []int{}}
	}

	term := Fold(opts.Query, opts.CaseSensitive)
	kept := make([]document.Document, 0, len(docs))
	for _, doc := range docs {
		if matchesFolded(doc, term, opts.CaseSensitive) == opts.ExcludeMode {
			continue
		}
		kept = append(kept, doc)
	}

	e.sort(kept, opts.Sort)

	// Indices are taken over the sorted output. Outside exclusion mode every
	// kept document matched, so each output position is a match.
	matched := []int{}
	if !opts.ExcludeMode {
		matched = make([]int, len(kept))
		for i := range kept {
			matched[i] = i
		}
	}
	return &Result{Documents: kept, MatchedIndices: matched}
}

func (e *Engine) sort(docs []document.Document, mode SortMode) {
	switch mode {
	case SortAscending:
		sort.SliceStable(docs, func(i, j int) bool {
			return docs[i].Timestamp.Before(docs[j].Timestamp)
		})
	case SortDescending:
		sort.SliceStable(docs, func(i, j int) bool {
			return docs[j].Timestamp.Before(docs[i].Timestamp)
		})
	case SortShuffle:
		e.mu.Lock()
		e.rng.Shuffle(len(docs), func(i, j int) { docs[i], docs[j] = docs[j], docs[i] })
		e.mu.Unlock()
	}
}
