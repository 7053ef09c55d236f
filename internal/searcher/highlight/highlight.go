// Package highlight splits a text field into plain and matched spans for a
// query. Matching uses the same literal, optionally case-folded containment
// rule as the filter package, so a document is highlighted exactly where it
// was matched.
package highlight

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/filter"
)

// Kind tags a span.
type Kind string

const (
	Plain   Kind = "plain"
	Matched Kind = "matched"
)

// Span is a contiguous run of the original text.
type Span struct {
	Text string `json:"text"`
	Kind Kind   `json:"kind"`
}

// Spans returns text split into spans. Concatenating the Text of every span
// reproduces text byte for byte. With an empty query or in exclusion mode the
// whole text is a single plain span.
func Spans(text, query string, caseSensitive, excludeMode bool) []Span {
	plain := []Span{{Text: text, Kind: Plain}}
	if query == "" || excludeMode {
		return plain
	}

	ranges := occurrences(text, query, caseSensitive)
	if len(ranges) == 0 {
		return plain
	}

	spans := make([]Span, 0, 2*len(ranges)+1)
	last := 0
	for _, r := range ranges {
		if r.start > last {
			spans = append(spans, Span{Text: text[last:r.start], Kind: Plain})
		}
		spans = append(spans, Span{Text: text[r.start:r.end], Kind: Matched})
		last = r.end
	}
	if last < len(text) {
		spans = append(spans, Span{Text: text[last:], Kind: Plain})
	}
	return spans
}

// Count returns the number of matched spans.
func Count(spans []Span) int {
	n := 0
	for _, s := range spans {
		if s.Kind == Matched {
			n++
		}
	}
	return n
}

// Markup renders spans with open and close wrapped around matched runs.
// When escape is set every run is HTML-escaped first.
func Markup(spans []Span, open, close string, escape bool) string {
	var b strings.Builder
	for _, s := range spans {
		text := s.Text
		if escape {
			text = html.EscapeString(text)
		}
		if s.Kind == Matched {
			b.WriteString(open)
			b.WriteString(text)
			b.WriteString(close)
			continue
		}
		b.WriteString(text)
	}
	return b.String()
}

type byteRange struct {
	start, end int
}

// occurrences finds non-overlapping occurrences of query in text and returns
// their byte ranges in the original text.
func occurrences(text, query string, caseSensitive bool) []byteRange {
	if caseSensitive {
		return scan(text, query, nil)
	}
	folded, offsets := foldWithOffsets(text)
	return scan(folded, filter.Fold(query, false), offsets)
}

// scan walks haystack for needle. offsets, when non-nil, maps haystack byte
// positions back to positions in the original text.
func scan(haystack, needle string, offsets []int) []byteRange {
	if needle == "" {
		return nil
	}
	var out []byteRange
	from := 0
	for from <= len(haystack)-len(needle) {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			break
		}
		start := from + idx
		end := start + len(needle)
		if offsets != nil {
			out = append(out, byteRange{start: offsets[start], end: offsets[end]})
		} else {
			out = append(out, byteRange{start: start, end: end})
		}
		from = end
	}
	return out
}

// foldWithOffsets lower-cases text rune by rune, producing the same string as
// strings.ToLower. offsets[i] is the byte offset in text of the rune that
// produced folded byte i, and offsets[len(folded)] == len(text).
func foldWithOffsets(text string) (string, []int) {
	buf := make([]byte, 0, len(text))
	offsets := make([]int, 0, len(text)+1)
	for i, r := range text {
		before := len(buf)
		buf = utf8.AppendRune(buf, unicode.ToLower(r))
		for j := before; j < len(buf); j++ {
			offsets = append(offsets, i)
		}
	}
	offsets = append(offsets, len(text))
	return string(buf), offsets
}
