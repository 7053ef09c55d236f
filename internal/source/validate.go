package source

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/errors"
)

const (
	maxTitleLength = 1024
	maxBodyLength  = 1048576
)

// ValidationError lists problems per document position.
type ValidationError struct {
	Problems map[int]string
}

func (e *ValidationError) Error() string {
	idx := make([]int, 0, len(e.Problems))
	for i := range e.Problems {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		parts = append(parts, fmt.Sprintf("posts[%d]: %s", i, e.Problems[i]))
	}
	return strings.Join(parts, "; ")
}

// Validate rejects collections the browse engine cannot present: missing or
// duplicate ids, oversized fields, and undated documents. Empty titles and
// bodies are allowed.
func Validate(docs []document.Document) error {
	problems := make(map[int]string)
	seen := make(map[string]int, len(docs))
	for i, d := range docs {
		switch {
		case strings.TrimSpace(d.ID) == "":
			problems[i] = "id is required"
		case seen[d.ID] > 0:
			problems[i] = fmt.Sprintf("duplicate id %q (first at posts[%d])", d.ID, seen[d.ID]-1)
		case len(d.Title) > maxTitleLength:
			problems[i] = fmt.Sprintf("title must be at most %d bytes", maxTitleLength)
		case len(d.Body) > maxBodyLength:
			problems[i] = fmt.Sprintf("body must be at most %d bytes", maxBodyLength)
		case d.Timestamp.IsZero():
			problems[i] = "timestamp is required"
		}
		if _, ok := seen[d.ID]; !ok {
			seen[d.ID] = i + 1
		}
	}
	if len(problems) > 0 {
		verr := &ValidationError{Problems: problems}
		return &apperrors.AppError{
			Err:        fmt.Errorf("%w: %w", apperrors.ErrMalformedCollection, verr),
			Message:    fmt.Sprintf("%d invalid documents", len(problems)),
			StatusCode: http.StatusUnprocessableEntity,
		}
	}
	return nil
}
