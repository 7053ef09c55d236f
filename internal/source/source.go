// Package source loads the document collection from an external origin.
// Every provider returns a validated, enriched []document.Document; the
// caller installs it in a document.Catalog.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/errors"
)

// Kinds of provider selectable in configuration.
const (
	KindHTTP     = "http"
	KindPostgres = "postgres"
	KindFile     = "file"
)

// Provider loads a complete collection.
type Provider interface {
	Load(ctx context.Context) ([]document.Document, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) ([]document.Document, error)

// Load calls f.
func (f ProviderFunc) Load(ctx context.Context) ([]document.Document, error) {
	return f(ctx)
}

// timestampSpread bounds the random timestamps given to undated records.
const timestampSpread = 10_000_000_000 * time.Millisecond

const imageURLFormat = "https://picsum.photos/300/200?random=%d"

// postsPayload is the {"posts": [...]} envelope served by the posts API and
// used for local files.
type postsPayload struct {
	Posts []postRecord `json:"posts"`
	Total int          `json:"total,omitempty"`
}

type postRecord struct {
	ID        flexibleID `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Tags      []string   `json:"tags"`
	Image     string     `json:"image"`
	Timestamp *time.Time `json:"timestamp"`
}

// flexibleID accepts both numeric and string ids.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexibleID(n.String())
	return nil
}

// Decode reads a posts payload. Records without an id get their 1-based
// position as id.
func Decode(r io.Reader) ([]document.Document, error) {
	var payload postsPayload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, apperrors.Newf(apperrors.ErrMalformedCollection, 422, "decoding posts payload: %v", err)
	}
	if payload.Posts == nil {
		return nil, apperrors.New(apperrors.ErrMalformedCollection, 422, `payload has no "posts" array`)
	}

	docs := make([]document.Document, len(payload.Posts))
	for i, p := range payload.Posts {
		id := string(p.ID)
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		docs[i] = document.Document{
			ID:    id,
			Title: p.Title,
			Body:  p.Body,
			Tags:  p.Tags,
			Image: p.Image,
		}
		if p.Timestamp != nil {
			docs[i].Timestamp = p.Timestamp.UTC()
		}
	}
	return docs, nil
}

// Encode writes docs as a posts payload readable by Decode.
func Encode(w io.Writer, docs []document.Document) error {
	payload := postsPayload{Posts: make([]postRecord, len(docs)), Total: len(docs)}
	for i, d := range docs {
		ts := d.Timestamp
		payload.Posts[i] = postRecord{
			ID:        flexibleID(d.ID),
			Title:     d.Title,
			Body:      d.Body,
			Tags:      d.Tags,
			Image:     d.Image,
			Timestamp: &ts,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// Enricher fills in presentation fields the origin does not provide.
type Enricher struct {
	rng *rand.Rand
	now func() time.Time
}

// NewEnricher creates an Enricher. A zero seed draws one from the runtime.
func NewEnricher(seed int64) *Enricher {
	if seed == 0 {
		seed = rand.Int64()
	}
	return &Enricher{
		rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1)),
		now: time.Now,
	}
}

// Enrich gives every document without an image a placeholder image keyed by
// its position and every undated document a random timestamp within the
// last timestampSpread. docs is modified in place and returned.
func (e *Enricher) Enrich(docs []document.Document) []document.Document {
	now := e.now().UTC()
	for i := range docs {
		if docs[i].Image == "" {
			docs[i].Image = fmt.Sprintf(imageURLFormat, i)
		}
		if docs[i].Timestamp.IsZero() {
			offset := time.Duration(e.rng.Int64N(int64(timestampSpread)))
			docs[i].Timestamp = now.Add(-offset).Truncate(time.Millisecond)
		}
	}
	return docs
}
