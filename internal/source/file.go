package source

import (
	"context"
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/resilience"
)

// FileProvider reads a posts payload from a local file.
type FileProvider struct {
	path     string
	enricher *Enricher
}

func NewFileProvider(path string, enricher *Enricher) *FileProvider {
	if enricher == nil {
		enricher = NewEnricher(0)
	}
	return &FileProvider{path: path, enricher: enricher}
}

// Load reads the file on every call so edits are picked up on reload.
func (p *FileProvider) Load(ctx context.Context) ([]document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(p.path)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("opening %s: %w", p.path, err))
	}
	defer f.Close()

	docs, err := Decode(f)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("%s: %w", p.path, err))
	}
	p.enricher.Enrich(docs)
	if err := Validate(docs); err != nil {
		return nil, resilience.Permanent(err)
	}
	return docs, nil
}
