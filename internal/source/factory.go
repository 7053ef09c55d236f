package source

import (
	"fmt"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/postgres"
)

// New builds the origin provider selected by cfg.Kind. db is only used, and
// required, for the postgres kind.
func New(cfg config.SourceConfig, db *postgres.Client) (Provider, error) {
	enricher := NewEnricher(cfg.Seed)
	switch cfg.Kind {
	case KindHTTP:
		return NewHTTPProvider(cfg.URL, &http.Client{Timeout: cfg.Timeout}, enricher), nil
	case KindFile:
		return NewFileProvider(cfg.Path, enricher), nil
	case KindPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres source requires a database connection")
		}
		return NewPostgresProvider(db), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
