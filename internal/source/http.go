package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/resilience"
)

const maxPayloadBytes = 32 << 20

// HTTPProvider fetches a posts payload over HTTP.
type HTTPProvider struct {
	url      string
	client   *http.Client
	enricher *Enricher
	logger   *slog.Logger
}

// NewHTTPProvider creates a provider for url. A nil client gets one with a
// 30 second timeout.
func NewHTTPProvider(url string, client *http.Client, enricher *Enricher) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if enricher == nil {
		enricher = NewEnricher(0)
	}
	return &HTTPProvider{
		url:      url,
		client:   client,
		enricher: enricher,
		logger:   slog.Default().With("component", "http-source"),
	}
}

// Load fetches, decodes, enriches, and validates the collection. Client
// errors and malformed payloads are permanent; server errors and transport
// failures may be retried.
func (p *HTTPProvider) Load(ctx context.Context) ([]document.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrSourceUnavailable, http.StatusBadGateway, "fetching %s: %v", p.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		appErr := apperrors.Newf(apperrors.ErrSourceUnavailable, http.StatusBadGateway,
			"fetching %s: unexpected status %d", p.url, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(appErr)
		}
		return nil, appErr
	}

	docs, err := Decode(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	p.enricher.Enrich(docs)
	if err := Validate(docs); err != nil {
		return nil, resilience.Permanent(err)
	}

	p.logger.Info("collection fetched",
		"url", p.url,
		"documents", len(docs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return docs, nil
}
