// Package reload replaces the live collection from the configured source,
// either on request or when a collection-update event arrives on Kafka.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/kafka"
)

// UpdateEvent is the payload published to the collection-updates topic.
type UpdateEvent struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// Target receives a freshly loaded collection.
type Target interface {
	Reload(docs []document.Document) *document.Collection
}

// refresher is implemented by providers that can bypass their own cache.
type refresher interface {
	Refresh(ctx context.Context) ([]document.Document, error)
}

// Result describes one reload attempt.
type Result struct {
	Reason     string
	Collection *document.Collection
	Err        error
	Duration   time.Duration
}

// Reloader loads from a provider and installs the result in a target.
// Reloads are serialised.
type Reloader struct {
	mu       sync.Mutex
	provider source.Provider
	target   Target
	observe  func(Result)
	logger   *slog.Logger
}

// New creates a Reloader. observe, when non-nil, is called after every
// attempt.
func New(provider source.Provider, target Target, observe func(Result)) *Reloader {
	return &Reloader{
		provider: provider,
		target:   target,
		observe:  observe,
		logger:   slog.Default().With("component", "collection-reloader"),
	}
}

// Initial loads through the provider, using any cache it has.
func (r *Reloader) Initial(ctx context.Context) (*document.Collection, error) {
	return r.run(ctx, "startup", r.provider.Load)
}

// Reload fetches from the origin, bypassing provider caches, and installs
// the result. On failure the current collection stays in place.
func (r *Reloader) Reload(ctx context.Context, reason string) (*document.Collection, error) {
	load := r.provider.Load
	if rf, ok := r.provider.(refresher); ok {
		load = rf.Refresh
	}
	return r.run(ctx, reason, load)
}

func (r *Reloader) run(ctx context.Context, reason string, load func(context.Context) ([]document.Document, error)) (*document.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	docs, err := load(ctx)
	res := Result{Reason: reason, Err: err, Duration: time.Since(start)}
	if err != nil {
		r.logger.Error("collection reload failed", "reason", reason, "error", err)
		r.notify(res)
		return nil, fmt.Errorf("reloading collection: %w", err)
	}

	res.Collection = r.target.Reload(docs)
	res.Duration = time.Since(start)
	r.logger.Info("collection reload complete",
		"reason", reason,
		"version", res.Collection.Version,
		"documents", res.Collection.Len(),
		"duration_ms", res.Duration.Milliseconds(),
	)
	r.notify(res)
	return res.Collection, nil
}

func (r *Reloader) notify(res Result) {
	if r.observe != nil {
		r.observe(res)
	}
}

// HandleMessage returns a Kafka handler that reloads on every update event.
// Undecodable events still trigger a reload; a failed reload leaves the
// message uncommitted.
func (r *Reloader) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[UpdateEvent](value)
		if err != nil {
			r.logger.Warn("undecodable collection update, reloading anyway", "key", string(key), "error", err)
			event.Reason = "kafka"
		}
		if event.Reason == "" {
			event.Reason = "kafka"
		}
		_, err = r.Reload(ctx, event.Reason)
		return err
	}
}

// Notifier publishes collection-update events so every instance reloads.
type Notifier struct {
	publisher kafka.Publisher
}

func NewNotifier(publisher kafka.Publisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// Notify publishes an UpdateEvent with reason.
func (n *Notifier) Notify(ctx context.Context, reason string) error {
	return n.publisher.Publish(ctx, kafka.Event{
		Key:   "collection",
		Value: UpdateEvent{Reason: reason, RequestedAt: time.Now().UTC()},
	})
}
