package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/resilience"
)

// PostgresProvider loads the collection from the posts table.
type PostgresProvider struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresProvider(db *postgres.Client) *PostgresProvider {
	return &PostgresProvider{
		db:     db,
		logger: slog.Default().With("component", "postgres-source"),
	}
}

// Load returns every post ordered by id, numeric ids in numeric order. The
// result order is the collection order used by the default sort.
func (p *PostgresProvider) Load(ctx context.Context) ([]document.Document, error) {
	rows, err := p.db.DB.QueryContext(ctx,
		`SELECT id, title, body, tags, image, created_at FROM posts ORDER BY length(id), id`)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrSourceUnavailable, http.StatusBadGateway, "querying posts: %v", err)
	}
	defer rows.Close()

	var docs []document.Document
	for rows.Next() {
		var d document.Document
		var tags pq.StringArray
		if err := rows.Scan(&d.ID, &d.Title, &d.Body, &tags, &d.Image, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning post row: %w", err)
		}
		d.Tags = []string(tags)
		d.Timestamp = d.Timestamp.UTC()
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Newf(apperrors.ErrSourceUnavailable, http.StatusBadGateway, "iterating posts: %v", err)
	}
	if docs == nil {
		docs = []document.Document{}
	}
	if err := Validate(docs); err != nil {
		return nil, resilience.Permanent(err)
	}
	p.logger.Debug("collection loaded", "documents", len(docs))
	return docs, nil
}

// Store upserts docs into the posts table in one transaction.
func (p *PostgresProvider) Store(ctx context.Context, docs []document.Document) error {
	if err := Validate(docs); err != nil {
		return err
	}
	return p.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO posts (id, title, body, tags, image, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				body = EXCLUDED.body,
				tags = EXCLUDED.tags,
				image = EXCLUDED.image,
				created_at = EXCLUDED.created_at`)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, d := range docs {
			tags := d.Tags
			if tags == nil {
				tags = []string{}
			}
			if _, err := stmt.ExecContext(ctx, d.ID, d.Title, d.Body, pq.Array(tags), d.Image, d.Timestamp); err != nil {
				return fmt.Errorf("upserting post %s: %w", d.ID, err)
			}
		}
		return nil
	})
}
