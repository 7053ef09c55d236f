// Package rpc serves stateless filter and highlight calls over the internal
// JSON-over-TCP transport.
package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/highlight"
	apperrors "github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/proto"
)

// BrowseService answers RPCs against the live collection in catalog.
type BrowseService struct {
	catalog *document.Catalog
	engine  *filter.Engine
	logger  *slog.Logger
}

func NewBrowseService(catalog *document.Catalog, engine *filter.Engine) *BrowseService {
	return &BrowseService{
		catalog: catalog,
		engine:  engine,
		logger:  slog.Default().With("component", "browse-rpc"),
	}
}

// Register adds every BrowseService method to s.
func (b *BrowseService) Register(s *grpc.Server) {
	s.Register(proto.MethodFilter, b.filter)
	s.Register(proto.MethodHighlight, b.highlight)
	s.Register(proto.MethodCollection, b.collection)
	s.Register(proto.MethodHealth, b.health)
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "decoding params: %v", err)
	}
	return nil
}

func (b *BrowseService) filter(ctx context.Context, raw json.RawMessage) (any, error) {
	start := time.Now()
	var req proto.FilterRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	mode, err := filter.ParseSortMode(req.Sort)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, err.Error())
	}
	opts := filter.Options{
		Query:         req.Query,
		CaseSensitive: req.CaseSensitive,
		ExcludeMode:   req.ExcludeMode,
		Sort:          mode,
	}

	col := b.catalog.Snapshot()
	result := b.engine.Apply(col.Docs, opts)

	resp := &proto.FilterResponse{
		CollectionVersion: col.Version,
		Documents:         make([]proto.Document, len(result.Documents)),
		MatchedIndices:    make([]int32, len(result.MatchedIndices)),
	}
	for i, d := range result.Documents {
		resp.Documents[i] = toProtoDocument(d)
	}
	for i, idx := range result.MatchedIndices {
		resp.MatchedIndices[i] = int32(idx)
	}
	if req.WithSpans {
		resp.TitleSpans = make([][]proto.Span, len(result.Documents))
		resp.BodySpans = make([][]proto.Span, len(result.Documents))
		for i, d := range result.Documents {
			resp.TitleSpans[i] = toProtoSpans(highlight.Spans(d.Title, opts.Query, opts.CaseSensitive, opts.ExcludeMode))
			resp.BodySpans[i] = toProtoSpans(highlight.Spans(d.Body, opts.Query, opts.CaseSensitive, opts.ExcludeMode))
		}
	}
	resp.LatencyMs = time.Since(start).Milliseconds()

	b.logger.Debug("filter served",
		"query", req.Query,
		"documents", len(resp.Documents),
		"matches", len(resp.MatchedIndices),
	)
	return resp, nil
}

func (b *BrowseService) highlight(ctx context.Context, raw json.RawMessage) (any, error) {
	var req proto.HighlightRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	spans := highlight.Spans(req.Text, req.Query, req.CaseSensitive, req.ExcludeMode)
	return &proto.HighlightResponse{
		Spans:   toProtoSpans(spans),
		Matches: int32(highlight.Count(spans)),
	}, nil
}

func (b *BrowseService) collection(ctx context.Context, _ json.RawMessage) (any, error) {
	col := b.catalog.Snapshot()
	resp := &proto.CollectionResponse{
		Version:   col.Version,
		Documents: int32(col.Len()),
	}
	if !col.LoadedAt.IsZero() {
		resp.LoadedAt = col.LoadedAt.UnixMilli()
	}
	return resp, nil
}

func (b *BrowseService) health(ctx context.Context, _ json.RawMessage) (any, error) {
	status := "SERVING"
	if !b.catalog.Loaded() {
		status = "NOT_SERVING"
	}
	return &proto.HealthCheckResponse{Status: status}, nil
}

func toProtoDocument(d document.Document) proto.Document {
	out := proto.Document{
		ID:    d.ID,
		Title: d.Title,
		Body:  d.Body,
		Tags:  d.Tags,
		Image: d.Image,
	}
	if !d.Timestamp.IsZero() {
		out.Timestamp = d.Timestamp.UnixMilli()
	}
	return out
}

func toProtoSpans(spans []highlight.Span) []proto.Span {
	out := make([]proto.Span, len(spans))
	for i, s := range spans {
		out[i] = proto.Span{Text: s.Text, Kind: string(s.Kind)}
	}
	return out
}
