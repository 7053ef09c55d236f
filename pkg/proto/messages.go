// Package proto defines the message types exchanged over the internal
// JSON-over-TCP RPC layer (see pkg/grpc). They are plain structs with JSON
// tags so any service in the module can use them without code generation.
package proto

// Method names served by the browse service.
const (
	MethodFilter     = "BrowseService.Filter"
	MethodHighlight  = "BrowseService.Highlight"
	MethodCollection = "BrowseService.Collection"
	MethodHealth     = "BrowseService.Health"
)

// ---------- Common ----------

// Document is a collection record. Timestamp is Unix milliseconds.
type Document struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Timestamp int64    `json:"timestamp"`
	Tags      []string `json:"tags,omitempty"`
	Image     string   `json:"image,omitempty"`
}

// Span is a run of text tagged "plain" or "matched".
type Span struct {
	Text string `json:"text"`
	Kind string `json:"kind"`
}

// HealthCheckResponse mirrors the gRPC health check spec.
type HealthCheckResponse struct {
	Status string `json:"status"` // SERVING, NOT_SERVING
}

// ---------- Filter ----------

// FilterRequest is the input to the Filter RPC. An empty Sort keeps
// collection order.
type FilterRequest struct {
	Query         string `json:"query"`
	CaseSensitive bool   `json:"case_sensitive"`
	ExcludeMode   bool   `json:"exclude_mode"`
	Sort          string `json:"sort,omitempty"`
	WithSpans     bool   `json:"with_spans,omitempty"`
}

// FilterResponse is the output of the Filter RPC. TitleSpans and BodySpans
// are parallel to Documents and only set when requested.
type FilterResponse struct {
	CollectionVersion int64      `json:"collection_version"`
	Documents         []Document `json:"documents"`
	MatchedIndices    []int32    `json:"matched_indices"`
	TitleSpans        [][]Span   `json:"title_spans,omitempty"`
	BodySpans         [][]Span   `json:"body_spans,omitempty"`
	LatencyMs         int64      `json:"latency_ms"`
}

// ---------- Highlight ----------

// HighlightRequest is the input to the Highlight RPC.
type HighlightRequest struct {
	Text          string `json:"text"`
	Query         string `json:"query"`
	CaseSensitive bool   `json:"case_sensitive"`
	ExcludeMode   bool   `json:"exclude_mode"`
}

// HighlightResponse is the output of the Highlight RPC.
type HighlightResponse struct {
	Spans   []Span `json:"spans"`
	Matches int32  `json:"matches"`
}

// ---------- Collection ----------

// CollectionResponse describes the live collection.
type CollectionResponse struct {
	Version   int64 `json:"version"`
	Documents int32 `json:"documents"`
	LoadedAt  int64 `json:"loaded_at"`
}
