package analytics

import "time"

type EventType string

const (
	EventSearch         EventType = "search"
	EventZeroResult     EventType = "zero_result"
	EventStep           EventType = "step"
	EventCollectionLoad EventType = "collection_load"
)

// BrowseEvent is published for every user-visible browse action. Fields that
// do not apply to Type are left zero.
type BrowseEvent struct {
	Type          EventType `json:"type"`
	SessionID     string    `json:"session_id,omitempty"`
	Query         string    `json:"query,omitempty"`
	CaseSensitive bool      `json:"case_sensitive,omitempty"`
	ExcludeMode   bool      `json:"exclude_mode,omitempty"`
	Sort          string    `json:"sort,omitempty"`
	Documents     int       `json:"documents"`
	Matches       int       `json:"matches"`
	LatencyMs     int64     `json:"latency_ms"`
	CacheHit      bool      `json:"cache_hit,omitempty"`
	Direction     int       `json:"direction,omitempty"`
	Position      int       `json:"position,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
}
