package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/kafka"
)

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	TotalSteps        int64        `json:"total_steps"`
	ForwardSteps      int64        `json:"forward_steps"`
	BackwardSteps     int64        `json:"backward_steps"`
	CollectionLoads   int64        `json:"collection_loads"`
	FailedLoads       int64        `json:"failed_loads"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	ExcludeSearches   int64        `json:"exclude_searches"`
	CaseSearches      int64        `json:"case_sensitive_searches"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	LastCollectionAt  time.Time    `json:"last_collection_at,omitempty"`
	LastCollectionLen int          `json:"last_collection_documents"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds browse events into running statistics. Latencies are kept
// for the most recent window searches only.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	forwardSteps      atomic.Int64
	backwardSteps     atomic.Int64
	collectionLoads   atomic.Int64
	failedLoads       atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	excludeSearches   atomic.Int64
	caseSearches      atomic.Int64
	latencies         []int64
	next              int
	window            int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	lastCollectionAt  time.Time
	lastCollectionLen int
	startTime         time.Time
	now               func() time.Time

	logger *slog.Logger
}

func NewAggregator(window int) *Aggregator {
	if window <= 0 {
		window = 10000
	}
	return &Aggregator{
		latencies:         make([]int64, 0, window),
		window:            window,
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a Kafka handler feeding agg. Undecodable messages are
// logged and committed.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[BrowseEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event",
				"key", string(key),
				"error", err,
			)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Publish lets the aggregator stand in for a Kafka producer so a single
// process can collect and aggregate without a broker.
func (a *Aggregator) Publish(ctx context.Context, event kafka.Event) error {
	return a.PublishBatch(ctx, []kafka.Event{event})
}

func (a *Aggregator) PublishBatch(_ context.Context, events []kafka.Event) error {
	for _, e := range events {
		switch v := e.Value.(type) {
		case BrowseEvent:
			a.Record(v)
		case *BrowseEvent:
			a.Record(*v)
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encoding analytics event: %w", err)
			}
			event, err := kafka.DecodeJSON[BrowseEvent](data)
			if err != nil {
				return fmt.Errorf("decoding analytics event: %w", err)
			}
			a.Record(event)
		}
	}
	return nil
}

// Record folds a single event into the statistics.
func (a *Aggregator) Record(event BrowseEvent) {
	switch event.Type {
	case EventSearch, EventZeroResult:
		a.recordSearch(event)
	case EventStep:
		if event.Direction < 0 {
			a.backwardSteps.Add(1)
		} else {
			a.forwardSteps.Add(1)
		}
	case EventCollectionLoad:
		a.collectionLoads.Add(1)
		if event.Error != "" {
			a.failedLoads.Add(1)
			return
		}
		a.mu.Lock()
		a.lastCollectionAt = event.Timestamp
		a.lastCollectionLen = event.Documents
		a.mu.Unlock()
	default:
		a.logger.Debug("ignoring analytics event", "type", event.Type)
	}
}

func (a *Aggregator) recordSearch(event BrowseEvent) {
	a.totalSearches.Add(1)

	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.ExcludeMode {
		a.excludeSearches.Add(1)
	}
	if event.CaseSensitive {
		a.caseSearches.Add(1)
	}

	zero := event.Type == EventZeroResult
	if zero {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	if len(a.latencies) < a.window {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
	}
	a.next = (a.next + 1) % a.window
	if event.Query != "" {
		a.queryCounts[event.Query]++
		if zero {
			a.zeroResultQueries[event.Query]++
		}
	}
	a.mu.Unlock()
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:     a.totalSearches.Load(),
		ForwardSteps:      a.forwardSteps.Load(),
		BackwardSteps:     a.backwardSteps.Load(),
		CollectionLoads:   a.collectionLoads.Load(),
		FailedLoads:       a.failedLoads.Load(),
		CacheHits:         a.cacheHits.Load(),
		CacheMisses:       a.cacheMisses.Load(),
		ZeroResultCount:   a.zeroResults.Load(),
		ExcludeSearches:   a.excludeSearches.Load(),
		CaseSearches:      a.caseSearches.Load(),
		LastCollectionAt:  a.lastCollectionAt,
		LastCollectionLen: a.lastCollectionLen,
	}
	stats.TotalSteps = stats.ForwardSteps + stats.BackwardSteps

	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	elapsed := a.now().Sub(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n highest counts, ties broken by query text.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
