package analytics

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/logger"
)

// maxLatencySamples bounds the latency window kept for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	DegradedCount     int64        `json:"degraded_count"`
	ExportCount       int64        `json:"export_count"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running statistics over consumed search events.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     int64
	zeroResults       int64
	degraded          int64
	exports           int64
	cacheHits         int64
	cacheMisses       int64
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		logger:            logger.WithComponent("analytics-aggregator"),
	}
}

// Recorder persists search events.
type Recorder interface {
	Record(ctx context.Context, event SearchEvent) error
}

// HandleEvent decodes search events, folds them into agg and, when rec is
// not nil, persists them to the history.
func HandleEvent(agg *Aggregator, rec Recorder) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode search event", "error", err)
			return nil
		}
		agg.Record(event)
		if rec != nil {
			return rec.Record(ctx, event)
		}
		return nil
	}
}

// Record folds one event into the running statistics.
func (a *Aggregator) Record(event SearchEvent) {
	event.Classify()
	q := strings.ToLower(strings.TrimSpace(event.Query))

	a.mu.Lock()
	defer a.mu.Unlock()
	if event.Type == EventExport {
		a.exports++
		return
	}
	a.totalSearches++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if event.Degraded {
		a.degraded++
	}
	if len(a.latencies) == maxLatencySamples {
		a.latencies = append(a.latencies[:0], a.latencies[maxLatencySamples/2:]...)
	}
	a.latencies = append(a.latencies, event.LatencyMs)
	a.queryCounts[q]++
	if event.Type == EventZeroResult {
		a.zeroResults++
		a.zeroResultQueries[q]++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		ZeroResultCount: a.zeroResults,
		DegradedCount:   a.degraded,
		ExportCount:     a.exports,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
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
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
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

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(a, b QueryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
