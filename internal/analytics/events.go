package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
)

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventExport     EventType = "export"
)

// SearchEvent is one entry of the search history. The searcher publishes
// it after answering; the analytics service aggregates and persists it.
type SearchEvent struct {
	Type        EventType       `json:"type"`
	RequestID   string          `json:"request_id,omitempty"`
	Query       string          `json:"query"`
	Scope       string          `json:"scope"`
	Filters     query.Filters   `json:"filters"`
	TotalCount  int64           `json:"total_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Returned    int             `json:"returned"`
	Degraded    bool            `json:"degraded,omitempty"`
	CacheHit    bool            `json:"cache_hit"`
	LatencyMs   int64           `json:"latency_ms"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Classify sets Type from the result size unless it was set already.
func (e *SearchEvent) Classify() {
	if e.Type != "" {
		return
	}
	e.Type = EventSearch
	if e.TotalCount == 0 && !e.Degraded {
		e.Type = EventZeroResult
	}
}
