// Package history persists search-history entries and periodic analytics
// snapshots in PostgreSQL.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS search_history (
    id           BIGSERIAL PRIMARY KEY,
    event_type   TEXT NOT NULL,
    request_id   TEXT,
    query        TEXT NOT NULL,
    scope        TEXT NOT NULL,
    filters      JSONB NOT NULL DEFAULT '{}',
    total_count  BIGINT NOT NULL,
    total_amount NUMERIC NOT NULL DEFAULT 0,
    returned     INTEGER NOT NULL,
    degraded     BOOLEAN NOT NULL DEFAULT FALSE,
    cache_hit    BOOLEAN NOT NULL DEFAULT FALSE,
    latency_ms   BIGINT NOT NULL,
    searched_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_history_searched_at ON search_history (searched_at DESC);
CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: logger.WithComponent("search-history"),
	}
}

// EnsureSchema creates the history tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating search history schema: %w", err)
	}
	return nil
}

// Record appends one history entry.
func (s *Store) Record(ctx context.Context, e analytics.SearchEvent) error {
	filters, err := json.Marshal(e.Filters)
	if err != nil {
		return fmt.Errorf("marshaling filters: %w", err)
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err = s.db.DB.ExecContext(ctx, `
		INSERT INTO search_history (event_type, request_id, query, scope, filters,
			total_count, total_amount, returned, degraded, cache_hit, latency_ms, searched_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(e.Type), e.RequestID, e.Query, e.Scope, filters,
		e.TotalCount, e.TotalAmount, e.Returned, e.Degraded, e.CacheHit, e.LatencyMs, ts,
	)
	if err != nil {
		return fmt.Errorf("recording search history: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, limit int) ([]analytics.SearchEvent, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT event_type, COALESCE(request_id, ''), query, scope, filters,
			total_count, total_amount, returned, degraded, cache_hit, latency_ms, searched_at
		FROM search_history
		ORDER BY searched_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing search history: %w", err)
	}
	defer rows.Close()

	var out []analytics.SearchEvent
	for rows.Next() {
		var (
			e       analytics.SearchEvent
			typ     string
			filters []byte
			amount  decimal.Decimal
		)
		if err := rows.Scan(&typ, &e.RequestID, &e.Query, &e.Scope, &filters,
			&e.TotalCount, &amount, &e.Returned, &e.Degraded, &e.CacheHit, &e.LatencyMs, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning search history: %w", err)
		}
		e.Type = analytics.EventType(typ)
		e.TotalAmount = amount
		var f query.Filters
		if err := json.Unmarshal(filters, &f); err != nil {
			s.logger.Warn("skipping unreadable history filters", "error", err)
		}
		e.Filters = f
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveSnapshot persists a statistics snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`,
		data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Info("analytics snapshot saved",
		"total_searches", stats.TotalSearches,
		"zero_results", stats.ZeroResultCount,
	)
	return nil
}

// LatestSnapshot returns nil, nil when no snapshot exists yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

var (
	_ analytics.Recorder      = (*Store)(nil)
	_ analytics.HistoryReader = (*Store)(nil)
)
