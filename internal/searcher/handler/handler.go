// Package handler exposes the search executor over HTTP.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/export"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/aggregate"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/stats"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/metrics"
)

// SearchService is the part of the executor the handler drives.
type SearchService interface {
	Search(ctx context.Context, req executor.Request) (*executor.SearchResult, error)
	AggregatesOnly(ctx context.Context, req executor.Request) (*aggregate.Aggregates, error)
	AllSuppliers(ctx context.Context, req executor.Request) ([]contracts.SupplierBucket, error)
	AllInstitutions(ctx context.Context, req executor.Request) ([]contracts.InstitutionBucket, error)
	Page(ctx context.Context, req executor.Request) (*executor.PageResult, error)
	Export(ctx context.Context, req executor.Request) (*export.Data, error)
}

// StatsSource serves registry statistics.
type StatsSource interface {
	Get(ctx context.Context) (stats.Snapshot, error)
}

// Invalidator drops cached results after the data changed.
type Invalidator interface {
	Invalidate(ctx context.Context, reason string) (int64, error)
}

// Deps are the handler's collaborators. Everything except Search may be nil.
type Deps struct {
	Search      SearchService
	Stats       StatsSource
	Cache       *cache.QueryCache
	Invalidator Invalidator
	Writer      store.Writer
	Metrics     *metrics.Metrics
}

type Handler struct {
	search      SearchService
	stats       StatsSource
	cache       *cache.QueryCache
	invalidator Invalidator
	writer      store.Writer
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func New(deps Deps) *Handler {
	return &Handler{
		search:      deps.Search,
		stats:       deps.Stats,
		cache:       deps.Cache,
		invalidator: deps.Invalidator,
		writer:      deps.Writer,
		metrics:     deps.Metrics,
		logger:      logger.WithComponent("search-handler"),
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.search.Search(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("search completed",
		"query", result.Query,
		"scope", result.Scope,
		"total_count", result.TotalCount,
		"returned", len(result.Rows),
		"cache_hit", result.CacheHit,
		"elapsed_ms", result.ElapsedMs,
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Aggregates(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	agg, err := h.search.AggregatesOnly(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, agg)
}

func (h *Handler) Suppliers(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	buckets, err := h.search.AllSuppliers(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"suppliers": buckets,
		"count":     len(buckets),
	})
}

func (h *Handler) Institutions(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	buckets, err := h.search.AllInstitutions(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"institutions": buckets,
		"count":        len(buckets),
	})
}

func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.search.Page(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// Export renders the workbook into memory first so a failure can still
// produce a JSON error instead of a truncated download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := h.search.Export(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, *data); err != nil {
		h.fail(w, r, fmt.Errorf("rendering export: %w", err))
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", data.Filename()))
	if data.Truncated {
		w.Header().Set("X-Export-Truncated", "true")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("failed to write export", "error", err)
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.writeError(w, http.StatusServiceUnavailable, "statistics are unavailable")
		return
	}
	snap, err := h.stats.Get(r.Context())
	if err != nil {
		h.fail(w, r, apperrors.QueryExecution("stats", err))
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	st := h.cache.Stats()
	total := st.Hits + st.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(st.Hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"enabled":  st.Enabled,
		"hits":     st.Hits,
		"misses":   st.Misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.invalidator == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	n, err := h.invalidator.Invalidate(r.Context(), "manual")
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "invalidated",
		"entries": n,
	})
}

// Dedupe removes duplicate contracts and then drops every cache, since
// cached totals and statistics now count rows that are gone.
func (h *Handler) Dedupe(w http.ResponseWriter, r *http.Request) {
	if h.writer == nil {
		h.writeError(w, http.StatusServiceUnavailable, "store is read-only")
		return
	}
	log := logger.FromContext(r.Context())
	start := time.Now()
	report, err := h.writer.DeleteDuplicates(r.Context())
	if err != nil {
		h.fail(w, r, apperrors.QueryExecution("dedupe", err))
		return
	}
	if h.metrics != nil {
		h.metrics.ContractsDeletedTotal.Add(float64(report.Deleted))
	}
	log.Info("duplicate contracts removed",
		"before", report.Before,
		"after", report.After,
		"deleted", report.Deleted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if report.Deleted > 0 && h.invalidator != nil {
		if _, err := h.invalidator.Invalidate(r.Context(), "dedupe"); err != nil {
			log.Warn("cache invalidation after dedupe failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeError(w, status, apperrors.Message(err))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
