// Package pager serves one window of matching rows in a chosen order.
package pager

import (
	"context"
	"math"
	"time"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/tracing"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
	// MaxOffset bounds how deep a client can page.
	MaxOffset = math.MaxInt32
)

// RowSource reads ordered rows matching a predicate.
type RowSource interface {
	Rows(ctx context.Context, p query.Predicate, sort contracts.SortKey, offset, limit int) ([]contracts.Contract, error)
}

// Result is one page. HasMore is known from the store itself, never from
// the aggregate count, which may be degraded.
type Result struct {
	Rows     []contracts.Contract
	Page     int
	PageSize int
	HasMore  bool
}

// Window clamps a requested page and size and returns the row offset.
// Page is 1-based; size 0 selects the default. Pages past MaxOffset/size
// are clamped so the offset never overflows.
func Window(page, size, defaultSize, maxSize int) (int, int, int) {
	if maxSize <= 0 {
		maxSize = MaxPageSize
	}
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	switch {
	case size == 0:
		size = min(defaultSize, maxSize)
	case size < 1:
		size = 1
	case size > maxSize:
		size = maxSize
	}
	if lastPage := MaxOffset/size + 1; page > lastPage {
		page = lastPage
	}
	return page, size, (page - 1) * size
}

// Pager fetches pages from a RowSource.
type Pager struct {
	src         RowSource
	defaultSize int
	maxSize     int
	metrics     *metrics.Metrics
}

// New creates a Pager. m may be nil.
func New(src RowSource, defaultSize, maxSize int, m *metrics.Metrics) *Pager {
	return &Pager{src: src, defaultSize: defaultSize, maxSize: maxSize, metrics: m}
}

// Page returns the requested window. Store failures are fatal to the
// caller and come back as query-execution errors.
func (pg *Pager) Page(ctx context.Context, p query.Predicate, sort contracts.SortKey, page, size int) (*Result, error) {
	ctx, span := tracing.StartChildSpan(ctx, "page")
	defer span.End()
	start := time.Now()

	page, size, offset := Window(page, size, pg.defaultSize, pg.maxSize)
	rows, err := pg.src.Rows(ctx, p, sort, offset, size+1)
	if pg.metrics != nil {
		pg.metrics.StageLatency.WithLabelValues("page").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		span.SetAttr("error", err.Error())
		return nil, apperrors.QueryExecution("fetching result page", err)
	}

	res := &Result{Page: page, PageSize: size, Rows: rows}
	if len(rows) > size {
		res.Rows = rows[:size]
		res.HasMore = true
	}
	if res.Rows == nil {
		res.Rows = []contracts.Contract{}
	}
	span.SetAttr("rows", len(res.Rows))
	return res, nil
}
