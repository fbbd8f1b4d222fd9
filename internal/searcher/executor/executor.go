// Package executor answers search requests: it compiles the request once,
// then runs aggregation, facets and the result page concurrently against
// the store.
package executor

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/export"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/aggregate"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/pager"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/tracing"
)

// Request is a search as submitted by a client.
type Request struct {
	Query   string        `json:"query"`
	Scope   string        `json:"scope"`
	Fields  []string      `json:"fields,omitempty"`
	Filters query.Filters `json:"filters"`
	Sort    string        `json:"sort,omitempty"`
	// Page is 1-based.
	Page     int `json:"page,omitempty"`
	PageSize int `json:"page_size,omitempty"`
}

// SearchResult is the full answer to a search. Totals and rankings cover
// the whole match set; Rows is one page of it.
type SearchResult struct {
	Query              string                        `json:"query"`
	Scope              contracts.Scope               `json:"scope"`
	TotalCount         int64                         `json:"total_count"`
	TotalAmount        decimal.Decimal               `json:"total_amount"`
	TopSuppliers       []contracts.SupplierBucket    `json:"top_suppliers"`
	TopInstitutions    []contracts.InstitutionBucket `json:"top_institutions"`
	ByYear             []contracts.YearBucket        `json:"by_year"`
	Facets             aggregate.Facets              `json:"facets"`
	Rows               []contracts.Row               `json:"rows"`
	Sort               contracts.SortKey             `json:"sort"`
	Page               int                           `json:"page"`
	PageSize           int                           `json:"page_size"`
	HasMore            bool                          `json:"has_more"`
	AggregatesDegraded bool                          `json:"aggregates_degraded"`
	FacetsDegraded     bool                          `json:"facets_degraded"`
	ElapsedMs          int64                         `json:"elapsed_ms"`
	CacheHit           bool                          `json:"cache_hit"`
}

// PageResult is one page of rows without aggregates.
type PageResult struct {
	Rows     []contracts.Row   `json:"rows"`
	Sort     contracts.SortKey `json:"sort"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	HasMore  bool              `json:"has_more"`
}

// Config holds the executor's limits.
type Config struct {
	MaxQueryLength  int
	DefaultPageSize int
	MaxPageSize     int
	TopN            int
	TextMatch       query.TextMatch
	StageTimeout    time.Duration
	ExportMaxRows   int
}

// Tracker receives one history event per answered request.
type Tracker interface {
	Track(event analytics.SearchEvent)
}

// Deps are the executor's collaborators. Only Store is required.
type Deps struct {
	Store   store.Reader
	Engine  *aggregate.Engine
	Cache   *cache.QueryCache
	Tracker Tracker
	Metrics *metrics.Metrics
}

type Executor struct {
	store   store.Reader
	engine  *aggregate.Engine
	pager   *pager.Pager
	cache   *cache.QueryCache
	tracker Tracker
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(deps Deps, cfg Config) *Executor {
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = 2000
	}
	if cfg.ExportMaxRows <= 0 {
		cfg.ExportMaxRows = 10000
	}
	engine := deps.Engine
	if engine == nil {
		engine = aggregate.NewEngine(deps.Store, aggregate.Config{TopN: cfg.TopN, StageTimeout: cfg.StageTimeout}, nil, deps.Metrics)
	}
	return &Executor{
		store:   deps.Store,
		engine:  engine,
		pager:   pager.New(deps.Store, cfg.DefaultPageSize, cfg.MaxPageSize, deps.Metrics),
		cache:   deps.Cache,
		tracker: deps.Tracker,
		cfg:     cfg,
		metrics: deps.Metrics,
		logger:  logger.WithComponent("query-executor"),
	}
}

func (e *Executor) compile(req Request) (query.Compiled, error) {
	c, err := query.Build(query.Search{
		Text:    req.Query,
		Scope:   req.Scope,
		Fields:  req.Fields,
		Filters: req.Filters,
	}, e.cfg.MaxQueryLength, query.Options{TextMatch: e.cfg.TextMatch})
	if err != nil && e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues("invalid").Inc()
	}
	return c, err
}

// withSpan opens a root span unless the request already carries one.
func withSpan(ctx context.Context, name string) (context.Context, func()) {
	if tracing.SpanFromContext(ctx) != nil {
		ctx, span := tracing.StartChildSpan(ctx, name)
		return ctx, span.End
	}
	ctx, span := tracing.StartSpan(ctx, name, logger.RequestID(ctx))
	return ctx, func() {
		span.End()
		span.Log()
	}
}

// Search compiles req and answers it. Only validation and the page query
// can fail; aggregation and facet failures degrade to empty results.
func (e *Executor) Search(ctx context.Context, req Request) (*SearchResult, error) {
	start := time.Now()
	compiled, err := e.compile(req)
	if err != nil {
		return nil, err
	}
	ctx, end := withSpan(ctx, "search")
	defer end()

	sort := contracts.ParseSortKey(req.Sort)
	page, size, _ := pager.Window(req.Page, req.PageSize, e.cfg.DefaultPageSize, e.cfg.MaxPageSize)
	key := cache.Key("search", compiled.Predicate.String(), string(sort), strconv.Itoa(page), strconv.Itoa(size))

	shared, hit, err := cache.GetOrCompute(ctx, e.cache, key,
		func(ctx context.Context) (*SearchResult, error) {
			return e.search(ctx, compiled, sort, page, size)
		},
		func(r *SearchResult) bool { return !r.AggregatesDegraded && !r.FacetsDegraded },
	)
	if err != nil {
		e.observe("error", hit, start)
		logger.FromContext(ctx).Error("search failed", "component", "query-executor", "query", compiled.Text, "error", err)
		return nil, err
	}

	res := *shared
	res.CacheHit = hit
	res.ElapsedMs = time.Since(start).Milliseconds()

	outcome := "ok"
	if res.AggregatesDegraded || res.FacetsDegraded {
		outcome = "degraded"
	}
	e.observe(outcome, hit, start)
	e.track(ctx, analytics.SearchEvent{
		Query:       compiled.Text,
		Scope:       string(compiled.Scope),
		Filters:     req.Filters,
		TotalCount:  res.TotalCount,
		TotalAmount: res.TotalAmount,
		Returned:    len(res.Rows),
		Degraded:    res.AggregatesDegraded,
		CacheHit:    hit,
		LatencyMs:   res.ElapsedMs,
	})
	e.logger.Debug("search executed",
		"query", compiled.Text,
		"predicate", compiled.Predicate.String(),
		"total", res.TotalCount,
		"rows", len(res.Rows),
		"cache_hit", hit,
		"elapsed_ms", res.ElapsedMs,
	)
	return &res, nil
}

func (e *Executor) search(ctx context.Context, c query.Compiled, sort contracts.SortKey, page, size int) (*SearchResult, error) {
	var (
		agg    aggregate.Aggregates
		facets aggregate.Facets
		rows   *pager.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		agg = e.engine.Aggregate(gctx, c.Predicate)
		return nil
	})
	g.Go(func() error {
		facets = e.engine.Facets(gctx, c.Predicate)
		return nil
	})
	g.Go(func() error {
		var err error
		rows, err = e.pager.Page(gctx, c.Predicate, sort, page, size)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &SearchResult{
		Query:              c.Text,
		Scope:              c.Scope,
		TotalCount:         agg.TotalCount,
		TotalAmount:        agg.TotalAmount,
		TopSuppliers:       agg.TopSuppliers,
		TopInstitutions:    agg.TopInstitutions,
		ByYear:             agg.ByYear,
		Facets:             facets,
		Rows:               toRows(rows.Rows),
		Sort:               sort,
		Page:               rows.Page,
		PageSize:           rows.PageSize,
		HasMore:            rows.HasMore,
		AggregatesDegraded: agg.Degraded,
		FacetsDegraded:     facets.Degraded,
	}, nil
}

// AggregatesOnly returns totals and the top supplier and institution
// rankings without rows, facets or the per-year breakdown.
func (e *Executor) AggregatesOnly(ctx context.Context, req Request) (*aggregate.Aggregates, error) {
	compiled, err := e.compile(req)
	if err != nil {
		return nil, err
	}
	ctx, end := withSpan(ctx, "aggregates")
	defer end()

	key := cache.Key("aggregates", compiled.Predicate.String())
	agg, _, err := cache.GetOrCompute(ctx, e.cache, key,
		func(ctx context.Context) (aggregate.Aggregates, error) {
			return e.engine.Summary(ctx, compiled.Predicate), nil
		},
		func(a aggregate.Aggregates) bool { return !a.Degraded },
	)
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

// AllSuppliers returns every supplier group of the match set. A store
// failure yields an empty list rather than an error.
func (e *Executor) AllSuppliers(ctx context.Context, req Request) ([]contracts.SupplierBucket, error) {
	compiled, err := e.compile(req)
	if err != nil {
		return nil, err
	}
	ctx, end := withSpan(ctx, "all_suppliers")
	defer end()
	buckets, _ := e.engine.AllSuppliers(ctx, compiled.Predicate)
	return buckets, nil
}

// AllInstitutions is AllSuppliers for institutions.
func (e *Executor) AllInstitutions(ctx context.Context, req Request) ([]contracts.InstitutionBucket, error) {
	compiled, err := e.compile(req)
	if err != nil {
		return nil, err
	}
	ctx, end := withSpan(ctx, "all_institutions")
	defer end()
	buckets, _ := e.engine.AllInstitutions(ctx, compiled.Predicate)
	return buckets, nil
}

// Page returns one page of rows for infinite scrolling.
func (e *Executor) Page(ctx context.Context, req Request) (*PageResult, error) {
	compiled, err := e.compile(req)
	if err != nil {
		return nil, err
	}
	ctx, end := withSpan(ctx, "page")
	defer end()

	sort := contracts.ParseSortKey(req.Sort)
	res, err := e.pager.Page(ctx, compiled.Predicate, sort, req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}
	return &PageResult{
		Rows:     toRows(res.Rows),
		Sort:     sort,
		Page:     res.Page,
		PageSize: res.PageSize,
		HasMore:  res.HasMore,
	}, nil
}

// Export collects the data for a workbook: up to ExportMaxRows matching
// rows in the requested order plus the full supplier and institution
// rankings.
func (e *Executor) Export(ctx context.Context, req Request) (*export.Data, error) {
	start := time.Now()
	compiled, err := e.compile(req)
	if err != nil {
		return nil, err
	}
	ctx, end := withSpan(ctx, "export")
	defer end()

	var (
		rows         []contracts.Contract
		suppliers    []contracts.SupplierBucket
		institutions []contracts.InstitutionBucket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = e.store.Rows(gctx, compiled.Predicate, contracts.ParseSortKey(req.Sort), 0, e.cfg.ExportMaxRows+1)
		if err != nil {
			return apperrors.QueryExecution("fetching export rows", err)
		}
		return nil
	})
	g.Go(func() error {
		suppliers, _ = e.engine.AllSuppliers(gctx, compiled.Predicate)
		return nil
	})
	g.Go(func() error {
		institutions, _ = e.engine.AllInstitutions(gctx, compiled.Predicate)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &export.Data{
		Query:        compiled.Text,
		GeneratedAt:  time.Now().UTC(),
		Rows:         rows,
		Suppliers:    suppliers,
		Institutions: institutions,
	}
	if len(rows) > e.cfg.ExportMaxRows {
		d.Rows = rows[:e.cfg.ExportMaxRows]
		d.Truncated = true
	}
	e.track(ctx, analytics.SearchEvent{
		Type:      analytics.EventExport,
		Query:     compiled.Text,
		Scope:     string(compiled.Scope),
		Filters:   req.Filters,
		Returned:  len(d.Rows),
		LatencyMs: time.Since(start).Milliseconds(),
	})
	return d, nil
}

func (e *Executor) observe(outcome string, hit bool, start time.Time) {
	if e.metrics == nil {
		return
	}
	status := "miss"
	if hit {
		status = "hit"
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	e.metrics.SearchLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

func (e *Executor) track(ctx context.Context, ev analytics.SearchEvent) {
	if e.tracker == nil {
		return
	}
	ev.RequestID = logger.RequestID(ctx)
	ev.Timestamp = time.Now().UTC()
	e.tracker.Track(ev)
}

func toRows(cs []contracts.Contract) []contracts.Row {
	out := make([]contracts.Row, len(cs))
	for i, c := range cs {
		out[i] = c.Row()
	}
	return out
}
