// Package aggregate computes the whole-match-set summaries of a search:
// totals, top suppliers and institutions, the per-year breakdown and the
// filter facets. Failures never reach the caller; a failed computation
// yields empty results flagged as degraded.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/tracing"
)

// Source is the part of a contract store aggregation reads from.
type Source interface {
	Totals(ctx context.Context, p query.Predicate) (contracts.Totals, error)
	TopSuppliers(ctx context.Context, p query.Predicate, limit int) ([]contracts.SupplierBucket, error)
	TopInstitutions(ctx context.Context, p query.Predicate, limit int) ([]contracts.InstitutionBucket, error)
	ByYear(ctx context.Context, p query.Predicate) ([]contracts.YearBucket, error)
	Facet(ctx context.Context, p query.Predicate, col contracts.Column, limit int) ([]contracts.FacetCount, error)
}

// Config bounds aggregation work.
type Config struct {
	TopN         int
	StageTimeout time.Duration
}

// Aggregates summarise the full match set. TotalCount is counted directly
// and is not the sum of the supplier buckets: merging and the top-N cut
// make those diverge.
type Aggregates struct {
	TotalCount      int64                         `json:"total_count"`
	TotalAmount     decimal.Decimal               `json:"total_amount"`
	TopSuppliers    []contracts.SupplierBucket    `json:"top_suppliers"`
	TopInstitutions []contracts.InstitutionBucket `json:"top_institutions"`
	ByYear          []contracts.YearBucket        `json:"by_year,omitempty"`
	Degraded        bool                          `json:"degraded,omitempty"`
}

func emptyAggregates() Aggregates {
	return Aggregates{
		TopSuppliers:    []contracts.SupplierBucket{},
		TopInstitutions: []contracts.InstitutionBucket{},
		ByYear:          []contracts.YearBucket{},
	}
}

// Engine runs aggregation stages concurrently against a Source.
type Engine struct {
	src     Source
	cfg     Config
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine creates an Engine. breaker and m may be nil.
func NewEngine(src Source, cfg Config, breaker *resilience.CircuitBreaker, m *metrics.Metrics) *Engine {
	if cfg.TopN <= 0 {
		cfg.TopN = 20
	}
	return &Engine{
		src:     src,
		cfg:     cfg,
		breaker: breaker,
		metrics: m,
		logger:  logger.WithComponent("aggregation"),
	}
}

// NewBreaker returns the circuit breaker shared by aggregation and facets.
// Cancellations by the caller do not count as store failures.
func NewBreaker(m *metrics.Metrics) *resilience.CircuitBreaker {
	cfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		IsFailure: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	}
	if m != nil {
		cfg.OnStateChange = func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return resilience.NewCircuitBreaker("store-aggregation", cfg)
}

// stage runs fn under the stage timeout and the circuit breaker.
func (e *Engine) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartChildSpan(ctx, "aggregate."+name)
	defer span.End()
	start := time.Now()

	run := func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, e.cfg.StageTimeout, name, fn)
	}
	var err error
	if e.breaker != nil {
		err = e.breaker.ExecuteContext(ctx, run)
	} else {
		err = run(ctx)
	}

	if e.metrics != nil {
		e.metrics.StageLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		span.SetAttr("error", err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (e *Engine) degrade(ctx context.Context, stage string, err error) {
	if e.metrics != nil {
		e.metrics.AggregationDegraded.WithLabelValues(stage).Inc()
	}
	logger.FromContext(ctx).Warn("aggregation degraded to empty results",
		"component", "aggregation",
		"stage", stage,
		"error", fmt.Errorf("%w: %w", apperrors.ErrDegradedAggregation, err),
	)
}

// Aggregate computes totals, the top suppliers and institutions and the
// per-year breakdown.
func (e *Engine) Aggregate(ctx context.Context, p query.Predicate) Aggregates {
	return e.run(ctx, p, true)
}

// Summary is Aggregate without the per-year breakdown.
func (e *Engine) Summary(ctx context.Context, p query.Predicate) Aggregates {
	return e.run(ctx, p, false)
}

func (e *Engine) run(ctx context.Context, p query.Predicate, withYears bool) Aggregates {
	var (
		totals       contracts.Totals
		suppliers    []contracts.SupplierBucket
		institutions []contracts.InstitutionBucket
		years        []contracts.YearBucket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.stage(gctx, "totals", func(ctx context.Context) (err error) {
			totals, err = e.src.Totals(ctx, p)
			return err
		})
	})
	g.Go(func() error {
		return e.stage(gctx, "suppliers", func(ctx context.Context) (err error) {
			suppliers, err = e.src.TopSuppliers(ctx, p, e.cfg.TopN)
			return err
		})
	})
	g.Go(func() error {
		return e.stage(gctx, "institutions", func(ctx context.Context) (err error) {
			institutions, err = e.src.TopInstitutions(ctx, p, e.cfg.TopN)
			return err
		})
	})
	if withYears {
		g.Go(func() error {
			return e.stage(gctx, "years", func(ctx context.Context) (err error) {
				years, err = e.src.ByYear(ctx, p)
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		e.degrade(ctx, "aggregate", err)
		out := emptyAggregates()
		out.Degraded = true
		return out
	}

	out := emptyAggregates()
	out.TotalCount, out.TotalAmount = totals.Count, totals.Amount
	if suppliers != nil {
		out.TopSuppliers = suppliers
	}
	if institutions != nil {
		out.TopInstitutions = institutions
	}
	if years != nil {
		out.ByYear = years
	}
	if e.metrics != nil {
		e.metrics.SearchMatchCount.Observe(float64(totals.Count))
	}
	return out
}

// AllSuppliers returns every supplier group. degraded reports a failure,
// in which case the slice is empty.
func (e *Engine) AllSuppliers(ctx context.Context, p query.Predicate) (buckets []contracts.SupplierBucket, degraded bool) {
	err := e.stage(ctx, "all_suppliers", func(ctx context.Context) (err error) {
		buckets, err = e.src.TopSuppliers(ctx, p, 0)
		return err
	})
	if err != nil {
		e.degrade(ctx, "all_suppliers", err)
		return []contracts.SupplierBucket{}, true
	}
	if buckets == nil {
		buckets = []contracts.SupplierBucket{}
	}
	return buckets, false
}

// AllInstitutions returns every institution group, with the same failure
// policy as AllSuppliers.
func (e *Engine) AllInstitutions(ctx context.Context, p query.Predicate) (buckets []contracts.InstitutionBucket, degraded bool) {
	err := e.stage(ctx, "all_institutions", func(ctx context.Context) (err error) {
		buckets, err = e.src.TopInstitutions(ctx, p, 0)
		return err
	})
	if err != nil {
		e.degrade(ctx, "all_institutions", err)
		return []contracts.InstitutionBucket{}, true
	}
	if buckets == nil {
		buckets = []contracts.InstitutionBucket{}
	}
	return buckets, false
}
