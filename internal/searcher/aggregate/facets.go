package aggregate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
)

// Facets are small frequency tables over the match set used to drive
// filter widgets. Each is ordered by count, most frequent first.
type Facets struct {
	Institutions     []contracts.FacetCount `json:"institutions"`
	ContractingTypes []contracts.FacetCount `json:"contracting_types"`
	ProcedureTypes   []contracts.FacetCount `json:"procedure_types"`
	Years            []contracts.FacetCount `json:"years"`
	Statuses         []contracts.FacetCount `json:"statuses"`
	Degraded         bool                   `json:"degraded,omitempty"`
}

type facetDim struct {
	column contracts.Column
	limit  int
	target func(*Facets) *[]contracts.FacetCount
}

var facetDims = []facetDim{
	{contracts.ColumnInstitutionAcronym, 10, func(f *Facets) *[]contracts.FacetCount { return &f.Institutions }},
	{contracts.ColumnContractingType, 10, func(f *Facets) *[]contracts.FacetCount { return &f.ContractingTypes }},
	{contracts.ColumnProcedureType, 10, func(f *Facets) *[]contracts.FacetCount { return &f.ProcedureTypes }},
	{contracts.ColumnSourceYear, 10, func(f *Facets) *[]contracts.FacetCount { return &f.Years }},
	{contracts.ColumnStatus, 5, func(f *Facets) *[]contracts.FacetCount { return &f.Statuses }},
}

func emptyFacets() Facets {
	f := Facets{}
	for _, d := range facetDims {
		*d.target(&f) = []contracts.FacetCount{}
	}
	return f
}

// Facets computes every facet concurrently. Any failure empties all of
// them and sets Degraded.
func (e *Engine) Facets(ctx context.Context, p query.Predicate) Facets {
	out := emptyFacets()
	results := make([][]contracts.FacetCount, len(facetDims))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range facetDims {
		g.Go(func() error {
			return e.stage(gctx, "facet_"+string(d.column), func(ctx context.Context) (err error) {
				results[i], err = e.src.Facet(ctx, p, d.column, d.limit)
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		e.degrade(ctx, "facets", err)
		out.Degraded = true
		return out
	}
	for i, d := range facetDims {
		if results[i] != nil {
			*d.target(&out) = results[i]
		}
	}
	return out
}
