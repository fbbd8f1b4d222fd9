// Package store declares what the search core needs from a contract store.
// The postgres package serves production; the memory package serves tests
// and local development with identical semantics.
package store

import (
	"cmp"
	"context"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
)

// Reader answers read-only questions about the contracts matching a
// predicate. Every method projects from the predicate on its own.
type Reader interface {
	Totals(ctx context.Context, p query.Predicate) (contracts.Totals, error)
	// TopSuppliers and TopInstitutions return all groups when limit <= 0.
	TopSuppliers(ctx context.Context, p query.Predicate, limit int) ([]contracts.SupplierBucket, error)
	TopInstitutions(ctx context.Context, p query.Predicate, limit int) ([]contracts.InstitutionBucket, error)
	ByYear(ctx context.Context, p query.Predicate) ([]contracts.YearBucket, error)
	Facet(ctx context.Context, p query.Predicate, col contracts.Column, limit int) ([]contracts.FacetCount, error)
	Rows(ctx context.Context, p query.Predicate, sort contracts.SortKey, offset, limit int) ([]contracts.Contract, error)
	Stats(ctx context.Context) (contracts.Stats, error)
}

// Writer is used by bulk loads and cleanup only.
type Writer interface {
	// Insert adds contracts, skipping any whose dedup key already exists,
	// and returns how many were inserted.
	Insert(ctx context.Context, cs []contracts.Contract) (int64, error)
	// DeleteDuplicates keeps the oldest row of every dedup key.
	DeleteDuplicates(ctx context.Context) (DedupeReport, error)
}

// Store is a full contract store.
type Store interface {
	Reader
	Writer
}

// DedupeReport describes a duplicate cleanup run.
type DedupeReport struct {
	Before  int64 `json:"before"`
	After   int64 `json:"after"`
	Deleted int64 `json:"deleted"`
}

// SortFacets orders facet values by count descending, then value.
func SortFacets(fs []contracts.FacetCount) {
	slices.SortFunc(fs, func(a, b contracts.FacetCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
}
