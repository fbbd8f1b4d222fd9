// Package memory is an in-process contract store. It evaluates predicates
// directly and backs local development and tests; it is not meant for the
// full registry.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/textnorm"
	"github.com/shopspring/decimal"
)

// Store holds contracts in insertion order.
type Store struct {
	mu     sync.RWMutex
	rows   []contracts.Contract
	nextID int64
}

// New returns a store holding rows as given, duplicates included.
func New(rows ...contracts.Contract) *Store {
	s := &Store{}
	for _, c := range rows {
		s.nextID++
		c.ID = s.nextID
		s.rows = append(s.rows, c)
	}
	return s
}

func (s *Store) matching(p query.Predicate) []contracts.Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []contracts.Contract
	for _, c := range s.rows {
		if p.IsTrue() || Matches(p, c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) Totals(ctx context.Context, p query.Predicate) (contracts.Totals, error) {
	if err := ctx.Err(); err != nil {
		return contracts.Totals{}, err
	}
	var t contracts.Totals
	for _, c := range s.matching(p) {
		t.Count++
		if amt := c.ResolvedAmount(); amt.Valid {
			t.Amount = t.Amount.Add(amt.Decimal)
		}
	}
	return t, nil
}

type group struct {
	key       string
	name      string
	taxID     string
	count     int64
	sum       decimal.Decimal
	hasAmount bool
}

func (g *group) add(c contracts.Contract, name string) {
	g.count++
	if name > g.name {
		g.name = name
	}
	if amt := c.ResolvedAmount(); amt.Valid {
		g.sum = g.sum.Add(amt.Decimal)
		g.hasAmount = true
	}
}

// byAmount orders groups by summed amount descending with amount-less
// groups last, then by key.
func byAmount(a, b *group) int {
	if a.hasAmount != b.hasAmount {
		if a.hasAmount {
			return -1
		}
		return 1
	}
	if c := b.sum.Cmp(a.sum); c != 0 {
		return c
	}
	return cmp.Compare(a.key, b.key)
}

func topGroups(groups map[string]*group, limit int) []*group {
	out := make([]*group, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	slices.SortFunc(out, byAmount)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SupplierKey is the identity a contract's supplier is merged under.
func SupplierKey(c contracts.Contract) string {
	if contracts.HasRealTaxID(c.TaxID) {
		return "rfc:" + contracts.NormalizeTaxID(c.TaxID)
	}
	return "name:" + textnorm.SupplierKey(c.SupplierName)
}

func (s *Store) TopSuppliers(ctx context.Context, p query.Predicate, limit int) ([]contracts.SupplierBucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	groups := make(map[string]*group)
	for _, c := range s.matching(p) {
		if c.SupplierName == "" {
			continue
		}
		key := SupplierKey(c)
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, taxID: contracts.GenericTaxIDLabel}
			if contracts.HasRealTaxID(c.TaxID) {
				g.taxID = contracts.NormalizeTaxID(c.TaxID)
			}
			groups[key] = g
		}
		g.add(c, c.SupplierName)
	}
	top := topGroups(groups, limit)
	out := make([]contracts.SupplierBucket, len(top))
	for i, g := range top {
		out[i] = contracts.SupplierBucket{
			Key:          g.key,
			Name:         g.name,
			TaxID:        g.taxID,
			NumContracts: g.count,
			TotalAmount:  g.sum,
			HasAmount:    g.hasAmount,
		}
	}
	return out, nil
}

func (s *Store) TopInstitutions(ctx context.Context, p query.Predicate, limit int) ([]contracts.InstitutionBucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	groups := make(map[string]*group)
	for _, c := range s.matching(p) {
		if c.InstitutionAcronym == "" {
			continue
		}
		g, ok := groups[c.InstitutionAcronym]
		if !ok {
			g = &group{key: c.InstitutionAcronym}
			groups[c.InstitutionAcronym] = g
		}
		g.add(c, c.InstitutionName)
	}
	top := topGroups(groups, limit)
	out := make([]contracts.InstitutionBucket, len(top))
	for i, g := range top {
		out[i] = contracts.InstitutionBucket{
			Acronym:      g.key,
			Name:         g.name,
			NumContracts: g.count,
			TotalAmount:  g.sum,
			HasAmount:    g.hasAmount,
		}
	}
	return out, nil
}

func (s *Store) ByYear(ctx context.Context, p query.Predicate) ([]contracts.YearBucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	years := make(map[string]*contracts.YearBucket)
	for _, c := range s.matching(p) {
		if c.SourceYear == "" {
			continue
		}
		b, ok := years[c.SourceYear]
		if !ok {
			b = &contracts.YearBucket{Year: c.SourceYear}
			years[c.SourceYear] = b
		}
		b.NumContracts++
		if amt := c.ResolvedAmount(); amt.Valid {
			b.TotalAmount = b.TotalAmount.Add(amt.Decimal)
		}
	}
	out := make([]contracts.YearBucket, 0, len(years))
	for _, b := range years {
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b contracts.YearBucket) int { return cmp.Compare(a.Year, b.Year) })
	return out, nil
}

func (s *Store) Facet(ctx context.Context, p query.Predicate, col contracts.Column, limit int) ([]contracts.FacetCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, c := range s.matching(p) {
		if v := c.Field(col); v != "" {
			counts[v]++
		}
	}
	out := make([]contracts.FacetCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, contracts.FacetCount{Value: v, Count: n})
	}
	store.SortFacets(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Rows(ctx context.Context, p query.Predicate, sort contracts.SortKey, offset, limit int) ([]contracts.Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, fmt.Errorf("negative row offset %d", offset)
	}
	rows := s.matching(p)
	slices.SortStableFunc(rows, rowOrder(sort))
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func rowOrder(sort contracts.SortKey) func(a, b contracts.Contract) int {
	var primary func(a, b contracts.Contract) int
	switch sort {
	case contracts.SortAmountDesc:
		primary = func(a, b contracts.Contract) int {
			return compareNullable(a.ResolvedAmount(), b.ResolvedAmount(), false, true)
		}
	case contracts.SortAmountAsc:
		primary = func(a, b contracts.Contract) int {
			return compareNullable(a.ResolvedAmount(), b.ResolvedAmount(), true, false)
		}
	case contracts.SortDateDesc:
		primary = func(a, b contracts.Contract) int { return compareDates(a, b, false) }
	case contracts.SortDateAsc:
		primary = func(a, b contracts.Contract) int { return compareDates(a, b, true) }
	default:
		return func(a, b contracts.Contract) int { return cmp.Compare(a.ID, b.ID) }
	}
	return func(a, b contracts.Contract) int {
		if c := primary(a, b); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ContractCode, b.ContractCode); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}
}

func compareNullable(a, b decimal.NullDecimal, asc, nullsLast bool) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return nullRank(nullsLast)
	case !b.Valid:
		return -nullRank(nullsLast)
	}
	if asc {
		return a.Decimal.Cmp(b.Decimal)
	}
	return b.Decimal.Cmp(a.Decimal)
}

func compareDates(a, b contracts.Contract, asc bool) int {
	switch {
	case a.StartDate == nil && b.StartDate == nil:
		return 0
	case a.StartDate == nil:
		return nullRank(!asc)
	case b.StartDate == nil:
		return -nullRank(!asc)
	}
	if asc {
		return a.StartDate.Compare(*b.StartDate)
	}
	return b.StartDate.Compare(*a.StartDate)
}

func nullRank(nullsLast bool) int {
	if nullsLast {
		return 1
	}
	return -1
}
