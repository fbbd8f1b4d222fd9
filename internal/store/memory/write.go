package memory

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/store"
	"github.com/shopspring/decimal"
)

func (s *Store) Insert(ctx context.Context, cs []contracts.Contract) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[contracts.DedupKey]bool, len(s.rows))
	for _, c := range s.rows {
		seen[c.DedupKey()] = true
	}
	var inserted int64
	for _, c := range cs {
		if seen[c.DedupKey()] {
			continue
		}
		seen[c.DedupKey()] = true
		s.nextID++
		c.ID = s.nextID
		s.rows = append(s.rows, c)
		inserted++
	}
	return inserted, nil
}

func (s *Store) DeleteDuplicates(ctx context.Context) (store.DedupeReport, error) {
	if err := ctx.Err(); err != nil {
		return store.DedupeReport{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	report := store.DedupeReport{Before: int64(len(s.rows))}
	seen := make(map[contracts.DedupKey]bool, len(s.rows))
	kept := s.rows[:0]
	for _, c := range s.rows {
		if seen[c.DedupKey()] {
			continue
		}
		seen[c.DedupKey()] = true
		kept = append(kept, c)
	}
	s.rows = kept
	report.After = int64(len(kept))
	report.Deleted = report.Before - report.After
	return report, nil
}

func (s *Store) Stats(ctx context.Context) (contracts.Stats, error) {
	if err := ctx.Err(); err != nil {
		return contracts.Stats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		st           contracts.Stats
		suppliers    = make(map[string]bool)
		institutions = make(map[string]bool)
		last         *time.Time
		total        decimal.Decimal
	)
	for _, c := range s.rows {
		st.TotalContracts++
		if amt := c.ResolvedAmount(); amt.Valid {
			total = total.Add(amt.Decimal)
		}
		if c.SupplierName != "" {
			suppliers[c.SupplierName] = true
		}
		if c.InstitutionAcronym != "" {
			institutions[c.InstitutionAcronym] = true
		}
		if c.StartDate != nil && (last == nil || c.StartDate.After(*last)) {
			last = c.StartDate
		}
		if c.SourceYear > st.LatestYear {
			st.LatestYear = c.SourceYear
		}
	}
	st.TotalAmount = total
	st.UniqueSuppliers = int64(len(suppliers))
	st.UniqueInstitutions = int64(len(institutions))
	if last != nil {
		d := last.Format(contracts.DateLayout)
		st.LastUpdated = &d
	}
	return st, nil
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
