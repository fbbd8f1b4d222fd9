package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
)

func amt(v int64) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.NewFromInt(v)) }

func date(s string) *time.Time {
	t, _ := time.Parse(contracts.DateLayout, s)
	return &t
}

func codes(cs []contracts.Contract) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ContractCode
	}
	return out
}

func build(t testing.TB, text, scope string) query.Predicate {
	t.Helper()
	c, err := query.Build(query.Search{Text: text, Scope: scope}, 2000, query.Options{})
	require.NoError(t, err)
	return c.Predicate
}

func TestInsertSkipsExistingKeys(t *testing.T) {
	s := New(contracts.Contract{ContractCode: "A", Title: "t", SupplierName: "s"})
	n, err := s.Insert(context.Background(), []contracts.Contract{
		{ContractCode: "A", Title: "t", SupplierName: "s"},
		{ContractCode: "B", Title: "t", SupplierName: "s"},
		{ContractCode: "B", Title: "t", SupplierName: "s"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 2, s.Len())
}

func TestDeleteDuplicatesKeepsOldest(t *testing.T) {
	s := New(
		contracts.Contract{ContractCode: "A", Title: "t", SupplierName: "s", SourceYear: "2023"},
		contracts.Contract{ContractCode: "A", Title: "t", SupplierName: "s", SourceYear: "2024"},
		contracts.Contract{ContractCode: "A", Title: "other", SupplierName: "s"},
	)
	report, err := s.DeleteDuplicates(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, report.Before)
	assert.EqualValues(t, 2, report.After)
	assert.EqualValues(t, 1, report.Deleted)

	rows, err := s.Rows(context.Background(), query.True(), contracts.SortNone, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.EqualValues(t, 1, rows[0].ID)
	assert.Equal(t, "2023", rows[0].SourceYear)
}

func TestRowsOrdering(t *testing.T) {
	s := New(
		contracts.Contract{ContractCode: "C", Amount: amt(10), StartDate: date("2024-02-01")},
		contracts.Contract{ContractCode: "A", StartDate: date("2024-03-01")},
		contracts.Contract{ContractCode: "B", Amount: amt(30)},
		contracts.Contract{ContractCode: "D", AmountText: "$30.00 MXN", StartDate: date("2023-01-01")},
	)
	ctx := context.Background()
	tests := []struct {
		sort contracts.SortKey
		want []string
	}{
		{contracts.SortNone, []string{"C", "A", "B", "D"}},
		{contracts.SortAmountDesc, []string{"B", "D", "C", "A"}},
		{contracts.SortAmountAsc, []string{"A", "C", "B", "D"}},
		{contracts.SortDateDesc, []string{"A", "C", "D", "B"}},
		{contracts.SortDateAsc, []string{"B", "D", "C", "A"}},
	}
	for _, tc := range tests {
		t.Run(string(tc.sort), func(t *testing.T) {
			rows, err := s.Rows(ctx, query.True(), tc.sort, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.want, codes(rows))
		})
	}

	rows, err := s.Rows(ctx, query.True(), contracts.SortNone, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, codes(rows))

	rows, err = s.Rows(ctx, query.True(), contracts.SortNone, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTopSuppliersMergesOnTaxIDAndName(t *testing.T) {
	s := New(
		contracts.Contract{SupplierName: "Constructora Norte SA de CV", TaxID: "CNO010101AB1", Amount: amt(100)},
		contracts.Contract{SupplierName: "CONSTRUCTORA NORTE", TaxID: "cno010101ab1", Amount: amt(50)},
		contracts.Contract{SupplierName: "ACME SA", TaxID: contracts.GenericTaxID, Amount: amt(10)},
		contracts.Contract{SupplierName: "Acme", TaxID: "", Amount: amt(5)},
		contracts.Contract{SupplierName: "Sin monto"},
		contracts.Contract{TaxID: "XYZ010101AB1", Amount: amt(1000)},
	)
	buckets, err := s.TopSuppliers(context.Background(), query.True(), 0)
	require.NoError(t, err)
	require.Len(t, buckets, 3)

	assert.Equal(t, "CNO010101AB1", buckets[0].TaxID)
	assert.EqualValues(t, 2, buckets[0].NumContracts)
	assert.True(t, decimal.NewFromInt(150).Equal(buckets[0].TotalAmount))

	assert.Equal(t, contracts.GenericTaxIDLabel, buckets[1].TaxID)
	assert.EqualValues(t, 2, buckets[1].NumContracts)

	assert.Equal(t, "Sin monto", buckets[2].Name)
	assert.False(t, buckets[2].HasAmount)

	top, err := s.TopSuppliers(context.Background(), query.True(), 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestByYearAndFacets(t *testing.T) {
	s := New(
		contracts.Contract{SourceYear: "2024", InstitutionAcronym: "SEP", Amount: amt(2)},
		contracts.Contract{SourceYear: "2023", InstitutionAcronym: "IMSS", Amount: amt(1)},
		contracts.Contract{SourceYear: "2024", InstitutionAcronym: "SEP"},
		contracts.Contract{InstitutionAcronym: "ISSSTE"},
	)
	ctx := context.Background()

	years, err := s.ByYear(ctx, query.True())
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, "2023", years[0].Year)
	assert.Equal(t, "2024", years[1].Year)
	assert.EqualValues(t, 2, years[1].NumContracts)

	facets, err := s.Facet(ctx, query.True(), contracts.ColumnInstitutionAcronym, 2)
	require.NoError(t, err)
	assert.Equal(t, []contracts.FacetCount{{Value: "SEP", Count: 2}, {Value: "IMSS", Count: 1}}, facets)
}

func TestTotalsUsesTextAmountFallback(t *testing.T) {
	s := New(
		contracts.Contract{SupplierName: "ACME", Amount: amt(100)},
		contracts.Contract{SupplierName: "ACME", AmountText: "$1,234.50"},
		contracts.Contract{SupplierName: "ACME", AmountText: "n/a"},
		contracts.Contract{SupplierName: "OTHER", Amount: amt(7)},
	)
	totals, err := s.Totals(context.Background(), build(t, "acme", "supplier"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, totals.Count)
	assert.True(t, decimal.RequireFromString("1334.50").Equal(totals.Amount), totals.Amount.String())
}

func TestStats(t *testing.T) {
	s := New(
		contracts.Contract{SupplierName: "ACME", InstitutionAcronym: "SEP", SourceYear: "2023", Amount: amt(1), StartDate: date("2023-05-01")},
		contracts.Contract{SupplierName: "ACME", InstitutionAcronym: "IMSS", SourceYear: "2024", Amount: amt(2), StartDate: date("2024-01-15")},
	)
	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.TotalContracts)
	assert.EqualValues(t, 1, st.UniqueSuppliers)
	assert.EqualValues(t, 2, st.UniqueInstitutions)
	assert.Equal(t, "2024", st.LatestYear)
	require.NotNil(t, st.LastUpdated)
	assert.Equal(t, "2024-01-15", *st.LastUpdated)
}

func TestCancelledContext(t *testing.T) {
	s := New(contracts.Contract{ContractCode: "A"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Totals(ctx, query.True())
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Rows(ctx, query.True(), contracts.SortNone, 0, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRowsRejectsNegativeOffset(t *testing.T) {
	s := New(contracts.Contract{ContractCode: "A"}, contracts.Contract{ContractCode: "B"})
	_, err := s.Rows(context.Background(), query.True(), contracts.SortNone, -116, 10)
	require.Error(t, err)

	rows, err := s.Rows(context.Background(), query.True(), contracts.SortNone, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func BenchmarkTopSuppliers(b *testing.B) {
	for _, n := range []int{1000, 10000} {
		rows := make([]contracts.Contract, n)
		for i := range rows {
			rows[i] = contracts.Contract{
				ContractCode: fmt.Sprintf("C-%d", i),
				Title:        "Suministro de medicamentos",
				SupplierName: fmt.Sprintf("Proveedor %d SA de CV", i%200),
				TaxID:        contracts.GenericTaxID,
				Amount:       amt(int64(i)),
			}
		}
		s := New(rows...)
		p := build(b, "medicamentos", "title")
		b.Run(fmt.Sprintf("contracts_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := s.TopSuppliers(context.Background(), p, 20); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
