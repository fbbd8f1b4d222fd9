package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	pgclient "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/postgres"
)

// openTestStore connects to CS_TEST_POSTGRES_DSN and empties the contracts
// table. Tests using it are skipped when no database is configured.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("CS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CS_TEST_POSTGRES_DSN not set, skipping postgres integration test")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(&pgclient.Client{DB: db})
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))
	_, err = db.ExecContext(ctx, `TRUNCATE contracts RESTART IDENTITY`)
	require.NoError(t, err)
	return s
}

func TestStoreEndToEnd(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.Insert(ctx, []contracts.Contract{
		{ContractCode: "A1", Title: "Suministro", SupplierName: "ACME SA", TaxID: contracts.GenericTaxID, Amount: decimal.NewNullDecimal(decimal.NewFromInt(100)), SourceYear: "2023"},
		{ContractCode: "A2", Title: "Suministro", SupplierName: "ACME", TaxID: contracts.GenericTaxID, AmountText: "200.00", SourceYear: "2024"},
		{ContractCode: "A3", Title: "Suministro", SupplierName: "OTHER", Amount: decimal.NewNullDecimal(decimal.NewFromInt(50)), SourceYear: "2024"},
		{ContractCode: "A3", Title: "Suministro", SupplierName: "OTHER"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n, "the repeated dedup key is skipped")

	c, err := query.Build(query.Search{Text: "acme"}, 2000, query.Options{})
	require.NoError(t, err)

	totals, err := s.Totals(ctx, c.Predicate)
	require.NoError(t, err)
	assert.EqualValues(t, 2, totals.Count)
	assert.True(t, decimal.NewFromInt(300).Equal(totals.Amount))

	suppliers, err := s.TopSuppliers(ctx, c.Predicate, 20)
	require.NoError(t, err)
	require.Len(t, suppliers, 1)
	assert.Equal(t, "ACME SA", suppliers[0].Name)
	assert.Equal(t, contracts.GenericTaxIDLabel, suppliers[0].TaxID)
	assert.EqualValues(t, 2, suppliers[0].NumContracts)

	years, err := s.ByYear(ctx, query.True())
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, "2023", years[0].Year)

	rows, err := s.Rows(ctx, query.True(), contracts.SortAmountDesc, 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "A2", rows[0].ContractCode)
}
