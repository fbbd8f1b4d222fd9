package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
)

func TestWriteWorkbook(t *testing.T) {
	start := time.Date(2023, 3, 14, 0, 0, 0, 0, time.UTC)
	d := Data{
		Query:       "hospital",
		GeneratedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Rows: []contracts.Contract{
			{ContractCode: "AA-1", Title: "Construcción de hospital", SupplierName: "ACME", StartDate: &start,
				Amount: decimal.NewNullDecimal(decimal.RequireFromString("1500.50"))},
			{ContractCode: "AA-2", Title: "Mantenimiento hospitalario"},
		},
		Suppliers: []contracts.SupplierBucket{
			{Name: "ACME", TaxID: contracts.GenericTaxIDLabel, NumContracts: 1, TotalAmount: decimal.RequireFromString("1500.50")},
		},
		Institutions: []contracts.InstitutionBucket{},
		Truncated:    true,
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, d))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetContracts, SheetSuppliers, SheetInstitutions}, f.GetSheetList())

	rows, err := f.GetRows(SheetContracts)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"Query", "hospital", "Generated", "2024-01-02T03:04:05Z"}, rows[0])
	assert.Equal(t, "Note", rows[1][0])
	assert.Equal(t, "Code", rows[3][0])
	assert.Equal(t, "AA-1", rows[4][0])
	assert.Equal(t, "Construcción de hospital", rows[4][1])
	assert.Equal(t, "2023-03-14", rows[4][10])
	assert.Equal(t, "AA-2", rows[5][0])

	suppliers, err := f.GetRows(SheetSuppliers)
	require.NoError(t, err)
	require.Len(t, suppliers, 2)
	assert.Equal(t, []string{"ACME", contracts.GenericTaxIDLabel}, suppliers[1][:2])

	institutions, err := f.GetRows(SheetInstitutions)
	require.NoError(t, err)
	assert.Len(t, institutions, 1)

	assert.Equal(t, "contracts-20240102-030405.xlsx", d.Filename())
}
