package aggregate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/store/memory"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/metrics"
)

func amount(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func compile(t *testing.T, text string) query.Predicate {
	t.Helper()
	c, err := query.Build(query.Search{Text: text, Scope: "all"}, 2000, query.Options{})
	require.NoError(t, err)
	return c.Predicate
}

func TestAcmeScenario(t *testing.T) {
	src := memory.New(
		contracts.Contract{ContractCode: "A1", SupplierName: "ACME SA", TaxID: contracts.GenericTaxID, Amount: amount(100)},
		contracts.Contract{ContractCode: "A2", SupplierName: "ACME", TaxID: contracts.GenericTaxID, Amount: amount(200)},
		contracts.Contract{ContractCode: "A3", SupplierName: "OTHER", Amount: amount(50)},
	)
	e := NewEngine(src, Config{}, nil, nil)

	agg := e.Aggregate(context.Background(), compile(t, "ACME"))

	assert.False(t, agg.Degraded)
	assert.EqualValues(t, 2, agg.TotalCount)
	assert.True(t, decimal.NewFromInt(300).Equal(agg.TotalAmount))
	require.Len(t, agg.TopSuppliers, 1)
	s := agg.TopSuppliers[0]
	assert.Contains(t, []string{"ACME SA", "ACME"}, s.Name)
	assert.Equal(t, contracts.GenericTaxIDLabel, s.TaxID)
	assert.EqualValues(t, 2, s.NumContracts)
	assert.True(t, decimal.NewFromInt(300).Equal(s.TotalAmount))
}

func TestSuppliersMergeByTaxID(t *testing.T) {
	src := memory.New(
		contracts.Contract{ContractCode: "1", SupplierName: "Servicios Integrales del Norte", TaxID: "SIN990101AA1", Amount: amount(10)},
		contracts.Contract{ContractCode: "2", SupplierName: "SERVICIOS INTEGRALES DEL NORTE, S.A. DE C.V.", TaxID: "sin990101aa1 ", Amount: amount(5)},
		contracts.Contract{ContractCode: "3", SupplierName: "Servicios Integrales del Norte", TaxID: "OTR990101AA1", Amount: amount(1)},
	)
	e := NewEngine(src, Config{}, nil, nil)

	agg := e.Aggregate(context.Background(), query.True())

	require.Len(t, agg.TopSuppliers, 2, "same name, different tax id stays apart")
	top := agg.TopSuppliers[0]
	assert.Equal(t, "SIN990101AA1", top.TaxID)
	assert.EqualValues(t, 2, top.NumContracts)
	assert.True(t, decimal.NewFromInt(15).Equal(top.TotalAmount))
	assert.Equal(t, "Servicios Integrales del Norte", top.Name, "the greatest observed spelling is shown")
}

func TestTotalCountDivergesFromSupplierBuckets(t *testing.T) {
	var rows []contracts.Contract
	for i := 0; i < 25; i++ {
		rows = append(rows, contracts.Contract{
			ContractCode: fmt.Sprintf("C%02d", i),
			SupplierName: fmt.Sprintf("Proveedor %02d", i),
			TaxID:        fmt.Sprintf("PRV9901%02dAA1", i),
			Amount:       amount(int64(100 + i)),
		})
	}
	rows = append(rows, contracts.Contract{ContractCode: "NOSUP", Amount: amount(1)})
	e := NewEngine(memory.New(rows...), Config{TopN: 20}, nil, nil)

	agg := e.Aggregate(context.Background(), query.True())

	var inBuckets int64
	for _, s := range agg.TopSuppliers {
		inBuckets += s.NumContracts
	}
	assert.Len(t, agg.TopSuppliers, 20)
	assert.EqualValues(t, 26, agg.TotalCount)
	// The top-N cut and rows without a supplier make the two differ; this
	// is expected, not a bookkeeping error.
	assert.NotEqual(t, agg.TotalCount, inBuckets)
	assert.Equal(t, "Proveedor 24", agg.TopSuppliers[0].Name)
}

func TestGroupsWithoutAmountSortLast(t *testing.T) {
	src := memory.New(
		contracts.Contract{ContractCode: "1", InstitutionAcronym: "SEP", InstitutionName: "Secretaría de Educación Pública"},
		contracts.Contract{ContractCode: "2", InstitutionAcronym: "IMSS", InstitutionName: "IMSS", AmountText: "1,000"},
		contracts.Contract{ContractCode: "3", InstitutionAcronym: "IMSS", InstitutionName: "Instituto Mexicano del Seguro Social", Amount: amount(5)},
		contracts.Contract{ContractCode: "4", InstitutionAcronym: "CFE", Amount: amount(-3)},
	)
	e := NewEngine(src, Config{}, nil, nil)

	agg := e.Aggregate(context.Background(), query.True())

	require.Len(t, agg.TopInstitutions, 3)
	assert.Equal(t, "IMSS", agg.TopInstitutions[0].Acronym)
	assert.Equal(t, "Instituto Mexicano del Seguro Social", agg.TopInstitutions[0].Name)
	assert.True(t, decimal.NewFromInt(1005).Equal(agg.TopInstitutions[0].TotalAmount))
	assert.Equal(t, "CFE", agg.TopInstitutions[1].Acronym)
	assert.Equal(t, "SEP", agg.TopInstitutions[2].Acronym)
}

func TestByYearAscending(t *testing.T) {
	src := memory.New(
		contracts.Contract{ContractCode: "1", SourceYear: "2024", Amount: amount(1)},
		contracts.Contract{ContractCode: "2", SourceYear: "2019", Amount: amount(2)},
		contracts.Contract{ContractCode: "3", SourceYear: "2024", Amount: amount(3)},
		contracts.Contract{ContractCode: "4"},
	)
	e := NewEngine(src, Config{}, nil, nil)

	agg := e.Aggregate(context.Background(), query.True())

	require.Len(t, agg.ByYear, 2)
	assert.Equal(t, "2019", agg.ByYear[0].Year)
	assert.Equal(t, "2024", agg.ByYear[1].Year)
	assert.EqualValues(t, 2, agg.ByYear[1].NumContracts)
	assert.True(t, decimal.NewFromInt(4).Equal(agg.ByYear[1].TotalAmount))

	summary := e.Summary(context.Background(), query.True())
	assert.Empty(t, summary.ByYear)
	assert.EqualValues(t, 4, summary.TotalCount)
}

type failingSource struct {
	*memory.Store
	failSuppliers bool
	failFacets    bool
}

var errStoreDown = errors.New("connection refused")

func (f failingSource) TopSuppliers(ctx context.Context, p query.Predicate, limit int) ([]contracts.SupplierBucket, error) {
	if f.failSuppliers {
		return nil, errStoreDown
	}
	return f.Store.TopSuppliers(ctx, p, limit)
}

func (f failingSource) Facet(ctx context.Context, p query.Predicate, col contracts.Column, limit int) ([]contracts.FacetCount, error) {
	if f.failFacets && col == contracts.ColumnStatus {
		return nil, errStoreDown
	}
	return f.Store.Facet(ctx, p, col, limit)
}

func TestFailureDegradesToEmpty(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	src := failingSource{
		Store:         memory.New(contracts.Contract{ContractCode: "1", SupplierName: "X", Status: "Activo", Amount: amount(1)}),
		failSuppliers: true,
		failFacets:    true,
	}
	e := NewEngine(src, Config{StageTimeout: time.Second}, NewBreaker(m), m)

	agg := e.Aggregate(context.Background(), query.True())
	assert.True(t, agg.Degraded)
	assert.Zero(t, agg.TotalCount)
	assert.True(t, agg.TotalAmount.IsZero())
	assert.NotNil(t, agg.TopSuppliers)
	assert.Empty(t, agg.TopSuppliers)
	assert.Empty(t, agg.TopInstitutions)

	f := e.Facets(context.Background(), query.True())
	assert.True(t, f.Degraded)
	assert.NotNil(t, f.Institutions)
	assert.Empty(t, f.Institutions)

	all, degraded := e.AllSuppliers(context.Background(), query.True())
	assert.True(t, degraded)
	assert.NotNil(t, all)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AggregationDegraded.WithLabelValues("aggregate")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AggregationDegraded.WithLabelValues("facets")))
}

func TestFacets(t *testing.T) {
	var rows []contracts.Contract
	statuses := []string{"A", "B", "C", "D", "E", "F", "G"}
	for i, s := range statuses {
		for j := 0; j <= i; j++ {
			rows = append(rows, contracts.Contract{
				ContractCode:       fmt.Sprintf("%s%d", s, j),
				Status:             s,
				InstitutionAcronym: "IMSS",
				SourceYear:         "2023",
			})
		}
	}
	rows = append(rows, contracts.Contract{ContractCode: "Z", InstitutionAcronym: "SEP", SourceYear: "2022", ProcedureType: "Adjudicación Directa"})
	e := NewEngine(memory.New(rows...), Config{}, nil, nil)

	f := e.Facets(context.Background(), query.True())

	require.Len(t, f.Statuses, 5)
	assert.Equal(t, contracts.FacetCount{Value: "G", Count: 7}, f.Statuses[0])
	assert.Equal(t, "C", f.Statuses[4].Value)
	assert.Equal(t, []contracts.FacetCount{{Value: "IMSS", Count: 28}, {Value: "SEP", Count: 1}}, f.Institutions)
	assert.Equal(t, []contracts.FacetCount{{Value: "2023", Count: 28}, {Value: "2022", Count: 1}}, f.Years)
	assert.Equal(t, []contracts.FacetCount{{Value: "Adjudicación Directa", Count: 1}}, f.ProcedureTypes)
	assert.NotNil(t, f.ContractingTypes)
	assert.Empty(t, f.ContractingTypes)
}

func TestAllInstitutionsIsUnbounded(t *testing.T) {
	var rows []contracts.Contract
	for i := 0; i < 30; i++ {
		rows = append(rows, contracts.Contract{ContractCode: fmt.Sprint(i), InstitutionAcronym: fmt.Sprintf("I%02d", i), Amount: amount(int64(i))})
	}
	e := NewEngine(memory.New(rows...), Config{TopN: 20}, nil, nil)

	all, degraded := e.AllInstitutions(context.Background(), query.True())
	assert.False(t, degraded)
	assert.Len(t, all, 30)
	assert.Equal(t, "I29", all[0].Acronym)
}
