package contracts

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SupplierBucket is one identity-merged supplier in an aggregation.
type SupplierBucket struct {
	Key          string          `json:"-"`
	Name         string          `json:"name"`
	TaxID        string          `json:"tax_id"`
	NumContracts int64           `json:"num_contracts"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	// HasAmount is false when no row in the group had a resolvable amount.
	HasAmount bool `json:"-"`
}

// InstitutionBucket is one institution, merged by acronym.
type InstitutionBucket struct {
	Acronym      string          `json:"acronym"`
	Name         string          `json:"name"`
	NumContracts int64           `json:"num_contracts"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	HasAmount    bool            `json:"-"`
}

// YearBucket is one source year.
type YearBucket struct {
	Year         string          `json:"year"`
	NumContracts int64           `json:"num_contracts"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// Totals are computed over the whole match set in one pass.
type Totals struct {
	Count  int64           `json:"total_count"`
	Amount decimal.Decimal `json:"total_amount"`
}

// FacetCount is one value of a facet with its frequency.
type FacetCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Stats summarise the whole table.
type Stats struct {
	TotalContracts     int64           `json:"total_contracts"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	UniqueSuppliers    int64           `json:"unique_suppliers"`
	UniqueInstitutions int64           `json:"unique_institutions"`
	LastUpdated        *string         `json:"last_updated"`
	LatestYear         string          `json:"latest_year,omitempty"`
}

// SortKey orders a page of rows.
type SortKey string

const (
	SortNone       SortKey = ""
	SortAmountDesc SortKey = "amount_desc"
	SortAmountAsc  SortKey = "amount_asc"
	SortDateDesc   SortKey = "date_desc"
	SortDateAsc    SortKey = "date_asc"
)

var sortAliases = map[string]SortKey{
	"monto_desc": SortAmountDesc,
	"monto_asc":  SortAmountAsc,
	"fecha_desc": SortDateDesc,
	"fecha_asc":  SortDateAsc,
}

// ParseSortKey maps a sort name to a SortKey; unknown names mean no
// explicit order.
func ParseSortKey(s string) SortKey {
	s = strings.ToLower(strings.TrimSpace(s))
	switch k := SortKey(s); k {
	case SortAmountDesc, SortAmountAsc, SortDateDesc, SortDateAsc:
		return k
	}
	return sortAliases[s]
}
