package query

import (
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
)

// Filters are structured restrictions always ANDed with the text match.
// An empty set means no restriction on that column.
type Filters struct {
	Institutions   []string `json:"institutions,omitempty"`
	ContractTypes  []string `json:"contract_types,omitempty"`
	ProcedureTypes []string `json:"procedure_types,omitempty"`
	// Years are compared as text; the source year column is free-form.
	Years    []string `json:"years,omitempty"`
	Statuses []string `json:"statuses,omitempty"`
}

// Normalize trims values and drops blanks and duplicates, keeping order.
func (f Filters) Normalize() Filters {
	return Filters{
		Institutions:   cleanSet(f.Institutions),
		ContractTypes:  cleanSet(f.ContractTypes),
		ProcedureTypes: cleanSet(f.ProcedureTypes),
		Years:          cleanSet(f.Years),
		Statuses:       cleanSet(f.Statuses),
	}
}

func cleanSet(in []string) []string {
	var out []string
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// Predicate returns the conjunction of the non-empty filters.
func (f Filters) Predicate() Predicate {
	parts := make([]Predicate, 0, 5)
	add := func(col contracts.Column, values []string) {
		if len(values) > 0 {
			parts = append(parts, In(col, values))
		}
	}
	add(contracts.ColumnInstitutionAcronym, f.Institutions)
	add(contracts.ColumnContractingType, f.ContractTypes)
	add(contracts.ColumnProcedureType, f.ProcedureTypes)
	add(contracts.ColumnSourceYear, f.Years)
	add(contracts.ColumnStatus, f.Statuses)
	return And(parts...)
}
