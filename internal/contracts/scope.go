package contracts

import (
	"slices"
	"strings"
)

// Column is a contract attribute a predicate can reference. The values are
// the column names in the contracts table.
type Column string

const (
	ColumnContractCode       Column = "contract_code"
	ColumnDescription        Column = "description"
	ColumnTitle              Column = "title"
	ColumnTitleAlt           Column = "title_alt"
	ColumnSupplierName       Column = "supplier_name"
	ColumnTaxID              Column = "tax_id"
	ColumnInstitutionName    Column = "institution_name"
	ColumnInstitutionAcronym Column = "institution_acronym"
	ColumnContractingType    Column = "contracting_type"
	ColumnProcedureType      Column = "procedure_type"
	ColumnStatus             Column = "status"
	ColumnSourceYear         Column = "source_year"
)

// Scope names the set of columns free text is matched against.
type Scope string

const (
	ScopeDescription Scope = "description"
	ScopeTitle       Scope = "title"
	ScopeSupplier    Scope = "supplier"
	ScopeTaxID       Scope = "tax_id"
	ScopeInstitution Scope = "institution"
	ScopeAll         Scope = "all"
)

var scopeColumns = map[Scope][]Column{
	ScopeDescription: {ColumnDescription},
	ScopeTitle:       {ColumnTitle, ColumnTitleAlt},
	ScopeSupplier:    {ColumnSupplierName},
	ScopeTaxID:       {ColumnTaxID},
	ScopeInstitution: {ColumnInstitutionName, ColumnInstitutionAcronym},
	ScopeAll: {
		ColumnDescription, ColumnTitle, ColumnTitleAlt, ColumnSupplierName,
		ColumnTaxID, ColumnInstitutionName, ColumnInstitutionAcronym,
	},
}

// Legacy Spanish scope names still sent by older clients.
var scopeAliases = map[string]Scope{
	"descripcion": ScopeDescription,
	"titulo":      ScopeTitle,
	"empresa":     ScopeSupplier,
	"proveedor":   ScopeSupplier,
	"rfc":         ScopeTaxID,
	"institucion": ScopeInstitution,
	"todo":        ScopeAll,
}

// canonicalColumns fixes the order of unioned column sets.
var canonicalColumns = scopeColumns[ScopeAll]

// ParseScope maps a scope name or legacy alias to a Scope. ok is false for
// unknown names.
func ParseScope(s string) (scope Scope, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, known := scopeColumns[Scope(s)]; known {
		return Scope(s), true
	}
	if alias, known := scopeAliases[s]; known {
		return alias, true
	}
	return "", false
}

// ScopeOrAll is ParseScope with unknown and empty names falling back to
// ScopeAll.
func ScopeOrAll(s string) Scope {
	if scope, ok := ParseScope(s); ok {
		return scope
	}
	return ScopeAll
}

// Columns returns the fixed column set of the scope.
func (s Scope) Columns() []Column {
	return slices.Clone(scopeColumns[s])
}

// ScopeSet is a multi-select of scopes whose column sets are unioned.
type ScopeSet []Scope

// ParseScopeSet parses scope names, dropping unknown ones and duplicates.
func ParseScopeSet(names []string) ScopeSet {
	var set ScopeSet
	for _, n := range names {
		if s, ok := ParseScope(n); ok && !slices.Contains(set, s) {
			set = append(set, s)
		}
	}
	return set
}

// Columns returns the union of the member scopes' columns in canonical
// order.
func (ss ScopeSet) Columns() []Column {
	seen := make(map[Column]bool)
	for _, s := range ss {
		for _, c := range scopeColumns[s] {
			seen[c] = true
		}
	}
	cols := make([]Column, 0, len(seen))
	for _, c := range canonicalColumns {
		if seen[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// Effective resolves the active scope set: a non-empty override wins over
// the single scope.
func Effective(scope Scope, override ScopeSet) ScopeSet {
	if len(override) > 0 {
		return override
	}
	return ScopeSet{scope}
}

// IsTaxIDOnly reports whether the set resolves to exactly the tax id
// column, the one case matched by equality.
func (ss ScopeSet) IsTaxIDOnly() bool {
	cols := ss.Columns()
	return len(cols) == 1 && cols[0] == ColumnTaxID
}
