package postgres

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/textnorm"
	"github.com/lib/pq"
)

// amountExpr resolves the contract amount in SQL the way
// contracts.ParseAmountText does in Go: the numeric column wins, then the
// text column when it is a plain decimal with optional thousands
// separators, one leading "$" and an optional trailing currency code.
const amountExpr = `COALESCE(amount, CASE WHEN amount_text ~ '` + amountTextPattern + `' THEN replace(substring(amount_text from '` + amountNumberPattern + `'), ',', '')::numeric END)`

const (
	amountNumberPattern = `-?(?:[0-9][0-9,]*(?:\.[0-9]+)?|\.[0-9]+)`
	amountTextPattern   = `^[[:space:]]*\$?[[:space:]]*` + amountNumberPattern + `[[:space:]]*(?:[A-Za-z]{3})?[[:space:]]*$`
)

// Accented characters folded by the translate() fallback used when the
// unaccent extension is unavailable.
const (
	accentFrom = "ÁÀÂÄÃÉÈÊËÍÌÎÏÓÒÔÖÕÚÙÛÜÑÇáàâäãéèêëíìîïóòôöõúùûüñç"
	accentTo   = "AAAAAEEEEIIIIOOOOOUUUUNCaaaaaeeeeiiiiooooouuuunc"
)

var textColumns = map[contracts.Column]bool{
	contracts.ColumnContractCode:       true,
	contracts.ColumnDescription:        true,
	contracts.ColumnTitle:              true,
	contracts.ColumnTitleAlt:           true,
	contracts.ColumnSupplierName:       true,
	contracts.ColumnTaxID:              true,
	contracts.ColumnInstitutionName:    true,
	contracts.ColumnInstitutionAcronym: true,
	contracts.ColumnContractingType:    true,
	contracts.ColumnProcedureType:      true,
	contracts.ColumnStatus:             true,
	contracts.ColumnSourceYear:         true,
}

// renderer turns a predicate into a WHERE clause with positional
// arguments. A renderer is used for one statement only.
type renderer struct {
	unaccent bool
	args     []any
}

func newRenderer(unaccent bool) *renderer {
	return &renderer{unaccent: unaccent}
}

func (r *renderer) arg(v any) string {
	r.args = append(r.args, v)
	return fmt.Sprintf("$%d", len(r.args))
}

func column(col contracts.Column) string {
	if !textColumns[col] {
		// Columns come from a closed set; reaching this is a programming
		// error, not user input.
		panic(fmt.Sprintf("postgres: unknown column %q", col))
	}
	return string(col)
}

// fold lower-cases and strips accents from an SQL text expression.
func (r *renderer) fold(expr string) string {
	if r.unaccent {
		return "lower(unaccent(" + expr + "))"
	}
	return fmt.Sprintf("lower(translate(%s, '%s', '%s'))", expr, accentFrom, accentTo)
}

// normalized mirrors textnorm.NormalizeForExactMatch.
func (r *renderer) normalized(expr string) string {
	return "btrim(regexp_replace(" + r.fold(expr) + ", '[^[:alnum:]]+', ' ', 'g'))"
}

// supplierKey mirrors the memory store's supplier identity: the real tax
// id when there is one, else the normalized name without company-form
// suffix.
func (r *renderer) supplierKey() string {
	name := r.normalized("supplier_name")
	suffix := r.arg(textnorm.CorporateSuffixPattern)
	taxID := "upper(btrim(coalesce(tax_id, '')))"
	return fmt.Sprintf(
		"CASE WHEN %[1]s NOT IN ('', %[2]s) THEN 'rfc:' || %[1]s ELSE 'name:' || coalesce(nullif(regexp_replace(%[3]s, %[4]s, ''), ''), %[3]s) END",
		taxID, r.arg(contracts.GenericTaxID), name, suffix,
	)
}

func (r *renderer) where(p query.Predicate) string {
	return r.node(p.Root())
}

func (r *renderer) node(n query.Node) string {
	switch n.Kind() {
	case query.KindTrue:
		return "TRUE"
	case query.KindFalse:
		return "FALSE"
	case query.KindAnd, query.KindOr:
		sep := " AND "
		if n.Kind() == query.KindOr {
			sep = " OR "
		}
		children := n.Children()
		parts := make([]string, len(children))
		for i, c := range children {
			parts[i] = r.node(c)
		}
		return "(" + strings.Join(parts, sep) + ")"
	case query.KindNot:
		// A NULL column must count as "does not contain", so the negated
		// test is wrapped to never yield NULL.
		return "NOT coalesce(" + r.node(n.Children()[0]) + ", FALSE)"
	case query.KindEquals:
		return column(n.Column()) + " = " + r.arg(n.Value())
	case query.KindIn:
		return column(n.Column()) + " = ANY(" + r.arg(pq.Array(n.Values())) + ")"
	case query.KindMatch:
		return r.match(n)
	}
	panic(fmt.Sprintf("postgres: unknown predicate kind %d", n.Kind()))
}

func (r *renderer) match(n query.Node) string {
	col := "coalesce(" + column(n.Column()) + ", '')"
	switch n.Mode() {
	case query.MatchPhrase:
		return r.normalized(col) + " LIKE " + r.arg("%"+escapeLike(n.Value())+"%")
	case query.MatchWord:
		return "to_tsvector('simple', " + r.fold(col) + ") @@ plainto_tsquery('simple', " + r.arg(n.Value()) + ")"
	default:
		return r.fold(col) + " LIKE " + r.arg("%"+escapeLike(n.Value())+"%")
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// orderBy returns the ORDER BY clause for a page of rows. Explicit sorts
// break ties on contract code and id so pages never overlap.
func orderBy(sort contracts.SortKey) string {
	switch sort {
	case contracts.SortAmountDesc:
		return "ORDER BY " + amountExpr + " DESC NULLS LAST, contract_code, id"
	case contracts.SortAmountAsc:
		return "ORDER BY " + amountExpr + " ASC NULLS FIRST, contract_code, id"
	case contracts.SortDateDesc:
		return "ORDER BY start_date DESC NULLS LAST, contract_code, id"
	case contracts.SortDateAsc:
		return "ORDER BY start_date ASC NULLS FIRST, contract_code, id"
	default:
		return "ORDER BY id"
	}
}
