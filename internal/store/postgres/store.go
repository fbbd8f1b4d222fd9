// Package postgres is the production contract store. Predicates are
// rendered to SQL with positional arguments; aggregates are computed by the
// database over the whole match set.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/logger"
	pgclient "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/postgres"
	"github.com/shopspring/decimal"
)

// Store reads and writes the contracts table.
//
// It requires the contracts table created by EnsureSchema. The unaccent
// extension is used when present; otherwise accents are folded with
// translate(), which covers the Spanish alphabet.
type Store struct {
	db       *pgclient.Client
	unaccent bool
	logger   *slog.Logger
}

// New returns a store using db. Call EnsureSchema before first use.
func New(db *pgclient.Client) *Store {
	return &Store{
		db:     db,
		logger: logger.WithComponent("contract-store"),
	}
}

const selectColumns = `id, contract_code, file_code, title, title_alt, description,
	contracting_type, procedure_type, supplier_name, tax_id, institution_name,
	institution_acronym, amount, amount_text, currency, start_date, end_date,
	status, announcement_url, source_year`

func (s *Store) renderer() *renderer {
	return newRenderer(s.unaccent)
}

func (s *Store) Totals(ctx context.Context, p query.Predicate) (contracts.Totals, error) {
	r := s.renderer()
	q := fmt.Sprintf(`SELECT COUNT(*), COALESCE(SUM(%s), 0) FROM contracts WHERE %s`, amountExpr, r.where(p))

	var t contracts.Totals
	if err := s.db.DB.QueryRowContext(ctx, q, r.args...).Scan(&t.Count, &t.Amount); err != nil {
		return contracts.Totals{}, fmt.Errorf("querying totals: %w", err)
	}
	return t, nil
}

func limitClause(r *renderer, limit int) string {
	if limit <= 0 {
		return ""
	}
	return " LIMIT " + r.arg(limit)
}

func (s *Store) TopSuppliers(ctx context.Context, p query.Predicate, limit int) ([]contracts.SupplierBucket, error) {
	r := s.renderer()
	where := r.where(p)
	key := r.supplierKey()
	q := fmt.Sprintf(`SELECT key, MAX(supplier_name), COUNT(*), SUM(amt)
		FROM (
			SELECT %s AS key, supplier_name, %s AS amt
			FROM contracts
			WHERE %s AND coalesce(supplier_name, '') <> ''
		) matched
		GROUP BY key
		ORDER BY SUM(amt) DESC NULLS LAST, key`, key, amountExpr, where) + limitClause(r, limit)

	rows, err := s.db.DB.QueryContext(ctx, q, r.args...)
	if err != nil {
		return nil, fmt.Errorf("querying top suppliers: %w", err)
	}
	defer rows.Close()

	var out []contracts.SupplierBucket
	for rows.Next() {
		var (
			b   contracts.SupplierBucket
			sum decimal.NullDecimal
		)
		if err := rows.Scan(&b.Key, &b.Name, &b.NumContracts, &sum); err != nil {
			return nil, fmt.Errorf("scanning supplier bucket: %w", err)
		}
		b.TotalAmount, b.HasAmount = sum.Decimal, sum.Valid
		b.TaxID = contracts.GenericTaxIDLabel
		if id, ok := strings.CutPrefix(b.Key, "rfc:"); ok {
			b.TaxID = id
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating supplier buckets: %w", err)
	}
	return out, nil
}

func (s *Store) TopInstitutions(ctx context.Context, p query.Predicate, limit int) ([]contracts.InstitutionBucket, error) {
	r := s.renderer()
	q := fmt.Sprintf(`SELECT institution_acronym, MAX(institution_name), COUNT(*), SUM(%s)
		FROM contracts
		WHERE %s AND coalesce(institution_acronym, '') <> ''
		GROUP BY institution_acronym
		ORDER BY 4 DESC NULLS LAST, 1`, amountExpr, r.where(p)) + limitClause(r, limit)

	rows, err := s.db.DB.QueryContext(ctx, q, r.args...)
	if err != nil {
		return nil, fmt.Errorf("querying top institutions: %w", err)
	}
	defer rows.Close()

	var out []contracts.InstitutionBucket
	for rows.Next() {
		var (
			b    contracts.InstitutionBucket
			name sql.NullString
			sum  decimal.NullDecimal
		)
		if err := rows.Scan(&b.Acronym, &name, &b.NumContracts, &sum); err != nil {
			return nil, fmt.Errorf("scanning institution bucket: %w", err)
		}
		b.Name = name.String
		b.TotalAmount, b.HasAmount = sum.Decimal, sum.Valid
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating institution buckets: %w", err)
	}
	return out, nil
}

func (s *Store) ByYear(ctx context.Context, p query.Predicate) ([]contracts.YearBucket, error) {
	r := s.renderer()
	q := fmt.Sprintf(`SELECT source_year, COUNT(*), COALESCE(SUM(%s), 0)
		FROM contracts
		WHERE %s AND coalesce(source_year, '') <> ''
		GROUP BY source_year
		ORDER BY source_year`, amountExpr, r.where(p))

	rows, err := s.db.DB.QueryContext(ctx, q, r.args...)
	if err != nil {
		return nil, fmt.Errorf("querying years: %w", err)
	}
	defer rows.Close()

	var out []contracts.YearBucket
	for rows.Next() {
		var b contracts.YearBucket
		if err := rows.Scan(&b.Year, &b.NumContracts, &b.TotalAmount); err != nil {
			return nil, fmt.Errorf("scanning year bucket: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating year buckets: %w", err)
	}
	return out, nil
}

func (s *Store) Facet(ctx context.Context, p query.Predicate, col contracts.Column, limit int) ([]contracts.FacetCount, error) {
	r := s.renderer()
	c := column(col)
	q := fmt.Sprintf(`SELECT %[1]s, COUNT(*)
		FROM contracts
		WHERE %[2]s AND coalesce(%[1]s, '') <> ''
		GROUP BY %[1]s
		ORDER BY 2 DESC, 1`, c, r.where(p)) + limitClause(r, limit)

	rows, err := s.db.DB.QueryContext(ctx, q, r.args...)
	if err != nil {
		return nil, fmt.Errorf("querying facet %s: %w", col, err)
	}
	defer rows.Close()

	var out []contracts.FacetCount
	for rows.Next() {
		var f contracts.FacetCount
		if err := rows.Scan(&f.Value, &f.Count); err != nil {
			return nil, fmt.Errorf("scanning facet %s: %w", col, err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating facet %s: %w", col, err)
	}
	return out, nil
}

func (s *Store) Rows(ctx context.Context, p query.Predicate, sort contracts.SortKey, offset, limit int) ([]contracts.Contract, error) {
	r := s.renderer()
	q := fmt.Sprintf(`SELECT %s FROM contracts WHERE %s %s`, selectColumns, r.where(p), orderBy(sort))
	q += " OFFSET " + r.arg(offset) + limitClause(r, limit)

	rows, err := s.db.DB.QueryContext(ctx, q, r.args...)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	var out []contracts.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

func scanContract(rows *sql.Rows) (contracts.Contract, error) {
	var (
		c                                        contracts.Contract
		code, fileCode, title, titleAlt, desc    sql.NullString
		ctype, ptype, supplier, taxID, inst, acr sql.NullString
		amountText, currency, status, url, year  sql.NullString
		start, end                               sql.NullTime
	)
	err := rows.Scan(&c.ID, &code, &fileCode, &title, &titleAlt, &desc,
		&ctype, &ptype, &supplier, &taxID, &inst,
		&acr, &c.Amount, &amountText, &currency, &start, &end,
		&status, &url, &year)
	if err != nil {
		return contracts.Contract{}, fmt.Errorf("scanning contract: %w", err)
	}
	c.ContractCode, c.FileCode, c.Title, c.TitleAlt, c.Description = code.String, fileCode.String, title.String, titleAlt.String, desc.String
	c.ContractingType, c.ProcedureType, c.SupplierName, c.TaxID = ctype.String, ptype.String, supplier.String, taxID.String
	c.InstitutionName, c.InstitutionAcronym = inst.String, acr.String
	c.AmountText, c.Currency, c.Status, c.AnnouncementURL, c.SourceYear = amountText.String, currency.String, status.String, url.String, year.String
	if start.Valid {
		c.StartDate = &start.Time
	}
	if end.Valid {
		c.EndDate = &end.Time
	}
	return c, nil
}

func (s *Store) Stats(ctx context.Context) (contracts.Stats, error) {
	q := fmt.Sprintf(`SELECT COUNT(*), COALESCE(SUM(%s), 0),
			COUNT(DISTINCT nullif(supplier_name, '')),
			COUNT(DISTINCT nullif(institution_acronym, '')),
			MAX(start_date),
			COALESCE(MAX(nullif(source_year, '')), '')
		FROM contracts`, amountExpr)

	var (
		st   contracts.Stats
		last sql.NullTime
	)
	err := s.db.DB.QueryRowContext(ctx, q).Scan(
		&st.TotalContracts, &st.TotalAmount, &st.UniqueSuppliers,
		&st.UniqueInstitutions, &last, &st.LatestYear,
	)
	if err != nil {
		return contracts.Stats{}, fmt.Errorf("querying stats: %w", err)
	}
	if last.Valid {
		d := last.Time.Format(contracts.DateLayout)
		st.LastUpdated = &d
	}
	return st, nil
}

var _ store.Store = (*Store)(nil)
