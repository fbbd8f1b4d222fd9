package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/store"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS contracts (
		id                  BIGSERIAL PRIMARY KEY,
		contract_code       TEXT,
		file_code           TEXT,
		title               TEXT,
		title_alt           TEXT,
		description         TEXT,
		contracting_type    TEXT,
		procedure_type      TEXT,
		supplier_name       TEXT,
		tax_id              TEXT,
		institution_name    TEXT,
		institution_acronym TEXT,
		amount              NUMERIC(20, 2),
		amount_text         TEXT,
		currency            TEXT,
		start_date          DATE,
		end_date            DATE,
		status              TEXT,
		announcement_url    TEXT,
		source_year         TEXT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS contracts_dedup_key ON contracts (contract_code, title, supplier_name)`,
	`CREATE INDEX IF NOT EXISTS contracts_tax_id ON contracts (tax_id)`,
	`CREATE INDEX IF NOT EXISTS contracts_institution_acronym ON contracts (institution_acronym)`,
	`CREATE INDEX IF NOT EXISTS contracts_source_year ON contracts (source_year)`,
	`CREATE INDEX IF NOT EXISTS contracts_start_date ON contracts (start_date)`,
}

// EnsureSchema creates the contracts table and its indexes if missing and
// enables unaccent when the role is allowed to. It is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring contracts schema: %w", err)
		}
	}
	if _, err := s.db.DB.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS unaccent`); err != nil {
		s.logger.Warn("could not create unaccent extension", "error", err)
	}
	var ok bool
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'unaccent')`,
	).Scan(&ok)
	if err != nil {
		return fmt.Errorf("checking unaccent extension: %w", err)
	}
	s.unaccent = ok
	if !ok {
		s.logger.Warn("unaccent extension unavailable, folding accents with translate()")
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const insertContract = `INSERT INTO contracts (
		contract_code, file_code, title, title_alt, description,
		contracting_type, procedure_type, supplier_name, tax_id, institution_name,
		institution_acronym, amount, amount_text, currency, start_date,
		end_date, status, announcement_url, source_year)
	SELECT $1::text, $2::text, $3::text, $4::text, $5::text,
		$6::text, $7::text, $8::text, $9::text, $10::text,
		$11::text, $12::numeric, $13::text, $14::text, $15::date,
		$16::date, $17::text, $18::text, $19::text
	WHERE NOT EXISTS (
		SELECT 1 FROM contracts
		WHERE contract_code IS NOT DISTINCT FROM $1::text
		  AND title IS NOT DISTINCT FROM $3::text
		  AND supplier_name IS NOT DISTINCT FROM $8::text
	)`

// Insert loads contracts in one transaction, skipping rows whose dedup key
// is already stored or repeated earlier in cs.
func (s *Store) Insert(ctx context.Context, cs []contracts.Contract) (int64, error) {
	var inserted int64
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertContract)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range cs {
			var start, end sql.NullTime
			if c.StartDate != nil {
				start = sql.NullTime{Time: *c.StartDate, Valid: true}
			}
			if c.EndDate != nil {
				end = sql.NullTime{Time: *c.EndDate, Valid: true}
			}
			res, err := stmt.ExecContext(ctx,
				nullString(c.ContractCode), nullString(c.FileCode), nullString(c.Title), nullString(c.TitleAlt), nullString(c.Description),
				nullString(c.ContractingType), nullString(c.ProcedureType), nullString(c.SupplierName), nullString(c.TaxID), nullString(c.InstitutionName),
				nullString(c.InstitutionAcronym), c.Amount, nullString(c.AmountText), nullString(c.Currency), start,
				end, nullString(c.Status), nullString(c.AnnouncementURL), nullString(c.SourceYear),
			)
			if err != nil {
				return fmt.Errorf("inserting contract %s: %w", c.ContractCode, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("reading insert result: %w", err)
			}
			inserted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("contracts inserted", "received", len(cs), "inserted", inserted)
	return inserted, nil
}

// DeleteDuplicates keeps the row with the lowest id for every
// (contract_code, title, supplier_name) and deletes the rest. GROUP BY
// treats NULLs as equal, so rows missing a key part are deduplicated too.
func (s *Store) DeleteDuplicates(ctx context.Context) (store.DedupeReport, error) {
	var report store.DedupeReport
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM contracts`).Scan(&report.Before); err != nil {
			return fmt.Errorf("counting contracts: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM contracts
			WHERE id NOT IN (
				SELECT MIN(id) FROM contracts
				GROUP BY contract_code, title, supplier_name
			)`)
		if err != nil {
			return fmt.Errorf("deleting duplicates: %w", err)
		}
		if report.Deleted, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("reading delete result: %w", err)
		}
		report.After = report.Before - report.Deleted
		return nil
	})
	if err != nil {
		return store.DedupeReport{}, err
	}
	s.logger.Info("duplicates deleted", "before", report.Before, "deleted", report.Deleted, "after", report.After)
	return report, nil
}
