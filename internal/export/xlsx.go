// Package export renders a search as an XLSX workbook: one sheet of
// matching contracts and one each for the supplier and institution
// rankings.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
)

const (
	SheetContracts    = "Contracts"
	SheetSuppliers    = "Suppliers"
	SheetInstitutions = "Institutions"
)

// ContentType is the media type of Write's output.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Data is everything a workbook shows.
type Data struct {
	Query        string
	GeneratedAt  time.Time
	Rows         []contracts.Contract
	Suppliers    []contracts.SupplierBucket
	Institutions []contracts.InstitutionBucket
	// Truncated is set when the match set exceeded the export row limit.
	Truncated bool
}

// Filename suggests a download name.
func (d Data) Filename() string {
	return fmt.Sprintf("contracts-%s.xlsx", d.GeneratedAt.UTC().Format("20060102-150405"))
}

var contractHeaders = []any{
	"Code", "Title", "Supplier", "Tax ID", "Institution", "Acronym",
	"Contracting type", "Procedure type", "Amount", "Currency",
	"Start date", "End date", "Status", "Year", "URL",
}

// Write streams the workbook to w.
func Write(w io.Writer, d Data) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetContracts); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := writeContracts(f, d); err != nil {
		return err
	}
	if err := writeSuppliers(f, d.Suppliers); err != nil {
		return err
	}
	if err := writeInstitutions(f, d.Institutions); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeContracts(f *excelize.File, d Data) error {
	sw, err := f.NewStreamWriter(SheetContracts)
	if err != nil {
		return fmt.Errorf("opening contracts sheet: %w", err)
	}
	if err := sw.SetColWidth(2, 2, 60); err != nil {
		return err
	}
	if err := sw.SetColWidth(3, 5, 36); err != nil {
		return err
	}

	row := 1
	next := func(values ...any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return sw.SetRow(cell, values)
	}

	if err := next("Query", d.Query, "Generated", d.GeneratedAt.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if d.Truncated {
		if err := next("Note", fmt.Sprintf("only the first %d matching contracts are included", len(d.Rows))); err != nil {
			return err
		}
	}
	row++
	if err := next(contractHeaders...); err != nil {
		return err
	}
	for _, c := range d.Rows {
		r := c.Row()
		var amount any
		if r.Amount != nil {
			amount = r.Amount.InexactFloat64()
		}
		if err := next(
			r.Code, r.Title, r.Supplier, r.TaxID, r.Institution, r.InstitutionAcronym,
			r.ContractingType, r.ProcedureType, amount, r.Currency,
			deref(r.StartDate), deref(r.EndDate), r.Status, r.SourceYear, r.AnnouncementURL,
		); err != nil {
			return fmt.Errorf("writing contract %s: %w", c.ContractCode, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flushing contracts sheet: %w", err)
	}
	return nil
}

func writeSuppliers(f *excelize.File, buckets []contracts.SupplierBucket) error {
	rows := make([][]any, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, []any{b.Name, b.TaxID, b.NumContracts, b.TotalAmount.InexactFloat64()})
	}
	return writeTable(f, SheetSuppliers, []any{"Supplier", "Tax ID", "Contracts", "Total amount"}, rows)
}

func writeInstitutions(f *excelize.File, buckets []contracts.InstitutionBucket) error {
	rows := make([][]any, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, []any{b.Acronym, b.Name, b.NumContracts, b.TotalAmount.InexactFloat64()})
	}
	return writeTable(f, SheetInstitutions, []any{"Acronym", "Institution", "Contracts", "Total amount"}, rows)
}

func writeTable(f *excelize.File, sheet string, headers []any, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("creating sheet %s: %w", sheet, err)
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("opening sheet %s: %w", sheet, err)
	}
	if err := sw.SetColWidth(1, 2, 40); err != nil {
		return err
	}
	if err := sw.SetRow("A1", headers); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, r); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return sw.Flush()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
