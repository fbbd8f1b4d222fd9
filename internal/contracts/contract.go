// Package contracts defines the contract record, its searchable columns and
// scopes, and the result shapes produced by searches over it.
package contracts

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GenericTaxID is the placeholder tax identifier the source registry uses
// for suppliers without a real one. A row carrying it has no tax identity
// of its own and is grouped by supplier name instead.
const GenericTaxID = "XAXX010101000"

// GenericTaxIDLabel is displayed in place of a tax id for supplier groups
// keyed by name.
const GenericTaxIDLabel = "RFC Genérico"

// DateLayout is the ISO calendar date used on the wire.
const DateLayout = "2006-01-02"

// Contract is one public-records contract. The search core never mutates
// contracts; only bulk loads and duplicate cleanup write them.
type Contract struct {
	ID                 int64
	ContractCode       string
	FileCode           string
	Title              string
	TitleAlt           string
	Description        string
	ContractingType    string
	ProcedureType      string
	SupplierName       string
	TaxID              string
	InstitutionName    string
	InstitutionAcronym string
	Amount             decimal.NullDecimal
	AmountText         string
	Currency           string
	StartDate          *time.Time
	EndDate            *time.Time
	Status             string
	AnnouncementURL    string
	SourceYear         string
}

// DedupKey identifies a contract for deduplication.
type DedupKey struct {
	ContractCode string
	Title        string
	SupplierName string
}

func (c Contract) DedupKey() DedupKey {
	return DedupKey{ContractCode: c.ContractCode, Title: c.Title, SupplierName: c.SupplierName}
}

// ResolvedAmount prefers the numeric amount and falls back to parsing the
// text amount. It never invents a value: anything unparseable is absent.
func (c Contract) ResolvedAmount() decimal.NullDecimal {
	if c.Amount.Valid {
		return c.Amount
	}
	return ParseAmountText(c.AmountText)
}

// amountTextPattern accepts a plain decimal with optional thousands
// separators, at most one leading "$" and an optional trailing currency
// code. The first group is the number.
var amountTextPattern = regexp.MustCompile(`^\$?\s*(-?(?:[0-9][0-9,]*(?:\.[0-9]+)?|\.[0-9]+))\s*(?:[A-Za-z]{3})?$`)

// ParseAmountText parses a free-form amount such as "$1,234,567.50 MXN".
// Anything outside that shape, like a word between digits, makes the
// amount absent.
func ParseAmountText(s string) decimal.NullDecimal {
	m := amountTextPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// NormalizeTaxID upper-cases and trims a tax id.
func NormalizeTaxID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// HasRealTaxID reports whether s identifies a supplier: present, non-empty
// and not the generic placeholder.
func HasRealTaxID(s string) bool {
	n := NormalizeTaxID(s)
	return n != "" && n != GenericTaxID
}

// Field returns the text value of col, or "" for columns that are not
// stored as text on Contract.
func (c Contract) Field(col Column) string {
	switch col {
	case ColumnContractCode:
		return c.ContractCode
	case ColumnDescription:
		return c.Description
	case ColumnTitle:
		return c.Title
	case ColumnTitleAlt:
		return c.TitleAlt
	case ColumnSupplierName:
		return c.SupplierName
	case ColumnTaxID:
		return c.TaxID
	case ColumnInstitutionName:
		return c.InstitutionName
	case ColumnInstitutionAcronym:
		return c.InstitutionAcronym
	case ColumnContractingType:
		return c.ContractingType
	case ColumnProcedureType:
		return c.ProcedureType
	case ColumnStatus:
		return c.Status
	case ColumnSourceYear:
		return c.SourceYear
	}
	return ""
}

// Row is the outward serialization of a contract.
type Row struct {
	Code               string           `json:"code"`
	FileCode           string           `json:"file_code,omitempty"`
	Title              string           `json:"title"`
	Description        string           `json:"description,omitempty"`
	ContractingType    string           `json:"contracting_type,omitempty"`
	ProcedureType      string           `json:"procedure_type,omitempty"`
	Supplier           string           `json:"supplier,omitempty"`
	TaxID              string           `json:"tax_id,omitempty"`
	Institution        string           `json:"institution,omitempty"`
	InstitutionAcronym string           `json:"institution_acronym,omitempty"`
	Amount             *decimal.Decimal `json:"amount"`
	Currency           string           `json:"currency,omitempty"`
	StartDate          *string          `json:"start_date"`
	EndDate            *string          `json:"end_date"`
	Status             string           `json:"status,omitempty"`
	AnnouncementURL    string           `json:"announcement_url,omitempty"`
	SourceYear         string           `json:"source_year,omitempty"`
}

func (c Contract) Row() Row {
	r := Row{
		Code:               c.ContractCode,
		FileCode:           c.FileCode,
		Title:              c.Title,
		Description:        c.Description,
		ContractingType:    c.ContractingType,
		ProcedureType:      c.ProcedureType,
		Supplier:           c.SupplierName,
		TaxID:              c.TaxID,
		Institution:        c.InstitutionName,
		InstitutionAcronym: c.InstitutionAcronym,
		Currency:           c.Currency,
		StartDate:          formatDate(c.StartDate),
		EndDate:            formatDate(c.EndDate),
		Status:             c.Status,
		AnnouncementURL:    c.AnnouncementURL,
		SourceYear:         c.SourceYear,
	}
	if amt := c.ResolvedAmount(); amt.Valid {
		r.Amount = &amt.Decimal
	}
	return r
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
