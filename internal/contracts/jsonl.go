package contracts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is the JSON-lines load format. Amount may be a number, a numeric
// string or null; AmountText keeps whatever the source file had.
type Record struct {
	Code               string              `json:"code"`
	FileCode           string              `json:"file_code"`
	Title              string              `json:"title"`
	TitleAlt           string              `json:"title_alt"`
	Description        string              `json:"description"`
	ContractingType    string              `json:"contracting_type"`
	ProcedureType      string              `json:"procedure_type"`
	Supplier           string              `json:"supplier"`
	TaxID              string              `json:"tax_id"`
	Institution        string              `json:"institution"`
	InstitutionAcronym string              `json:"institution_acronym"`
	Amount             decimal.NullDecimal `json:"amount"`
	AmountText         string              `json:"amount_text"`
	Currency           string              `json:"currency"`
	StartDate          string              `json:"start_date"`
	EndDate            string              `json:"end_date"`
	Status             string              `json:"status"`
	AnnouncementURL    string              `json:"announcement_url"`
	SourceYear         string              `json:"source_year"`
}

// Contract converts a record, parsing its dates. Unparseable dates are
// treated as absent.
func (r Record) Contract() Contract {
	return Contract{
		ContractCode:       strings.TrimSpace(r.Code),
		FileCode:           r.FileCode,
		Title:              r.Title,
		TitleAlt:           r.TitleAlt,
		Description:        r.Description,
		ContractingType:    r.ContractingType,
		ProcedureType:      r.ProcedureType,
		SupplierName:       strings.TrimSpace(r.Supplier),
		TaxID:              strings.TrimSpace(r.TaxID),
		InstitutionName:    r.Institution,
		InstitutionAcronym: strings.TrimSpace(r.InstitutionAcronym),
		Amount:             r.Amount,
		AmountText:         r.AmountText,
		Currency:           r.Currency,
		StartDate:          parseDate(r.StartDate),
		EndDate:            parseDate(r.EndDate),
		Status:             r.Status,
		AnnouncementURL:    r.AnnouncementURL,
		SourceYear:         strings.TrimSpace(r.SourceYear),
	}
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// DecodeJSONLines reads one Record per line. Blank lines are skipped; the
// first malformed line aborts with its line number.
func DecodeJSONLines(r io.Reader) ([]Contract, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var out []Contract
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec.Contract())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading contracts: %w", err)
	}
	return out, nil
}
