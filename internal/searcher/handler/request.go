package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/errors"
)

const maxBodyBytes = 1 << 20

// StringList accepts a single string, a number, or an array of either.
// Front ends send years as numbers and everything else as strings.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make([]string, 0, len(raw))
		for _, r := range raw {
			v, err := scalar(r)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		*s = out
		return nil
	}
	v, err := scalar(data)
	if err != nil {
		return err
	}
	*s = []string{v}
	return nil
}

func scalar(data json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		return str, nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		return num.String(), nil
	}
	return "", fmt.Errorf("expected string or number, got %s", data)
}

type filtersBody struct {
	Institutions   StringList `json:"institutions"`
	ContractTypes  StringList `json:"contract_types"`
	ProcedureTypes StringList `json:"procedure_types"`
	Years          StringList `json:"years"`
	Statuses       StringList `json:"statuses"`
}

type searchBody struct {
	Query    string      `json:"query"`
	Scope    string      `json:"scope"`
	Fields   StringList  `json:"fields"`
	Filters  filtersBody `json:"filters"`
	Sort     string      `json:"sort"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func (b searchBody) request() executor.Request {
	return executor.Request{
		Query:  b.Query,
		Scope:  b.Scope,
		Fields: b.Fields,
		Filters: query.Filters{
			Institutions:   b.Filters.Institutions,
			ContractTypes:  b.Filters.ContractTypes,
			ProcedureTypes: b.Filters.ProcedureTypes,
			Years:          b.Filters.Years,
			Statuses:       b.Filters.Statuses,
		},
		Sort:     b.Sort,
		Page:     b.Page,
		PageSize: b.PageSize,
	}
}

// decodeRequest reads a search body. Malformed JSON is a validation error
// so it reaches the client as a 400 with a readable message.
func decodeRequest(w http.ResponseWriter, r *http.Request) (executor.Request, error) {
	var body searchBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return executor.Request{}, apperrors.Validation("request body is empty")
		case errors.As(err, &tooLarge):
			return executor.Request{}, apperrors.Validation("request body exceeds %d bytes", tooLarge.Limit)
		default:
			return executor.Request{}, apperrors.Validation("invalid request body: %v", err)
		}
	}
	return body.request(), nil
}
