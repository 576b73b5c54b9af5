// Package bulk implements the CSV exchange engines: batch import of lender
// rows with per-row failure reporting, and streaming export of the full
// lender table.
package bulk

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/brokerload/lenderdesk/internal/lender"
)

// importColumns are the CSV columns the import engine reads. Extra columns
// in the upload (an id column, for example) are ignored.
var importColumns = []string{"name", "code", "upfront_commission_rate", "trial_commission_rate", "active"}

// RowOutcome pairs a processed row with its error marker. Item holds the
// persisted record for added rows, the candidate's field set for rows that
// failed after a candidate could be built, or the raw name cell otherwise.
type RowOutcome struct {
	Item      any     `json:"item"`
	Exception *string `json:"exception"`
}

// Result aggregates one import batch. All three slices are always present
// in the JSON body, regardless of outcome, so clients enumerate successes
// and failures through a single code path.
type Result struct {
	ParseErrors   []string     `json:"parse_errors"`
	ItemsAdded    []RowOutcome `json:"items_added"`
	ItemsNotAdded []RowOutcome `json:"items_not_added"`
}

func newResult() *Result {
	return &Result{
		ParseErrors:   []string{},
		ItemsAdded:    []RowOutcome{},
		ItemsNotAdded: []RowOutcome{},
	}
}

// Status computes the aggregate HTTP status for the batch. Precedence:
// any parse error means 400; all rows added means 200; everything else,
// including the all-failed case, means 207.
func (r *Result) Status() int {
	switch {
	case len(r.ParseErrors) > 0:
		return http.StatusBadRequest
	case len(r.ItemsAdded) > 0 && len(r.ItemsNotAdded) == 0:
		return http.StatusOK
	default:
		return http.StatusMultiStatus
	}
}

// Importer applies an uploaded CSV of lender rows against the store,
// one row at a time.
type Importer struct {
	repo lender.Repository
}

// NewImporter creates an import engine over the given repository.
func NewImporter(repo lender.Repository) *Importer {
	return &Importer{repo: repo}
}

// Run consumes the entire request body as UTF-8 CSV text with a header row
// and processes the data rows strictly in file order. A whole-file failure
// (bad encoding, no columns, malformed CSV) is recorded once in ParseErrors
// and no rows are attempted. Row-level failures never abort the batch, and
// rows committed before a later failure stay committed.
func (imp *Importer) Run(ctx context.Context, body []byte) *Result {
	result := newResult()

	if !utf8.Valid(body) {
		result.ParseErrors = append(result.ParseErrors, "cannot decode request body as UTF-8")
		return result
	}

	records, err := parseCSV(body)
	if err != nil {
		result.ParseErrors = append(result.ParseErrors, err.Error())
		return result
	}
	if len(records) == 0 {
		result.ParseErrors = append(result.ParseErrors, "no columns to parse from file")
		return result
	}

	headerIdx := makeHeaderIndex(records[0])

	for _, row := range records[1:] {
		values := make(map[string]string, len(importColumns))
		for _, col := range importColumns {
			if pos, ok := headerIdx[col]; ok && pos < len(row) {
				values[col] = row[pos]
			}
		}

		cand, err := lender.ParseRow(values)
		if err != nil {
			result.ItemsNotAdded = append(result.ItemsNotAdded, failedOutcome(cand, values["name"], err))
			continue
		}

		created, err := imp.repo.Create(ctx, cand.CreateInput())
		if err != nil {
			result.ItemsNotAdded = append(result.ItemsNotAdded, failedOutcome(cand, values["name"], err))
			continue
		}

		result.ItemsAdded = append(result.ItemsAdded, RowOutcome{Item: created})
	}

	return result
}

// failedOutcome reports a rejected row with the best item representation
// available: the candidate's full field set when one could be built, else
// the raw name cell.
func failedOutcome(cand *lender.Candidate, rawName string, err error) RowOutcome {
	msg := err.Error()
	if cand != nil {
		return RowOutcome{Item: cand, Exception: &msg}
	}
	return RowOutcome{Item: rawName, Exception: &msg}
}

func parseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

// makeHeaderIndex maps cleaned, lower-cased header names to positions.
func makeHeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(cleanCell(name))
		if name == "" {
			continue
		}
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}
	return idx
}

// cleanCell trims surrounding whitespace and a UTF-8 BOM.
func cleanCell(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.TrimSpace(s)
}
