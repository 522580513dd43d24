package core

// validation.go provides header and row level validation for price rows.
//
// Validation happens at two levels:
//  1. Header validation: the source must carry every required column
//  2. Row validation: every required column must hold a non-blank value
//
// Row validation never short-circuits. A row missing both sku and price
// reports both failures, so the import report shows every problem at once.

import (
	"fmt"
	"strings"
)

// requiredChecks maps a column to the failure code reported when it is blank.
var requiredChecks = []struct {
	column string
	code   FailureCode
}{
	{ColumnSKU, SkuMissing},
	{ColumnPrice, PriceMissing},
	{ColumnStoreID, StoreIDMissing},
}

// RowValidator checks required-field presence and registers failures with an ErrorReporter.
type RowValidator struct {
	columns   ColumnSet
	reporter  ErrorReporter
	aggregate *ErrorAggregator
	evaluated map[RowIndex]struct{}
}

// NewRowValidator creates a validator for the given column variant.
// Failures are registered with errs, which also answers the validity question.
func NewRowValidator(columns ColumnSet, errs *ErrorAggregator) *RowValidator {
	return &RowValidator{
		columns:   columns,
		reporter:  errs,
		aggregate: errs,
		evaluated: make(map[RowIndex]struct{}),
	}
}

// Validate checks row and returns true iff idx carries no failure.
// A second call for an index already evaluated returns the current state
// without registering anything again.
func (v *RowValidator) Validate(row Row, idx RowIndex) bool {
	if _, seen := v.evaluated[idx]; seen {
		return !v.aggregate.IsRowInvalid(idx)
	}
	v.evaluated[idx] = struct{}{}

	for _, code := range MissingColumns(row, v.columns) {
		v.reporter.AddRowError(code, idx)
	}

	return !v.aggregate.IsRowInvalid(idx)
}

// Evaluated reports whether idx went through Validate already.
func (v *RowValidator) Evaluated(idx RowIndex) bool {
	_, ok := v.evaluated[idx]
	return ok
}

// MissingColumns returns the failure code of every required column that is
// absent or blank in row. store_id is only required by the scoped variant.
func MissingColumns(row Row, columns ColumnSet) []FailureCode {
	var codes []FailureCode
	for _, check := range requiredChecks {
		if !columns.Has(check.column) {
			continue
		}
		if !row.Has(check.column) {
			codes = append(codes, check.code)
		}
	}
	return codes
}

// HeaderIndex maps normalized column names to their position in a source row.
type HeaderIndex map[string]int

// MakeHeaderIndex builds a HeaderIndex from a header row.
// Names are cleaned and lowercased; a trailing " *" marker from templates is dropped.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := NormalizeHeader(h)
		if key == "" {
			continue
		}
		if _, dup := idx[key]; dup {
			continue
		}
		idx[key] = i
	}
	return idx
}

// NormalizeHeader returns the canonical form of a header cell.
func NormalizeHeader(h string) string {
	h = strings.ToLower(CleanCell(h))
	h = strings.TrimSuffix(h, " *")
	return strings.TrimSpace(h)
}

// ValidateHeaders checks that all columns of the set exist in the header.
// Returns a mapping from column name to index, or an error listing missing columns.
func ValidateHeaders(header []string, columns ColumnSet) (HeaderIndex, error) {
	idx := MakeHeaderIndex(header)
	var missing []string

	for _, col := range columns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	return idx, nil
}

// RowFromRecord builds a Row from a positional record using idx.
// Columns beyond the end of a short record are left out of the row.
func RowFromRecord(record []string, idx HeaderIndex) Row {
	row := make(Row, len(idx))
	for name, pos := range idx {
		if pos < len(record) {
			row[name] = CleanCell(record[pos])
		}
	}
	return row
}
