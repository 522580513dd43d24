package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Column names understood by the price import.
const (
	ColumnSKU     = "sku"
	ColumnPrice   = "price"
	ColumnStoreID = "store_id"
)

// RowIndex is the position of a row within the whole import stream.
// Indexes start at 0 and are never reused within a run.
type RowIndex int

// Row maps column names to raw cell values.
type Row map[string]string

// Value returns the trimmed value of a column and whether the column is present.
func (r Row) Value(column string) (string, bool) {
	v, ok := r[column]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Has reports whether the column is present with a non-blank value.
func (r Row) Has(column string) bool {
	v, ok := r.Value(column)
	return ok && v != ""
}

// ColumnSet is the declared whitelist of valid columns for an import variant.
type ColumnSet []string

var (
	// UnscopedColumns updates the global price only.
	UnscopedColumns = ColumnSet{ColumnSKU, ColumnPrice}

	// ScopedColumns requires a store_id on every row.
	ScopedColumns = ColumnSet{ColumnSKU, ColumnPrice, ColumnStoreID}
)

// Columns returns the column set for the scoped or unscoped variant.
func Columns(scoped bool) ColumnSet {
	if scoped {
		return ScopedColumns
	}
	return UnscopedColumns
}

// Has reports whether name is part of the set.
func (c ColumnSet) Has(name string) bool {
	for _, col := range c {
		if col == name {
			return true
		}
	}
	return false
}

// Scoped reports whether the set requires store_id.
func (c ColumnSet) Scoped() bool {
	return c.Has(ColumnStoreID)
}

// Project copies only the whitelisted columns out of row.
// Columns missing from the row are left out.
func (c ColumnSet) Project(row Row) Row {
	out := make(Row, len(c))
	for _, col := range c {
		if v, ok := row.Value(col); ok {
			out[col] = v
		}
	}
	return out
}

// FailureCode identifies why a row failed validation.
type FailureCode string

const (
	SkuMissing     FailureCode = "SkuIsRequired"
	PriceMissing   FailureCode = "PriceIsRequired"
	StoreIDMissing FailureCode = "StoreIdIsRequired"
)

// ValidationFailure ties a failure code to the row that produced it.
type ValidationFailure struct {
	Row  RowIndex    `json:"row"`
	Code FailureCode `json:"code"`
}

// IndexedRow is one entry of a bunch.
type IndexedRow struct {
	Index RowIndex
	Row   Row
	// Line is the 1-based line or sheet row the record starts on. Zero when unknown.
	Line int
}

// Bunch is a bounded, ordered batch of rows pulled from a source in one call.
type Bunch []IndexedRow

// BunchSource supplies the next bunch of rows. An empty bunch signals the end of data.
type BunchSource interface {
	NextBunch(ctx context.Context) (Bunch, error)
}

// PercentReporter is implemented by sources that know how much of their input was read.
type PercentReporter interface {
	Percent() int
}

// StoreID is the secondary scope of a price update. Zero is the global scope.
type StoreID int64

// GlobalStore is the unscoped default store.
const GlobalStore StoreID = 0

// Product is the catalog entity the import updates.
type Product struct {
	ID      int64
	SKU     string
	Price   string
	StoreID StoreID
}

// Behavior selects how the import treats existing entities.
type Behavior string

const (
	BehaviorAppend  Behavior = "append"
	BehaviorReplace Behavior = "replace"
	BehaviorDelete  Behavior = "delete"
)

// ParseBehavior converts a user supplied string into a Behavior.
// The empty string maps to append.
func ParseBehavior(s string) (Behavior, error) {
	switch Behavior(strings.ToLower(strings.TrimSpace(s))) {
	case "", BehaviorAppend, "add_update":
		return BehaviorAppend, nil
	case BehaviorReplace:
		return BehaviorReplace, nil
	case BehaviorDelete:
		return BehaviorDelete, nil
	default:
		return "", fmt.Errorf("unknown behavior %q (use append, replace or delete)", s)
	}
}

// ImportState is the current stage of a BatchImporter run.
type ImportState string

const (
	StateIdle       ImportState = "idle"
	StateStreaming  ImportState = "streaming"
	StateValidating ImportState = "validating"
	StateGrouping   ImportState = "grouping"
	StateWriting    ImportState = "writing"
	StateDone       ImportState = "done"
	StateFailed     ImportState = "failed"
)

// ImportCounters are the running totals of a run.
type ImportCounters struct {
	ItemsCreated int `json:"items_created"`
	ItemsUpdated int `json:"items_updated"`
}

// Progress is a snapshot of a running import.
type Progress struct {
	State         ImportState `json:"state"`
	Bunches       int         `json:"bunches"`
	RowsProcessed int         `json:"rows_processed"`
	ItemsCreated  int         `json:"items_created"`
	ItemsUpdated  int         `json:"items_updated"`
	InvalidRows   int         `json:"invalid_rows"`
	SkippedRows   int         `json:"skipped_rows"`
	Percent       int         `json:"percent"`
}

// ProgressCallback is called after every bunch and on state changes.
type ProgressCallback func(Progress)

// Summary is the end-of-run import report.
type Summary struct {
	Success       bool                `json:"success"`
	Behavior      Behavior            `json:"behavior"`
	DryRun        bool                `json:"dry_run,omitempty"`
	Bunches       int                 `json:"bunches"`
	RowsProcessed int                 `json:"rows_processed"`
	ItemsCreated  int                 `json:"items_created"`
	ItemsUpdated  int                 `json:"items_updated"`
	NotFound      int                 `json:"not_found"`
	WriteFailures int                 `json:"write_failures"`
	Terminated    bool                `json:"terminated"`
	Skipped       []RowIndex          `json:"skipped,omitempty"`
	Failures      []ValidationFailure `json:"failures,omitempty"`
	FailureCounts map[FailureCode]int `json:"failure_counts,omitempty"`
	Lines         map[RowIndex]int    `json:"lines,omitempty"` // source line of failed and skipped rows
	Duration      time.Duration       `json:"duration"`
}

// ErrorCount returns the number of recorded validation failures.
func (s Summary) ErrorCount() int {
	return len(s.Failures)
}
