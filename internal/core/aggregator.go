package core

// aggregator.go collects row validation failures for a single import run.
//
// The aggregator owns three sets keyed by RowIndex:
//   - invalid rows and the failure codes attached to each of them
//   - rows forced out of the run once termination latched
//   - rows seen so far, used by percentage based policies
//
// Termination is decided by a TerminationPolicy. Once the policy reports a
// breach the aggregator latches and HasToBeTerminated stays true for the rest
// of the run, even if a percentage later drops back under the limit.

import (
	"sort"
)

// ErrorStats is the aggregate view a TerminationPolicy decides on.
type ErrorStats struct {
	InvalidRows   int
	Failures      int
	ProcessedRows int
}

// TerminationPolicy decides whether accumulated errors must stop the run.
type TerminationPolicy interface {
	Breached(stats ErrorStats) bool
}

// PolicyFunc adapts a function to TerminationPolicy.
type PolicyFunc func(ErrorStats) bool

// Breached implements TerminationPolicy.
func (f PolicyFunc) Breached(stats ErrorStats) bool { return f(stats) }

// NeverTerminate never stops a run.
var NeverTerminate TerminationPolicy = PolicyFunc(func(ErrorStats) bool { return false })

// MaxInvalidRows terminates once more than limit rows are invalid.
// A limit of 0 terminates on the first invalid row.
func MaxInvalidRows(limit int) TerminationPolicy {
	return PolicyFunc(func(s ErrorStats) bool {
		return s.InvalidRows > limit
	})
}

// MaxInvalidPercent terminates once the share of invalid rows exceeds percent.
// The ratio is only evaluated after minRows rows have been processed so the
// first few bad rows of a file cannot trip it on their own.
func MaxInvalidPercent(percent float64, minRows int) TerminationPolicy {
	return PolicyFunc(func(s ErrorStats) bool {
		if percent <= 0 || s.ProcessedRows == 0 || s.ProcessedRows < minRows {
			return false
		}
		return float64(s.InvalidRows)*100/float64(s.ProcessedRows) > percent
	})
}

// AnyOf terminates as soon as one of the policies is breached.
func AnyOf(policies ...TerminationPolicy) TerminationPolicy {
	return PolicyFunc(func(s ErrorStats) bool {
		for _, p := range policies {
			if p != nil && p.Breached(s) {
				return true
			}
		}
		return false
	})
}

// ValidationStrategy mirrors the two strategies offered to operators.
type ValidationStrategy string

const (
	StrategySkipErrors  ValidationStrategy = "skip-errors"
	StrategyStopOnError ValidationStrategy = "stop-on-error"
)

// PolicyFor builds the termination policy for a strategy.
// skip-errors honours the configured ceilings, stop-on-error tolerates no invalid row.
func PolicyFor(strategy ValidationStrategy, maxErrors int, maxPercent float64, minRows int) TerminationPolicy {
	if strategy == StrategyStopOnError {
		return MaxInvalidRows(0)
	}
	var policies []TerminationPolicy
	if maxErrors > 0 {
		policies = append(policies, MaxInvalidRows(maxErrors))
	}
	if maxPercent > 0 {
		policies = append(policies, MaxInvalidPercent(maxPercent, minRows))
	}
	if len(policies) == 0 {
		return NeverTerminate
	}
	return AnyOf(policies...)
}

// ErrorReporter surfaces a row failure for later aggregate reporting.
type ErrorReporter interface {
	AddRowError(code FailureCode, idx RowIndex)
}

// ErrorAggregator collects validation failures per row and decides termination.
// It is owned by one run and is not safe for concurrent use.
type ErrorAggregator struct {
	policy     TerminationPolicy
	invalid    map[RowIndex][]FailureCode
	skipped    map[RowIndex]struct{}
	processed  map[RowIndex]struct{}
	failures   int
	terminated bool
}

// NewErrorAggregator creates an aggregator. A nil policy never terminates.
func NewErrorAggregator(policy TerminationPolicy) *ErrorAggregator {
	if policy == nil {
		policy = NeverTerminate
	}
	return &ErrorAggregator{
		policy:    policy,
		invalid:   make(map[RowIndex][]FailureCode),
		skipped:   make(map[RowIndex]struct{}),
		processed: make(map[RowIndex]struct{}),
	}
}

// RecordFailure attaches code to row idx. Recording the same pair twice is a no-op.
func (a *ErrorAggregator) RecordFailure(idx RowIndex, code FailureCode) {
	for _, c := range a.invalid[idx] {
		if c == code {
			return
		}
	}
	a.invalid[idx] = append(a.invalid[idx], code)
	a.failures++
}

// AddRowError implements ErrorReporter.
func (a *ErrorAggregator) AddRowError(code FailureCode, idx RowIndex) {
	a.RecordFailure(idx, code)
}

// RecordProcessed counts idx towards the processed rows.
func (a *ErrorAggregator) RecordProcessed(idx RowIndex) {
	a.processed[idx] = struct{}{}
}

// IsRowInvalid reports whether any failure is attached to idx.
func (a *ErrorAggregator) IsRowInvalid(idx RowIndex) bool {
	return len(a.invalid[idx]) > 0
}

// RowFailures returns the failure codes attached to idx.
func (a *ErrorAggregator) RowFailures(idx RowIndex) []FailureCode {
	codes := a.invalid[idx]
	out := make([]FailureCode, len(codes))
	copy(out, codes)
	return out
}

// HasToBeTerminated reports whether the error ceiling was breached.
// The answer latches once it becomes true.
func (a *ErrorAggregator) HasToBeTerminated() bool {
	if a.terminated {
		return true
	}
	if a.policy.Breached(a.Stats()) {
		a.terminated = true
	}
	return a.terminated
}

// MarkSkipped records that idx was dropped because the run is terminating.
func (a *ErrorAggregator) MarkSkipped(idx RowIndex) {
	a.skipped[idx] = struct{}{}
}

// IsSkipped reports whether idx was force-skipped.
func (a *ErrorAggregator) IsSkipped(idx RowIndex) bool {
	_, ok := a.skipped[idx]
	return ok
}

// Stats returns the current aggregate counts.
func (a *ErrorAggregator) Stats() ErrorStats {
	return ErrorStats{
		InvalidRows:   len(a.invalid),
		Failures:      a.failures,
		ProcessedRows: len(a.processed),
	}
}

// InvalidRowCount returns the number of rows with at least one failure.
func (a *ErrorAggregator) InvalidRowCount() int { return len(a.invalid) }

// ProcessedRowCount returns the number of rows seen so far.
func (a *ErrorAggregator) ProcessedRowCount() int { return len(a.processed) }

// FailureCount returns the number of (row, code) pairs recorded.
func (a *ErrorAggregator) FailureCount() int { return a.failures }

// Failures returns every recorded failure ordered by row, then by recording order.
func (a *ErrorAggregator) Failures() []ValidationFailure {
	rows := make([]RowIndex, 0, len(a.invalid))
	for idx := range a.invalid {
		rows = append(rows, idx)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })

	out := make([]ValidationFailure, 0, a.failures)
	for _, idx := range rows {
		for _, code := range a.invalid[idx] {
			out = append(out, ValidationFailure{Row: idx, Code: code})
		}
	}
	return out
}

// CountsByCode returns the number of failures per code.
func (a *ErrorAggregator) CountsByCode() map[FailureCode]int {
	counts := make(map[FailureCode]int)
	for _, codes := range a.invalid {
		for _, code := range codes {
			counts[code]++
		}
	}
	return counts
}

// Skipped returns the force-skipped rows in ascending order.
func (a *ErrorAggregator) Skipped() []RowIndex {
	out := make([]RowIndex, 0, len(a.skipped))
	for idx := range a.skipped {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
