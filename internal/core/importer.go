package core

// importer.go drives one streaming import run.
//
// The importer pulls bunches from a BunchSource one at a time and walks each
// bunch through validation, grouping and writing before asking for the next:
//
//	Idle -> Streaming -> (Validating -> Grouping -> Writing)* -> Done
//
// Memory stays O(bunch size). Row level problems never abort the run; only a
// source failure or a cancelled context does.

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"
)

// ImporterOptions configures a BatchImporter.
type ImporterOptions struct {
	Behavior Behavior
	Columns  ColumnSet
	Policy   TerminationPolicy

	// DryRun validates and groups every bunch without writing.
	DryRun bool

	Logger     *slog.Logger
	OnProgress ProgressCallback
}

// BatchImporter runs a single import. It is not reusable.
type BatchImporter struct {
	source    BunchSource
	writer    EntityWriter
	opts      ImporterOptions
	errs      *ErrorAggregator
	validator *RowValidator

	mu       sync.RWMutex
	state    ImportState
	counters ImportCounters
	bunches  int

	notFound      int
	writeFailures int
	lines         map[RowIndex]int
}

// NewBatchImporter wires a source and writer into a run.
// Columns defaults to the unscoped set and Behavior to append.
func NewBatchImporter(source BunchSource, writer EntityWriter, opts ImporterOptions) *BatchImporter {
	if len(opts.Columns) == 0 {
		opts.Columns = UnscopedColumns
	}
	if opts.Behavior == "" {
		opts.Behavior = BehaviorAppend
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	errs := NewErrorAggregator(opts.Policy)
	return &BatchImporter{
		source:    source,
		writer:    writer,
		opts:      opts,
		errs:      errs,
		validator: NewRowValidator(opts.Columns, errs),
		state:     StateIdle,
		lines:     make(map[RowIndex]int),
	}
}

// State returns the current stage of the run.
func (b *BatchImporter) State() ImportState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Counters returns the created/updated totals so far.
func (b *BatchImporter) Counters() ImportCounters {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counters
}

// Errors exposes the run's aggregator for reporting once Run has returned.
func (b *BatchImporter) Errors() *ErrorAggregator { return b.errs }

// Run executes the import and returns its summary.
// The error is non-nil only when the source fails or ctx is cancelled; the
// summary then reflects everything processed up to that point.
func (b *BatchImporter) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	logger := b.opts.Logger.With("behavior", string(b.opts.Behavior), "dry_run", b.opts.DryRun)

	if b.opts.Behavior == BehaviorDelete {
		// Deleting through an import is not supported. The run succeeds without reading.
		logger.Info("delete behavior requested, nothing to do")
		b.setState(StateDone)
		return b.summary(start, true), nil
	}

	b.setState(StateStreaming)
	for {
		if err := ctx.Err(); err != nil {
			b.setState(StateFailed)
			return b.summary(start, false), fmt.Errorf("import cancelled: %w", err)
		}

		bunch, err := b.source.NextBunch(ctx)
		if err != nil {
			b.setState(StateFailed)
			return b.summary(start, false), fmt.Errorf("read bunch %d: %w", b.bunchCount()+1, err)
		}
		if len(bunch) == 0 {
			break
		}

		b.processBunch(ctx, bunch, logger)
		b.setState(StateStreaming)
	}

	b.setState(StateDone)
	summary := b.summary(start, true)
	logger.Info("price import finished",
		"bunches", summary.Bunches,
		"rows", summary.RowsProcessed,
		"updated", summary.ItemsUpdated,
		"created", summary.ItemsCreated,
		"invalid_rows", b.errs.InvalidRowCount(),
		"skipped", len(summary.Skipped),
		"terminated", summary.Terminated,
	)
	return summary, nil
}

func (b *BatchImporter) processBunch(ctx context.Context, bunch Bunch, logger *slog.Logger) {
	b.setState(StateValidating)

	// The aggregator is shared with Progress readers, so it is only touched under mu.
	b.mu.Lock()
	b.bunches++
	survivors := make([]IndexedRow, 0, len(bunch))
	for _, ir := range bunch {
		b.errs.RecordProcessed(ir.Index)
		valid := b.validator.Validate(ir.Row, ir.Index)

		if b.errs.HasToBeTerminated() {
			b.errs.MarkSkipped(ir.Index)
			b.recordLine(ir)
			continue
		}
		if !valid {
			b.recordLine(ir)
			continue
		}
		survivors = append(survivors, ir)
	}
	b.mu.Unlock()

	b.setState(StateGrouping)
	group := NewEntityGroup()
	for _, ir := range survivors {
		sku, _ := ir.Row.Value(ColumnSKU)
		_, keyPresent := ir.Row[ColumnSKU]
		entry := GroupEntry{
			Index:      ir.Index,
			Values:     b.opts.Columns.Project(ir.Row),
			KeyPresent: keyPresent,
		}
		if err := group.Add(sku, entry); err != nil {
			logger.Warn("row dropped from group", "row", int(ir.Index), "error", err)
		}
	}

	if !b.opts.DryRun {
		b.setState(StateWriting)
		report := b.writer.WriteAll(ctx, group)
		b.apply(report)
	}

	logger.Debug("bunch processed",
		"bunch", b.bunchCount(),
		"rows", len(bunch),
		"grouped", group.Len(),
		"keys", len(group.Keys()),
	)
	b.notify()
}

// recordLine keeps the source line of a reported row. Caller holds mu.
func (b *BatchImporter) recordLine(ir IndexedRow) {
	if ir.Line > 0 {
		b.lines[ir.Index] = ir.Line
	}
}

// apply folds writer outcomes into the counters. Only written rows count.
func (b *BatchImporter) apply(report WriteReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range report.Outcomes {
		switch o.Kind {
		case OutcomeWritten:
			if o.KeyPresent {
				b.counters.ItemsUpdated++
			} else {
				b.counters.ItemsCreated++
			}
		case OutcomeNotFound:
			b.notFound++
		case OutcomeFailed:
			b.writeFailures++
		}
	}
}

func (b *BatchImporter) setState(s ImportState) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
	b.notify()
}

func (b *BatchImporter) bunchCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bunches
}

// Progress returns a snapshot of the run.
func (b *BatchImporter) Progress() Progress {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p := Progress{
		State:         b.state,
		Bunches:       b.bunches,
		RowsProcessed: b.errs.ProcessedRowCount(),
		ItemsCreated:  b.counters.ItemsCreated,
		ItemsUpdated:  b.counters.ItemsUpdated,
		InvalidRows:   b.errs.InvalidRowCount(),
		SkippedRows:   len(b.errs.skipped),
	}
	if b.state == StateDone {
		p.Percent = 100
	} else if pr, ok := b.source.(PercentReporter); ok {
		p.Percent = pr.Percent()
	}
	return p
}

func (b *BatchImporter) notify() {
	if b.opts.OnProgress != nil {
		b.opts.OnProgress(b.Progress())
	}
}

func (b *BatchImporter) summary(start time.Time, success bool) Summary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Summary{
		Success:       success,
		Behavior:      b.opts.Behavior,
		DryRun:        b.opts.DryRun,
		Bunches:       b.bunches,
		RowsProcessed: b.errs.ProcessedRowCount(),
		ItemsCreated:  b.counters.ItemsCreated,
		ItemsUpdated:  b.counters.ItemsUpdated,
		NotFound:      b.notFound,
		WriteFailures: b.writeFailures,
		Terminated:    b.errs.terminated,
		Skipped:       b.errs.Skipped(),
		Failures:      b.errs.Failures(),
		FailureCounts: b.errs.CountsByCode(),
		Lines:         maps.Clone(b.lines),
		Duration:      time.Since(start),
	}
}
