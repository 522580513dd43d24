package core

import (
	"context"
	"time"
)

// ImportStatus is the final state recorded for a run.
type ImportStatus string

const (
	StatusRunning   ImportStatus = "running"
	StatusCompleted ImportStatus = "completed"
	StatusFailed    ImportStatus = "failed"
	StatusCancelled ImportStatus = "cancelled"
)

// HistoryEntry is one persisted import run.
type HistoryEntry struct {
	ID            string       `json:"id"`
	FileName      string       `json:"file_name"`
	Behavior      Behavior     `json:"behavior"`
	Scoped        bool         `json:"scoped"`
	DryRun        bool         `json:"dry_run"`
	Status        ImportStatus `json:"status"`
	RowsProcessed int          `json:"rows_processed"`
	ItemsCreated  int          `json:"items_created"`
	ItemsUpdated  int          `json:"items_updated"`
	ErrorCount    int          `json:"error_count"`
	Message       string       `json:"message,omitempty"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    *time.Time   `json:"finished_at,omitempty"`
	Summary       *Summary     `json:"summary,omitempty"`
}

// HistoryRecorder persists import runs.
type HistoryRecorder interface {
	RecordImport(ctx context.Context, entry HistoryEntry) error
	RecentImports(ctx context.Context, limit int) ([]HistoryEntry, error)
}

// NopHistory discards entries. Used when no database is configured.
type NopHistory struct{}

func (NopHistory) RecordImport(context.Context, HistoryEntry) error { return nil }

func (NopHistory) RecentImports(context.Context, int) ([]HistoryEntry, error) { return nil, nil }

// NewHistoryEntry builds the entry for a finished run.
func NewHistoryEntry(id, fileName string, scoped bool, started time.Time, summary Summary, runErr error) HistoryEntry {
	finished := started.Add(summary.Duration)
	entry := HistoryEntry{
		ID:            id,
		FileName:      fileName,
		Behavior:      summary.Behavior,
		Scoped:        scoped,
		DryRun:        summary.DryRun,
		Status:        StatusCompleted,
		RowsProcessed: summary.RowsProcessed,
		ItemsCreated:  summary.ItemsCreated,
		ItemsUpdated:  summary.ItemsUpdated,
		ErrorCount:    summary.ErrorCount(),
		StartedAt:     started,
		FinishedAt:    &finished,
		Summary:       &summary,
	}
	switch {
	case runErr == nil:
	case isCancellation(runErr):
		entry.Status = StatusCancelled
		entry.Message = FormatUserError(runErr)
	default:
		entry.Status = StatusFailed
		entry.Message = FormatUserError(runErr)
	}
	return entry
}
