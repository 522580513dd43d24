package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/PriceImport/internal/core"
)

// HistoryStore persists import runs in import_history.
type HistoryStore struct {
	db DBTX
}

// NewHistoryStore returns a history store over db.
func NewHistoryStore(db DBTX) *HistoryStore {
	return &HistoryStore{db: db}
}

const upsertHistory = `
INSERT INTO import_history (
    id, file_name, behavior, scoped, dry_run, status, rows_processed,
    items_created, items_updated, error_count, message, started_at, finished_at, summary
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    rows_processed = EXCLUDED.rows_processed,
    items_created = EXCLUDED.items_created,
    items_updated = EXCLUDED.items_updated,
    error_count = EXCLUDED.error_count,
    message = EXCLUDED.message,
    finished_at = EXCLUDED.finished_at,
    summary = EXCLUDED.summary`

// RecordImport implements core.HistoryRecorder. Recording the same id twice updates the row.
func (h *HistoryStore) RecordImport(ctx context.Context, e core.HistoryEntry) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("history id %q: %w", e.ID, err)
	}

	var summary []byte
	if e.Summary != nil {
		if summary, err = json.Marshal(e.Summary); err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
	}

	_, err = h.db.Exec(ctx, upsertHistory,
		pgtype.UUID{Bytes: id, Valid: true},
		e.FileName,
		string(e.Behavior),
		e.Scoped,
		e.DryRun,
		string(e.Status),
		e.RowsProcessed,
		e.ItemsCreated,
		e.ItemsUpdated,
		e.ErrorCount,
		e.Message,
		pgtype.Timestamptz{Time: e.StartedAt, Valid: true},
		toTimestamptz(e.FinishedAt),
		summary,
	)
	if err != nil {
		return fmt.Errorf("record import %s: %w", e.ID, err)
	}
	return nil
}

const recentHistory = `
SELECT id, file_name, behavior, scoped, dry_run, status, rows_processed,
       items_created, items_updated, error_count, message, started_at, finished_at
FROM import_history
ORDER BY started_at DESC
LIMIT $1`

// RecentImports implements core.HistoryRecorder. Summaries are not loaded.
func (h *HistoryStore) RecentImports(ctx context.Context, limit int) ([]core.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.Query(ctx, recentHistory, limit)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var out []core.HistoryEntry
	for rows.Next() {
		var (
			e        core.HistoryEntry
			id       pgtype.UUID
			behavior string
			status   string
			started  pgtype.Timestamptz
			finished pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &e.FileName, &behavior, &e.Scoped, &e.DryRun, &status,
			&e.RowsProcessed, &e.ItemsCreated, &e.ItemsUpdated, &e.ErrorCount, &e.Message,
			&started, &finished); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		e.ID = uuid.UUID(id.Bytes).String()
		e.Behavior = core.Behavior(behavior)
		e.Status = core.ImportStatus(status)
		e.StartedAt = started.Time
		if finished.Valid {
			t := finished.Time
			e.FinishedAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func toTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
