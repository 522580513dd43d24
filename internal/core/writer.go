package core

// writer.go persists a grouped bunch through the product repository.
//
// Each entry is resolved by sku and then patched with a single
// updateAttributes call scoped to its store, or saved whole when the
// write style is save. A missing product is skipped
// silently. Any other failure is logged at critical level and recorded as
// an outcome for that row; the remaining rows are still written.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/PriceImport/internal/logging"
)

// ErrNotFound is returned by a Repository when no product has the sku.
var ErrNotFound = errors.New("product not found")

// Repository is the product store the import writes through.
type Repository interface {
	// GetBySKU resolves a product in the given store scope. Returns ErrNotFound when absent.
	GetBySKU(ctx context.Context, sku string, store StoreID) (*Product, error)

	// UpdateAttributes patches attrs on every product in ids within store.
	UpdateAttributes(ctx context.Context, ids []int64, attrs map[string]any, store StoreID) error
}

// EntitySaver is implemented by repositories that can persist a whole product.
type EntitySaver interface {
	Save(ctx context.Context, p *Product) error
}

// EntityWriter persists one EntityGroup.
type EntityWriter interface {
	WriteAll(ctx context.Context, group *EntityGroup) WriteReport
}

// OutcomeKind classifies what happened to one row during a write pass.
type OutcomeKind int

const (
	OutcomeWritten OutcomeKind = iota
	OutcomeNotFound
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeWritten:
		return "written"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// WriteOutcome is the result of writing one grouped row.
type WriteOutcome struct {
	Index      RowIndex
	SKU        string
	Store      StoreID
	Kind       OutcomeKind
	Err        error
	KeyPresent bool
}

// WriteReport collects the outcomes of one WriteAll call.
type WriteReport struct {
	// Attempted is true iff the group held at least one entry.
	Attempted bool
	Outcomes  []WriteOutcome
}

// Count returns the number of outcomes of kind k.
func (r WriteReport) Count(k OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == k {
			n++
		}
	}
	return n
}

// WriteStyle selects how a resolved product is persisted.
type WriteStyle int

const (
	// WritePatch issues a scoped UpdateAttributes call.
	WritePatch WriteStyle = iota
	// WriteSave stores the whole product through EntitySaver.
	WriteSave
)

// ParseWriteStyle converts "patch" or "save" into a WriteStyle.
// The empty string maps to patch.
func ParseWriteStyle(s string) (WriteStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "patch":
		return WritePatch, nil
	case "save":
		return WriteSave, nil
	default:
		return WritePatch, fmt.Errorf("unknown write style %q (use patch or save)", s)
	}
}

// RepositoryWriter is the EntityWriter backed by a Repository.
type RepositoryWriter struct {
	repo   Repository
	style  WriteStyle
	logger *slog.Logger
}

// WriterOption configures a RepositoryWriter.
type WriterOption func(*RepositoryWriter)

// WithWriteStyle selects patch or save persistence. Save falls back to patch
// when the repository does not implement EntitySaver.
func WithWriteStyle(style WriteStyle) WriterOption {
	return func(w *RepositoryWriter) { w.style = style }
}

// WithWriterLogger sets the logger used for critical write failures.
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(w *RepositoryWriter) { w.logger = l }
}

// NewRepositoryWriter creates a writer over repo.
func NewRepositoryWriter(repo Repository, opts ...WriterOption) *RepositoryWriter {
	w := &RepositoryWriter{repo: repo, style: WritePatch}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteAll writes every entry of group in group order.
func (w *RepositoryWriter) WriteAll(ctx context.Context, group *EntityGroup) WriteReport {
	report := WriteReport{}
	if group == nil || group.Empty() {
		return report
	}
	report.Attempted = true
	report.Outcomes = make([]WriteOutcome, 0, group.Len())

	group.Each(func(sku string, e GroupEntry) bool {
		report.Outcomes = append(report.Outcomes, w.writeOne(ctx, sku, e))
		return true
	})
	return report
}

func (w *RepositoryWriter) writeOne(ctx context.Context, sku string, e GroupEntry) WriteOutcome {
	out := WriteOutcome{Index: e.Index, SKU: sku, KeyPresent: e.KeyPresent}

	store, err := ParseStoreID(e.Values[ColumnStoreID])
	if err != nil {
		return w.fail(ctx, out, "parse store id", err)
	}
	out.Store = store

	price, err := NormalizePrice(e.Values[ColumnPrice])
	if err != nil {
		return w.fail(ctx, out, "parse price", err)
	}

	product, err := w.Resolve(ctx, sku, store)
	if errors.Is(err, ErrNotFound) {
		out.Kind = OutcomeNotFound
		return out
	}
	if err != nil {
		return w.fail(ctx, out, "resolve product", err)
	}

	if err := w.ApplyUpdate(ctx, product, price, store); err != nil {
		return w.fail(ctx, out, "update price", err)
	}

	out.Kind = OutcomeWritten
	return out
}

// Resolve looks up the product a row refers to.
func (w *RepositoryWriter) Resolve(ctx context.Context, sku string, store StoreID) (*Product, error) {
	return w.repo.GetBySKU(ctx, sku, store)
}

// ApplyUpdate sets price on p within store.
func (w *RepositoryWriter) ApplyUpdate(ctx context.Context, p *Product, price string, store StoreID) error {
	if saver, ok := w.repo.(EntitySaver); ok && w.style == WriteSave {
		updated := *p
		updated.Price = price
		updated.StoreID = store
		return saver.Save(ctx, &updated)
	}
	return w.repo.UpdateAttributes(ctx, []int64{p.ID}, map[string]any{ColumnPrice: price}, store)
}

func (w *RepositoryWriter) fail(ctx context.Context, out WriteOutcome, step string, err error) WriteOutcome {
	logging.Critical(ctx, w.logger, "price import write failed",
		"step", step,
		"row", int(out.Index),
		"sku", out.SKU,
		"store_id", int64(out.Store),
		"error", err,
	)
	out.Kind = OutcomeFailed
	out.Err = err
	return out
}
