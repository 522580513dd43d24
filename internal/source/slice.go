package source

import (
	"context"

	"github.com/JonMunkholm/PriceImport/internal/core"
)

// SliceSource serves in-memory rows in bunches.
type SliceSource struct {
	rows      []core.Row
	bunchSize int
	pos       int
}

// NewSliceSource returns a source over rows. Row i gets stream index i.
func NewSliceSource(rows []core.Row, size int) *SliceSource {
	return &SliceSource{rows: rows, bunchSize: bunchSize(size)}
}

// NextBunch implements core.BunchSource.
func (s *SliceSource) NextBunch(ctx context.Context) (core.Bunch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	end := s.pos + s.bunchSize
	if end > len(s.rows) {
		end = len(s.rows)
	}
	bunch := make(core.Bunch, 0, end-s.pos)
	for ; s.pos < end; s.pos++ {
		bunch = append(bunch, core.IndexedRow{Index: core.RowIndex(s.pos), Row: s.rows[s.pos]})
	}
	return bunch, nil
}

// Close implements Source.
func (s *SliceSource) Close() error { return nil }
