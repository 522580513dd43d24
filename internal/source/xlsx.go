package source

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/PriceImport/internal/core"
)

// XLSXSource streams one worksheet of a workbook in bunches.
type XLSXSource struct {
	file      *excelize.File
	rows      *excelize.Rows
	columns   core.ColumnSet
	bunchSize int

	header  core.HeaderIndex
	started bool
	done    bool
	next    core.RowIndex
	line    int // sheet row of the last record read
}

// NewXLSXSource opens the workbook in r. An empty sheet selects the first one.
func NewXLSXSource(r io.Reader, sheet string, columns core.ColumnSet, size int) (*XLSXSource, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}

	if sheet == "" {
		if f.SheetCount < 1 {
			f.Close()
			return nil, ErrEmptyFile
		}
		sheet = f.GetSheetName(0)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	return &XLSXSource{
		file:      f,
		rows:      rows,
		columns:   columnsOrDefault(columns),
		bunchSize: bunchSize(size),
	}, nil
}

// NextBunch implements core.BunchSource.
func (s *XLSXSource) NextBunch(ctx context.Context) (core.Bunch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.started {
		s.started = true
		if err := s.readHeader(); err != nil {
			s.done = true
			return nil, err
		}
	}
	if s.done {
		return nil, nil
	}

	bunch := make(core.Bunch, 0, s.bunchSize)
	for len(bunch) < s.bunchSize {
		if !s.rows.Next() {
			s.done = true
			if err := s.rows.Error(); err != nil {
				return nil, fmt.Errorf("read xlsx row: %w", err)
			}
			break
		}
		s.line++
		record, err := s.rows.Columns()
		if err != nil {
			s.done = true
			return nil, fmt.Errorf("read xlsx row %d: %w", s.line, err)
		}
		if isBlankRecord(record) {
			continue
		}

		bunch = append(bunch, core.IndexedRow{Index: s.next, Row: core.RowFromRecord(record, s.header), Line: s.line})
		s.next++
	}
	return bunch, nil
}

func (s *XLSXSource) readHeader() error {
	for s.rows.Next() {
		s.line++
		record, err := s.rows.Columns()
		if err != nil {
			return fmt.Errorf("read xlsx header: %w", err)
		}
		if isBlankRecord(record) {
			continue
		}
		idx, err := core.ValidateHeaders(record, s.columns)
		if err != nil {
			return err
		}
		s.header = idx
		return nil
	}
	if err := s.rows.Error(); err != nil {
		return fmt.Errorf("read xlsx header: %w", err)
	}
	return ErrEmptyFile
}

// Close releases the row iterator and the workbook's temp files.
func (s *XLSXSource) Close() error {
	rowsErr := s.rows.Close()
	if err := s.file.Close(); err != nil {
		return err
	}
	return rowsErr
}
