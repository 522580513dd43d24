package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/PriceImport/internal/core"
)

// CSVSource streams a CSV file in bunches.
type CSVSource struct {
	reader    *csv.Reader
	columns   core.ColumnSet
	bunchSize int

	header  core.HeaderIndex
	started bool
	done    bool
	next    core.RowIndex

	counter *CountingReader // nil when the input size is unknown
}

// NewCSVSource reads CSV from r. The first non-blank record is the header.
func NewCSVSource(r io.Reader, columns core.ColumnSet, size int) *CSVSource {
	cr := csv.NewReader(NewTextReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	return &CSVSource{
		reader:    cr,
		columns:   columnsOrDefault(columns),
		bunchSize: bunchSize(size),
	}
}

// Percent implements core.PercentReporter. It is 0 when the input size is unknown.
func (s *CSVSource) Percent() int {
	if s.counter == nil {
		return 0
	}
	return s.counter.Percent()
}

// NextBunch implements core.BunchSource.
func (s *CSVSource) NextBunch(ctx context.Context) (core.Bunch, error) {
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
		record, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.done = true
			break
		}
		if err != nil {
			s.done = true
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if isBlankRecord(record) {
			continue
		}

		line, _ := s.reader.FieldPos(0)
		bunch = append(bunch, core.IndexedRow{Index: s.next, Row: core.RowFromRecord(record, s.header), Line: line})
		s.next++
	}
	return bunch, nil
}

func (s *CSVSource) readHeader() error {
	for {
		record, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			return ErrEmptyFile
		}
		if err != nil {
			return fmt.Errorf("invalid csv: header: %w", err)
		}
		if isBlankRecord(record) {
			continue
		}

		header := make([]string, len(record))
		copy(header, record)
		idx, err := core.ValidateHeaders(header, s.columns)
		if err != nil {
			return err
		}
		s.header = idx
		return nil
	}
}
