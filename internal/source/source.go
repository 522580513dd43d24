// Package source provides the bunch sources the price import reads from.
//
// Every source yields rows in file order with 0-based stream indexes and
// checks the header row against the required columns before the first bunch.
// Supported inputs:
//
//   - CSV files, streamed through encoding/csv
//   - XLSX workbooks, streamed row by row through excelize
//   - in-memory rows, for tests and programmatic callers
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/PriceImport/internal/core"
)

// DefaultBunchSize is used when a source is created with a non-positive size.
const DefaultBunchSize = 500

// Format names a supported input format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ErrEmptyFile is returned when a file has no header row.
var ErrEmptyFile = errors.New("empty file")

// ParseFormat converts a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX, "xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q (use csv or xlsx)", ErrUnsupportedFormat, s)
	}
}

// DetectFormat infers the format from a file name's extension.
func DetectFormat(name string) (Format, error) {
	return ParseFormat(filepath.Ext(name))
}

// Options configures a file source.
type Options struct {
	Format    Format // detected from the file name when empty
	Columns   core.ColumnSet
	BunchSize int
	Sheet     string // xlsx only; the first sheet when empty
}

// Source is a BunchSource that owns an open file.
type Source interface {
	core.BunchSource
	Close() error
}

// Open opens path as a bunch source.
func Open(path string, opts Options) (Source, error) {
	format := opts.Format
	if format == "" {
		var err error
		if format, err = DetectFormat(path); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}

	switch format {
	case FormatCSV:
		var size int64
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
		counter := NewCountingReader(f, size)
		src := NewCSVSource(counter, opts.Columns, opts.BunchSize)
		src.counter = counter
		return &fileCSV{CSVSource: src, file: f}, nil
	case FormatXLSX:
		src, err := NewXLSXSource(f, opts.Sheet, opts.Columns, opts.BunchSize)
		f.Close() // excelize has read the whole archive
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		f.Close()
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

type fileCSV struct {
	*CSVSource
	file *os.File
}

func (s *fileCSV) Close() error { return s.file.Close() }

func bunchSize(n int) int {
	if n <= 0 {
		return DefaultBunchSize
	}
	return n
}

func columnsOrDefault(c core.ColumnSet) core.ColumnSet {
	if len(c) == 0 {
		return core.UnscopedColumns
	}
	return c
}

// isBlankRecord reports whether every cell of a record is empty.
func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
