// Package report renders the row errors of an import as a downloadable file.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/PriceImport/internal/core"
)

// Format is an export file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnknownFormat is returned for formats other than csv and xlsx.
var ErrUnknownFormat = errors.New("unsupported format")

// SkippedCode marks rows dropped after the run hit its error ceiling.
const SkippedCode = "Skipped"

const sheetName = "Errors"

// Header is the first row of every export.
var Header = []string{"row", "line", "code", "message"}

// ParseFormat maps a query value to a Format. The empty string is csv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// FileName returns the download name for an import's error report.
func (f Format) FileName(importID string) string {
	if len(importID) > 8 {
		importID = importID[:8]
	}
	return fmt.Sprintf("price_import_errors_%s.%s", importID, f)
}

// Line is one reported problem.
type Line struct {
	Row     int    // zero-based data row index
	Line    int    // file line of the record, 1-based
	Code    string // failure code or SkippedCode
	Message string
}

// Lines flattens a summary into report lines ordered by row.
// Skipped rows that also failed validation are listed once per failure only.
func Lines(s core.Summary) []Line {
	lines := make([]Line, 0, len(s.Failures)+len(s.Skipped))
	failed := make(map[core.RowIndex]bool, len(s.Failures))
	for _, f := range s.Failures {
		failed[f.Row] = true
		lines = append(lines, newLine(s, f.Row, string(f.Code), core.FailureMessage(f.Code).Message))
	}
	for _, idx := range s.Skipped {
		if failed[idx] {
			continue
		}
		lines = append(lines, newLine(s, idx, SkippedCode, "Row skipped because the error limit was reached."))
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Row < lines[j].Row })
	return lines
}

// newLine uses the line the source recorded. Sources that track none are
// assumed to have one header line and no blank lines.
func newLine(s core.Summary, idx core.RowIndex, code, msg string) Line {
	line, ok := s.Lines[idx]
	if !ok {
		line = int(idx) + 2
	}
	return Line{Row: int(idx), Line: line, Code: code, Message: msg}
}

func (l Line) record() []string {
	return []string{strconv.Itoa(l.Row), strconv.Itoa(l.Line), l.Code, l.Message}
}

// Write renders lines to w in format f.
func Write(w io.Writer, f Format, lines []Line) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, lines)
	case FormatXLSX:
		return WriteXLSX(w, lines)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// WriteCSV writes lines as CSV with a header row.
func WriteCSV(w io.Writer, lines []Line) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, l := range lines {
		if err := cw.Write(l.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes lines as a single-sheet workbook with a bold header.
func WriteXLSX(w io.Writer, lines []Line) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "D1", style); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, l := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{l.Row, l.Line, l.Code, l.Message}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", l.Row, err)
		}
	}

	if err := f.SetColWidth(sheetName, "C", "C", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "D", "D", 60); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
