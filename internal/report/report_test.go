package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/PriceImport/internal/core"
	"github.com/JonMunkholm/PriceImport/internal/source"
)

func sampleSummary() core.Summary {
	return core.Summary{
		Failures: []core.ValidationFailure{
			{Row: 4, Code: core.PriceMissing},
			{Row: 1, Code: core.SkuMissing},
		},
		Skipped: []core.RowIndex{4, 5},
	}
}

func TestLines(t *testing.T) {
	lines := Lines(sampleSummary())

	assert.Equal(t, []Line{
		{Row: 1, Line: 3, Code: "SkuIsRequired", Message: "The SKU is required."},
		{Row: 4, Line: 6, Code: "PriceIsRequired", Message: "The price is required."},
		{Row: 5, Line: 7, Code: SkippedCode, Message: "Row skipped because the error limit was reached."},
	}, lines)
}

func TestLines_SourceLines(t *testing.T) {
	data := "sku,price\n\nA1,1\n\n\n,2\n\"B\nC\",3\n,4\n"
	src := source.NewCSVSource(strings.NewReader(data), core.UnscopedColumns, 2)
	imp := core.NewBatchImporter(src, nil, core.ImporterOptions{DryRun: true})

	summary, err := imp.Run(context.Background())
	require.NoError(t, err)

	lines := Lines(summary)
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[0].Row)
	assert.Equal(t, 6, lines[0].Line)
	assert.Equal(t, 3, lines[1].Row)
	assert.Equal(t, 9, lines[1].Line)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, Lines(sampleSummary())))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, []string{"1", "3", "SkuIsRequired", "The SKU is required."}, records[1])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, Lines(sampleSummary())))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"5", "7", SkippedCode, "Row skipped because the error limit was reached."}, rows[3])
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{"xlsx", FormatXLSX, false},
		{"excel", FormatXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownFormat, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	assert.Equal(t, "price_import_errors_3f1d7f8e.xlsx", FormatXLSX.FileName("3f1d7f8e-8a4c-4c56"))
	assert.Equal(t, "text/csv", FormatCSV.ContentType())
}
