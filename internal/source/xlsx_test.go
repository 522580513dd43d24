package source

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/PriceImport/internal/core"
)

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestXLSXSource_Bunches(t *testing.T) {
	data := workbook(t, [][]any{
		{"sku", "price", "store_id"},
		{"A1", "10.00", 1},
		{"B2", 2.5, 2},
		{"C3", "", 1},
	})

	src, err := NewXLSXSource(bytes.NewReader(data), "", core.ScopedColumns, 2)
	require.NoError(t, err)
	defer src.Close()

	bunches := drain(t, src)
	require.Len(t, bunches, 2)

	assert.Equal(t, core.Row{"sku": "A1", "price": "10.00", "store_id": "1"}, bunches[0][0].Row)
	assert.Equal(t, "2.5", bunches[0][1].Row["price"])
	assert.Equal(t, core.RowIndex(2), bunches[1][0].Index)
	assert.False(t, bunches[1][0].Row.Has("price"))
}

func TestXLSXSource_Lines(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	for cell, row := range map[string][]any{
		"A1": {"sku", "price"},
		"A2": {"A1", 1},
		"A5": {"", 2},
	} {
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	src, err := NewXLSXSource(&buf, "", core.UnscopedColumns, 10)
	require.NoError(t, err)
	defer src.Close()

	bunches := drain(t, src)
	require.Len(t, bunches, 1)
	require.Len(t, bunches[0], 2)
	assert.Equal(t, 2, bunches[0][0].Line)
	assert.Equal(t, 5, bunches[0][1].Line, "empty sheet rows still advance the line")
}

func TestXLSXSource_MissingColumns(t *testing.T) {
	data := workbook(t, [][]any{{"sku", "amount"}, {"A1", 1}})

	src, err := NewXLSXSource(bytes.NewReader(data), "", core.UnscopedColumns, 10)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.NextBunch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns: price")
}

func TestXLSXSource_NotAWorkbook(t *testing.T) {
	_, err := NewXLSXSource(bytes.NewReader([]byte("sku,price\n")), "", nil, 10)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("sku,price\nA1,1\n"), 0o600))

	xlsxPath := filepath.Join(dir, "prices.xlsx")
	require.NoError(t, os.WriteFile(xlsxPath, workbook(t, [][]any{{"sku", "price"}, {"B2", "2"}}), 0o600))

	for path, sku := range map[string]string{csvPath: "A1", xlsxPath: "B2"} {
		src, err := Open(path, Options{Columns: core.UnscopedColumns})
		require.NoError(t, err, path)

		bunches := drain(t, src)
		require.Len(t, bunches, 1, path)
		assert.Equal(t, sku, bunches[0][0].Row["sku"])
		assert.NoError(t, src.Close())
	}

	_, err := Open(filepath.Join(dir, "prices.txt"), Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource([]core.Row{{"sku": "a"}, {"sku": "b"}, {"sku": "c"}}, 2)

	bunches := drain(t, src)

	require.Len(t, bunches, 2)
	assert.Equal(t, core.RowIndex(2), bunches[1][0].Index)
}
