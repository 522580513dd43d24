package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/PriceImport/internal/cli"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")

	var out, errOut bytes.Buffer
	cmd := cli.NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate_ValidFile(t *testing.T) {
	path := writeFile(t, "prices.csv", "sku,price,store_id\nA1,10.50,1\nB2,$7,2\n")

	out, err := execute(t, "validate", "--file", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Rows processed")
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "File is valid")
}

func TestValidate_InvalidRows(t *testing.T) {
	path := writeFile(t, "prices.csv", "sku,price,store_id\nA1,10.50,1\n,3.00,1\n")
	reportPath := filepath.Join(t.TempDir(), "errors.csv")

	out, err := execute(t, "validate", "--file", path, "--errors-out", reportPath)

	require.ErrorIs(t, err, cli.ErrInvalidRows)
	assert.Contains(t, out, "line 3")
	assert.Contains(t, out, "Wrote 1 report lines")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Equal(t, "row,line,code,message\n1,3,SkuIsRequired,The SKU is required.\n", string(data))
}

func TestValidate_GlobalImportIgnoresStore(t *testing.T) {
	path := writeFile(t, "prices.csv", "sku,price\nA1,1\n")

	_, err := execute(t, "validate", "--file", path)
	require.Error(t, err, "scoped imports need store_id")

	out, err := execute(t, "validate", "--file", path, "--scoped=false")
	require.NoError(t, err)
	assert.Contains(t, out, "File is valid")
}

func TestValidate_FlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file flag", []string{"validate"}, "file"},
		{"unknown strategy", []string{"validate", "--file", "x.csv", "--strategy", "ignore"}, "IMPORT_VALIDATION_STRATEGY"},
		{"unknown write style", []string{"validate", "--file", "x.csv", "--write-style", "upsert"}, "IMPORT_WRITE_STYLE"},
		{"unknown format", []string{"validate", "--file", "x.csv", "--format", "pdf"}, "unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCommandsNeedDatabase(t *testing.T) {
	path := writeFile(t, "prices.csv", "sku,price,store_id\nA1,1,1\n")

	for _, args := range [][]string{{"run", "--file", path}, {"history"}} {
		_, err := execute(t, args...)
		require.Error(t, err, args[0])
		assert.Contains(t, err.Error(), "DATABASE_URL", args[0])
	}
}
