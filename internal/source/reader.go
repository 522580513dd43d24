package source

// reader.go normalizes raw CSV bytes before parsing.
//
// Spreadsheet exports on Windows often start with a UTF-8 BOM and sometimes
// carry stray Latin-1 bytes. The BOM is dropped and invalid sequences are
// replaced with U+FFFD so encoding/csv never sees broken UTF-8. Wrapping is
// streaming; memory use does not grow with file size.

import (
	"io"
	"sync/atomic"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewTextReader strips a leading BOM and sanitizes invalid UTF-8.
func NewTextReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// CountingReader tracks bytes read for progress reporting.
type CountingReader struct {
	reader io.Reader
	read   atomic.Int64
	Total  int64 // 0 if unknown
}

// NewCountingReader wraps r. total may be 0 when the size is unknown.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, Total: total}
}

// Read implements io.Reader.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.read.Add(int64(n))
	return n, err
}

// Percent returns read progress 0-100, or 0 when the total is unknown.
func (c *CountingReader) Percent() int {
	if c.Total <= 0 {
		return 0
	}
	p := int(c.read.Load() * 100 / c.Total)
	if p > 100 {
		p = 100
	}
	return p
}
