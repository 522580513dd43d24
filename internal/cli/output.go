package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/PriceImport/internal/core"
	"github.com/JonMunkholm/PriceImport/internal/report"
)

// maxPrintedFailures bounds the failures echoed to the terminal.
const maxPrintedFailures = 20

func printRun(w io.Writer, run core.ImportRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "Import\t%s\n", run.ID)
	fmt.Fprintf(tw, "File\t%s\n", run.FileName)
	fmt.Fprintf(tw, "Status\t%s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(tw, "Error\t%s\n", run.Error)
	}
	s := run.Summary
	if s == nil {
		return
	}
	if s.DryRun {
		fmt.Fprintf(tw, "Mode\tdry run\n")
	}
	fmt.Fprintf(tw, "Behavior\t%s\n", s.Behavior)
	fmt.Fprintf(tw, "Rows processed\t%d\n", s.RowsProcessed)
	fmt.Fprintf(tw, "Items updated\t%d\n", s.ItemsUpdated)
	fmt.Fprintf(tw, "Items created\t%d\n", s.ItemsCreated)
	fmt.Fprintf(tw, "Not found\t%d\n", s.NotFound)
	fmt.Fprintf(tw, "Write failures\t%d\n", s.WriteFailures)
	fmt.Fprintf(tw, "Invalid rows\t%d\n", len(s.Failures))
	if s.Terminated {
		fmt.Fprintf(tw, "Skipped rows\t%d (error limit reached)\n", len(s.Skipped))
	}
	fmt.Fprintf(tw, "Duration\t%s\n", s.Duration.Round(time.Millisecond))

	for i, l := range report.Lines(*s) {
		if i == maxPrintedFailures {
			fmt.Fprintf(tw, "\t... see --errors-out for the full list\n")
			break
		}
		fmt.Fprintf(tw, "  line %d\t%s\n", l.Line, l.Message)
	}
}

// writeErrorReport writes the summary's report lines to path, choosing the format by extension.
func writeErrorReport(path string, s core.Summary) (int, error) {
	format, err := report.ParseFormat(filepath.Ext(path))
	if err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create error report: %w", err)
	}
	lines := report.Lines(s)
	if err := report.Write(f, format, lines); err != nil {
		f.Close()
		return 0, err
	}
	return len(lines), f.Close()
}
