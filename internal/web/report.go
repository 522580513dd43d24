package web

import (
	"fmt"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/PriceImport/internal/core"
	"github.com/JonMunkholm/PriceImport/internal/report"
)

//go:generate templ generate

// maxReportLines caps the error table on the HTML page; the download has all of them.
const maxReportLines = 200

type reportStat struct {
	label string
	value string
}

// reportStats lists the figures shown at the top of the import page.
func reportStats(run core.ImportRun) []reportStat {
	p := run.Progress
	stats := []reportStat{
		{"Stage", string(p.State)},
		{"Read", fmt.Sprintf("%d%%", p.Percent)},
		{"Rows processed", fmt.Sprint(p.RowsProcessed)},
		{"Items updated", fmt.Sprint(p.ItemsUpdated)},
		{"Items created", fmt.Sprint(p.ItemsCreated)},
		{"Invalid rows", fmt.Sprint(p.InvalidRows)},
		{"Skipped rows", fmt.Sprint(p.SkippedRows)},
	}
	if s := run.Summary; s != nil {
		stats = append(stats,
			reportStat{"Products not found", fmt.Sprint(s.NotFound)},
			reportStat{"Write failures", fmt.Sprint(s.WriteFailures)},
			reportStat{"Terminated early", fmt.Sprint(s.Terminated)},
			reportStat{"Duration", s.Duration.Round(time.Millisecond).String()},
		)
	}
	return stats
}

type reportErrorList struct {
	lines []report.Line
	total int
}

func reportErrors(s core.Summary) reportErrorList {
	lines := report.Lines(s)
	e := reportErrorList{lines: lines, total: len(lines)}
	if len(lines) > maxReportLines {
		e.lines = lines[:maxReportLines]
	}
	return e
}

func errorsURL(id string, f report.Format) templ.SafeURL {
	return templ.SafeURL(fmt.Sprintf("/api/imports/%s/errors?format=%s", id, f))
}
