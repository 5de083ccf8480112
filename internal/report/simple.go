package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// SimpleWriter outputs a human-readable text summary.
// This format is designed for terminal display after a crawl finishes.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// verbose lists every collected page instead of per-site counts.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with one line per collected page.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write renders the run in human-readable form.
func (w *SimpleWriter) Write(run *Run) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, run)
	w.writeSummary(&sb, run)
	w.writeSites(&sb, run)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, run *Run) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                       ONION HARVEST REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Started:   %s\n", run.Stats.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:  %s\n", run.GeneratedAt.Sub(run.Stats.StartedAt).Round(10*time.Millisecond)))
	sb.WriteString("\n")
}

// writeSummary writes the aggregate counters.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, run *Run) {
	stats := run.Stats

	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Sites completed:    %d\n", stats.SitesCompleted))
	sb.WriteString(fmt.Sprintf("Pages collected:    %d\n", stats.PagesCollected))
	sb.WriteString(fmt.Sprintf("Pages deduplicated: %d\n", stats.PagesDeduplicated))
	sb.WriteString(fmt.Sprintf("Pages skipped:      %d\n", stats.PagesSkipped))
	sb.WriteString(fmt.Sprintf("Pages failed:       %d\n", stats.PagesFailed))
	sb.WriteString("\n")
}

// writeSites writes per-site page counts, or every page when verbose.
func (w *SimpleWriter) writeSites(sb *strings.Builder, run *Run) {
	if len(run.Results) == 0 {
		sb.WriteString("No pages collected.\n\n")
		return
	}

	sb.WriteString("SITES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	grouped := run.BySite()
	for _, site := range run.Sites() {
		pages := grouped[site]
		sb.WriteString(fmt.Sprintf("%s  (%d pages)\n", site, len(pages)))

		if !w.verbose {
			continue
		}
		for _, p := range pages {
			sb.WriteString(fmt.Sprintf("  [depth %d] %-50s %s\n", p.Depth, truncateString(p.Address, 50), p.Title))
		}
	}
	sb.WriteString("\n")
}
