package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/onionharvest/internal/model"
)

// MarkdownWriter outputs crawl runs in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write renders the run as a Markdown summary report.
func (w *MarkdownWriter) Write(run *Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeSummary(md, run)
	w.writeSites(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *Run) {
	md.H1("Onion Harvest Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", run.Stats.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Generated", run.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Sites Completed", strconv.Itoa(run.Stats.SitesCompleted)},
			{"Pages Collected", strconv.Itoa(run.Stats.PagesCollected)},
		},
	})
	md.PlainText("")
}

// writeSummary writes the page-outcome summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, run *Run) {
	md.H2("Crawl Summary")
	md.PlainText("")

	stats := run.Stats
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"✅ Collected", strconv.Itoa(stats.PagesCollected)},
			{"♻️ Deduplicated", strconv.Itoa(stats.PagesDeduplicated)},
			{"⏭️ Skipped (blacklist)", strconv.Itoa(stats.PagesSkipped)},
			{"❌ Failed", strconv.Itoa(stats.PagesFailed)},
		},
	})
	md.PlainText("")

	if stats.PagesCollected+stats.PagesDeduplicated+stats.PagesSkipped+stats.PagesFailed > 0 {
		w.writePieChart(md, stats)
	}

	if stats.PagesCollected == 0 {
		md.Warning("No pages were collected in this run.")
		md.PlainText("")
	}
}

// writePieChart writes a mermaid pie chart of page outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, stats model.CrawlStats) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Outcome Distribution"),
		piechart.WithShowData(true),
	)

	if stats.PagesCollected > 0 {
		chart.LabelAndIntValue("Collected", uint64(stats.PagesCollected))
	}
	if stats.PagesDeduplicated > 0 {
		chart.LabelAndIntValue("Deduplicated", uint64(stats.PagesDeduplicated))
	}
	if stats.PagesSkipped > 0 {
		chart.LabelAndIntValue("Skipped", uint64(stats.PagesSkipped))
	}
	if stats.PagesFailed > 0 {
		chart.LabelAndIntValue("Failed", uint64(stats.PagesFailed))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeSites writes one section per crawled hidden service.
func (w *MarkdownWriter) writeSites(md *markdown.Markdown, run *Run) {
	md.H2("Collected Pages")
	md.PlainText("")

	if len(run.Results) == 0 {
		md.PlainText("No pages collected.")
		md.PlainText("")
		return
	}

	grouped := run.BySite()
	for _, site := range run.Sites() {
		pages := grouped[site]

		md.H3("`" + site + "`")
		md.PlainText("")

		rows := make([][]string, len(pages))
		for i, p := range pages {
			rows[i] = []string{
				truncateString(p.Address, 60),
				truncateString(p.Title, 40),
				strconv.Itoa(p.Depth),
				strconv.Itoa(p.LinksFound),
				p.Elapsed.String(),
			}
		}

		md.Table(markdown.TableSet{
			Header: []string{"Address", "Title", "Depth", "Links", "Elapsed"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [onionharvest](https://github.com/nao1215/onionharvest)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
