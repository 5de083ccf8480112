// Package report provides export and summary output for crawl runs.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text summary for terminal display
//   - JSONWriter: Structured JSON export for tool integration
//   - CSVWriter: Flat CSV export for spreadsheets and ad-hoc analysis
//   - MarkdownWriter: Markdown summary report for documentation and sharing
//
// Design decision: We separate report writing from report data structures
// (which are in the model package) to follow the single responsibility
// principle. This allows adding new output formats without modifying
// the core data structures.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
