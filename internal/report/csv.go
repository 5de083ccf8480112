package report

import (
	"encoding/csv"
	"io"
	"strconv"
)

// csvHeader names the exported columns, in order.
var csvHeader = []string{
	"address", "site", "title", "depth", "links_found",
	"elapsed_ms", "fingerprint", "text",
}

// CSVWriter outputs one row per collected page.
// This format is designed for spreadsheets and quick command-line analysis.
//
// Design decision: Text goes in the last column because it is the only
// field that routinely contains commas and newlines; encoding/csv quotes
// it correctly, and trailing placement keeps the narrow columns readable
// when the file is eyeballed raw.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write renders the run as CSV with a header row.
//
// encoding/csv does not report bytes written, so the count is derived
// from a counting wrapper around the destination.
func (w *CSVWriter) Write(run *Run) (int, error) {
	counter := &countingWriter{inner: w.output}
	cw := csv.NewWriter(counter)

	if err := cw.Write(csvHeader); err != nil {
		return counter.n, err
	}

	for _, r := range run.Results {
		row := []string{
			r.Address,
			r.Site,
			r.Title,
			strconv.Itoa(r.Depth),
			strconv.Itoa(r.LinksFound),
			strconv.FormatInt(r.Elapsed.Milliseconds(), 10),
			r.Fingerprint,
			r.Text,
		}
		if err := cw.Write(row); err != nil {
			return counter.n, err
		}
	}

	cw.Flush()
	return counter.n, cw.Error()
}

// countingWriter counts bytes passing through to the inner writer.
type countingWriter struct {
	inner io.Writer
	n     int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.inner.Write(p)
	c.n += n
	return n, err
}
