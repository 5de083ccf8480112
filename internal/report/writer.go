package report

import (
	"io"
	"time"

	"github.com/nao1215/onionharvest/internal/model"
)

// Run bundles everything a writer needs to render one crawl run: the
// accepted pages and the aggregate counters.
type Run struct {
	// Results are the accepted pages, in collection order.
	Results []*model.CrawlResult `json:"results"`

	// Stats are the final counters for the run.
	Stats model.CrawlStats `json:"stats"`

	// GeneratedAt is when the report was rendered.
	GeneratedAt time.Time `json:"generated_at"`
}

// NewRun creates a report input with the generation time set to now.
func NewRun(results []*model.CrawlResult, stats model.CrawlStats) *Run {
	return &Run{
		Results:     results,
		Stats:       stats,
		GeneratedAt: time.Now(),
	}
}

// Sites returns the distinct hidden services in the run, in first-seen order.
func (r *Run) Sites() []string {
	seen := make(map[string]struct{})
	var sites []string
	for _, res := range r.Results {
		if _, ok := seen[res.Site]; ok {
			continue
		}
		seen[res.Site] = struct{}{}
		sites = append(sites, res.Site)
	}
	return sites
}

// BySite groups the run's pages by owning hidden service.
func (r *Run) BySite() map[string][]*model.CrawlResult {
	grouped := make(map[string][]*model.CrawlResult)
	for _, res := range r.Results {
		grouped[res.Site] = append(grouped[res.Site], res)
	}
	return grouped
}

// Writer defines the interface for crawl report output.
// Implementations render a run in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write renders the run to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(run *Run) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write runs, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders the run to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(run *Run) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
