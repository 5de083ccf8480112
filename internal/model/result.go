package model

import "time"

// CrawlResult represents a single successfully collected page.
// A result is only created after a page was fetched, parsed, and passed the
// global content-fingerprint check. Results are immutable once emitted; the
// crawl engine keeps no reference to them after handing them off.
type CrawlResult struct {
	// Address is the full URL of the page including the .onion host.
	Address string `json:"address"`

	// Title is the page title, or "No Title" when the document has none.
	Title string `json:"title"`

	// Text is the cleaned visible text of the page.
	Text string `json:"text"`

	// Fingerprint is the SHA-256 hex digest of Text.
	// Used for cross-site content deduplication.
	Fingerprint string `json:"fingerprint"`

	// Depth is the BFS distance from the seed address (seed = 0).
	Depth int `json:"depth"`

	// Elapsed is the time spent fetching and parsing this page.
	Elapsed time.Duration `json:"elapsed"`

	// LinksFound is the number of valid onion links discovered on the page.
	LinksFound int `json:"links_found"`

	// Site groups pages by owning hidden service ("scheme://host").
	Site string `json:"site"`
}

// CrawlStats holds aggregate counters for one crawl run.
// A single instance lives for the lifetime of an Engine and is updated
// under the engine's lock from any site-crawl worker; callers receive a
// copy, never the live instance.
type CrawlStats struct {
	// SitesCompleted is the number of site crawls that ran to completion.
	SitesCompleted int `json:"sites_completed"`

	// PagesCollected is the number of accepted (non-duplicate) pages.
	PagesCollected int `json:"pages_collected"`

	// PagesFailed is the number of addresses whose fetch attempts were
	// all exhausted.
	PagesFailed int `json:"pages_failed"`

	// PagesSkipped is the number of addresses skipped by the blacklist.
	PagesSkipped int `json:"pages_skipped"`

	// PagesDeduplicated is the number of pages discarded because their
	// fingerprint was already seen elsewhere in the run.
	PagesDeduplicated int `json:"pages_deduplicated"`

	// StartedAt is when the crawl run began.
	StartedAt time.Time `json:"started_at"`
}

// NewCrawlStats returns stats with the start time set to now.
func NewCrawlStats() CrawlStats {
	return CrawlStats{StartedAt: time.Now()}
}

// Elapsed returns wall-clock time since the crawl began.
func (s CrawlStats) Elapsed() time.Duration {
	return time.Since(s.StartedAt)
}
