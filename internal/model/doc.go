// Package model defines the core data structures used throughout onionharvest.
//
// This package contains the following main types:
//   - CrawlResult: A single successfully collected page
//   - CrawlStats: Aggregate counters for one crawl run
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (crawler, database, report, intel) need to
// use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for export and
// database storage.
package model
