// Package database provides SQLite-based persistence for harvested pages.
// It stores accepted crawl results and per-run statistics, and feeds the
// resume mechanism: addresses collected in earlier runs are loaded back so
// a new crawl does not fetch them again.
//
// The driver is modernc.org/sqlite, a pure-Go SQLite build, so the binary
// stays CGo-free and cross-compiles cleanly.
package database
