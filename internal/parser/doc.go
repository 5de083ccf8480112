// Package parser extracts structured content from hidden-service pages.
//
// # Components
//
//   - Address validation: accepts only v3 onion URLs (56 base32 characters)
//   - Blacklist: path-based skip list applied before any fetch
//   - Extract: title, cleaned visible text, content fingerprint, and the
//     deduplicated set of valid onion links found on a page
//
// Design decision: We use golang.org/x/net/html for parsing rather than
// regex because:
//  1. It correctly handles malformed HTML common on hidden services
//  2. Provides a proper DOM-like structure
//  3. More maintainable than complex regex patterns
//
// The fingerprint is a SHA-256 digest of the cleaned text. It feeds the
// crawl engine's global deduplication, so extraction must be deterministic:
// identical input always yields an identical fingerprint.
package parser
