// Package tor provides Tor network connectivity for the crawler.
//
// It wraps a SOCKS5 dialer to route HTTP sessions through a Tor daemon,
// speaks the control protocol for identity rotation (SIGNAL NEWNYM), and
// can launch an embedded daemon via tornago when no external one is
// available. It also carries onion address validation and extraction
// helpers for v3 (and legacy v2) addresses.
//
// The package is designed for dependency injection: create a Client and
// hand it to the crawl engine rather than using global state.
package tor
