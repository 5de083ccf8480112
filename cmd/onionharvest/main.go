// Package main provides the entry point for the onionharvest CLI.
//
// onionharvest is a polite crawler for Tor hidden services (.onion
// addresses). It collects page text through the Tor network, deduplicates
// content across sites, and exports the harvest for later analysis.
//
// Usage:
//
//	onionharvest crawl <onion-address>
//	onionharvest crawl --list <file>
//
// See --help for all available options.
package main

// main is the entry point for onionharvest.
func main() {
	Execute()
}
