// Package config provides configuration structures and utilities for
// onionharvest. It defines the crawl settings (depth, paging, politeness,
// retry, rotation, concurrency), Tor connectivity options, export
// destinations, and the YAML configuration file format.
package config
