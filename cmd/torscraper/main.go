// Package main provides the entry point for the torscraper CLI.
//
// torscraper crawls Tor hidden services through SOCKS5 proxies, stores
// every discovered link in a SQLite link store, matches configured
// keywords against page text, and filters stored results into smaller
// databases by keyword threshold.
//
// Usage:
//
//	torscraper crawl --seeds http://example.onion
//	torscraper filter --db links.db --out matches.db --threshold 2
//
// See --help for all available options.
package main

// main is the entry point for torscraper.
func main() {
	Execute()
}
