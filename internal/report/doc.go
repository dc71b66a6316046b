// Package report renders crawl results for humans and downstream tools:
// a plain-text summary for the terminal, JSON for scripting, and
// Markdown for documentation. All writers consume the same CrawlReport
// and differ only in rendering.
package report
