// Package model defines the core data types shared across the crawler:
// persisted link records, crawl modes, the page-data save policy, and the
// in-memory task telemetry table consumed by external viewers.
package model
