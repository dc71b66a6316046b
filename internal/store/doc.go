// Package store implements the SQLite-backed link store: the persistent
// frontier and result set of the crawl. It owns the schema, the additive
// migrations that upgrade old databases in place, the frontier queries for
// each crawl mode, the batched write paths, and the candidate streaming
// used by the filter engine.
package store
