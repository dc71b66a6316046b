// Package crawler implements the crawl pipeline: a producer that turns
// link store frontiers into a bounded work queue, and a pool of workers
// that fetch pages through Tor, parse them, match keywords, and persist
// results back to the store.
//
// The pipeline is mode-driven. A fresh crawl iterates the unscraped
// frontier and grows it with discovered links; the rescrape modes replay
// failed or incomplete rows; titles-only performs a single narrow pass
// that fills in missing titles without touching other columns.
//
// External callers steer a running crawl through Controls: a stop signal
// that triggers a bounded-grace shutdown with no partial writes, a pause
// signal that idles workers in place, and a task table exposing live
// per-fetch telemetry.
package crawler
