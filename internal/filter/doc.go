// Package filter implements the streaming keyword/threshold filter: it
// scans an existing link store for rows whose stored keyword matches
// satisfy a minimum number of distinct keywords, and copies the matching
// rows into a fresh result database in bounded batches.
package filter
