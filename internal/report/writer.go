package report

import (
	"io"
	"time"

	"github.com/Serbz/TorScraper-SC/internal/model"
	"github.com/Serbz/TorScraper-SC/internal/store"
)

// CrawlReport is the data every writer renders: the store's aggregate
// counts plus, for exports, the full link listing.
type CrawlReport struct {
	// DatabasePath is the link store the report describes.
	DatabasePath string

	// GeneratedAt is when the report was produced.
	GeneratedAt time.Time

	// Summary holds the per-state row counts.
	Summary store.Summary

	// Links is the full listing; nil for summary-only reports.
	Links []model.Link
}

// Writer renders a CrawlReport to some destination.
//
// Design decision: An interface over the formats so commands pick the
// writer once and render identically regardless of destination (stdout,
// file, or several at once via MultiWriter).
type Writer interface {
	// Write renders the report, returning the number of bytes written.
	Write(r *CrawlReport) (int, error)
}

// MultiWriter renders a report through several Writers, stopping at the
// first error. It exists because our Writer renders reports, not bytes,
// so io.MultiWriter does not apply.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer fanning out to all given writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders the report through every writer in order.
func (m *MultiWriter) Write(r *CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(r)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter carries the shared output destination.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
