package report

import (
	"fmt"
	"io"
	"strings"
)

// TextWriter renders the report as plain text for terminals and simple
// link-list exports.
type TextWriter struct {
	baseWriter
}

// NewTextWriter creates a TextWriter on output.
func NewTextWriter(output io.Writer) *TextWriter {
	return &TextWriter{baseWriter: newBaseWriter(output)}
}

// Write renders the summary block and, when present, one line per link.
func (w *TextWriter) Write(r *CrawlReport) (int, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Link store: %s\n", r.DatabasePath)
	fmt.Fprintf(&b, "Generated:  %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Total links:     %d\n", r.Summary.Total)
	fmt.Fprintf(&b, "  unscraped:     %d\n", r.Summary.Unscraped)
	fmt.Fprintf(&b, "  scraped:       %d\n", r.Summary.Scraped)
	fmt.Fprintf(&b, "  failed:        %d\n", r.Summary.Failed)
	fmt.Fprintf(&b, "  with keywords: %d\n", r.Summary.WithKeyword)
	fmt.Fprintf(&b, "  with text:     %d\n", r.Summary.WithPageData)

	if len(r.Links) > 0 {
		b.WriteString("\n")
		for _, l := range r.Links {
			fmt.Fprintf(&b, "[%s] %s", l.Status, l.URL)
			if l.Title != "" {
				fmt.Fprintf(&b, " | %s", l.Title)
			}
			if l.KeywordMatch != "" {
				fmt.Fprintf(&b, " | matches: %s", l.KeywordMatch)
			}
			b.WriteString("\n")
		}
	}

	return w.output.Write([]byte(b.String()))
}
