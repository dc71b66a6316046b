package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
)

// maxMarkdownLinks caps the link table so a large crawl does not render
// an unreadable document. The text and JSON writers carry the full set.
const maxMarkdownLinks = 500

// MarkdownWriter renders the report as GitHub-flavored Markdown, for
// sharing crawl results as documents.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter on output.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write renders the report.
func (w *MarkdownWriter) Write(r *CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Link store", "`" + r.DatabasePath + "`"},
			{"Generated", r.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		},
	})
	md.PlainText("")

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"State", "Count"},
		Rows: [][]string{
			{"Unscraped", strconv.FormatInt(r.Summary.Unscraped, 10)},
			{"Scraped", strconv.FormatInt(r.Summary.Scraped, 10)},
			{"Failed", strconv.FormatInt(r.Summary.Failed, 10)},
			{"With keyword matches", strconv.FormatInt(r.Summary.WithKeyword, 10)},
			{"With page text", strconv.FormatInt(r.Summary.WithPageData, 10)},
			{"**Total**", "**" + strconv.FormatInt(r.Summary.Total, 10) + "**"},
		},
	})
	md.PlainText("")

	if len(r.Links) > 0 {
		w.writeLinks(md, r)
	}

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeLinks(md *markdown.Markdown, r *CrawlReport) {
	md.H2("Links")
	md.PlainText("")

	links := r.Links
	truncated := false
	if len(links) > maxMarkdownLinks {
		links = links[:maxMarkdownLinks]
		truncated = true
	}

	rows := make([][]string, 0, len(links))
	for _, l := range links {
		rows = append(rows, []string{
			"`" + l.URL + "`",
			l.Status.String(),
			l.Title,
			l.KeywordMatch,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Title", "Keyword matches"},
		Rows:   rows,
	})
	if truncated {
		md.PlainText("")
		md.PlainTextf("Showing %d of %d links.", maxMarkdownLinks, len(r.Links))
	}
}
