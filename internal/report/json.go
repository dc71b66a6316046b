package report

import (
	"encoding/json"
	"io"
	"time"
)

// JSONWriter renders the report as indented JSON for scripting.
type JSONWriter struct {
	baseWriter
}

// NewJSONWriter creates a JSONWriter on output.
func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{baseWriter: newBaseWriter(output)}
}

// jsonReport is the wire shape. Link rows translate Status to its name
// so consumers do not depend on the numeric schema values.
type jsonReport struct {
	DatabasePath string     `json:"database_path"`
	GeneratedAt  time.Time  `json:"generated_at"`
	Summary      jsonCounts `json:"summary"`
	Links        []jsonLink `json:"links,omitempty"`
}

type jsonCounts struct {
	Total        int64 `json:"total"`
	Unscraped    int64 `json:"unscraped"`
	Scraped      int64 `json:"scraped"`
	Failed       int64 `json:"failed"`
	WithKeyword  int64 `json:"with_keyword"`
	WithPageData int64 `json:"with_page_data"`
}

type jsonLink struct {
	URL          string `json:"url"`
	Status       string `json:"status"`
	Title        string `json:"title,omitempty"`
	KeywordMatch string `json:"keyword_match,omitempty"`
	PageData     string `json:"page_data,omitempty"`
}

// Write renders the report as JSON.
func (w *JSONWriter) Write(r *CrawlReport) (int, error) {
	out := jsonReport{
		DatabasePath: r.DatabasePath,
		GeneratedAt:  r.GeneratedAt,
		Summary: jsonCounts{
			Total:        r.Summary.Total,
			Unscraped:    r.Summary.Unscraped,
			Scraped:      r.Summary.Scraped,
			Failed:       r.Summary.Failed,
			WithKeyword:  r.Summary.WithKeyword,
			WithPageData: r.Summary.WithPageData,
		},
	}
	for _, l := range r.Links {
		out.Links = append(out.Links, jsonLink{
			URL:          l.URL,
			Status:       l.Status.String(),
			Title:        l.Title,
			KeywordMatch: l.KeywordMatch,
			PageData:     l.PageData,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
