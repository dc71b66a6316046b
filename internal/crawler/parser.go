package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/Serbz/TorScraper-SC/internal/keyword"
	"github.com/Serbz/TorScraper-SC/internal/urlutil"
)

// page is the parsed outcome of one fetched document.
type page struct {
	// title is the first <title> text, or empty when the page has none.
	title string

	// text is the visible page text, whitespace-collapsed.
	text string

	// links are the extracted, filtered, normalized outbound links in
	// first-appearance order.
	links []string

	// matches are the keyword identifiers that matched text.
	matches []string
}

// parseOptions controls how much of the document is extracted.
type parseOptions struct {
	// titlesOnly skips text, link, and keyword extraction entirely.
	titlesOnly bool

	// onionOnly drops links whose host is not a .onion address.
	onionOnly bool

	// topLevelOnly collapses every link to its scheme+host form.
	topLevelOnly bool

	// keywords is matched against the visible text; nil matches nothing.
	keywords *keyword.Set
}

// parsePage decodes and parses one HTML document. The contentType header
// drives charset detection; pages in legacy encodings are transcoded to
// UTF-8 before parsing.
func parsePage(baseURL string, body []byte, contentType string, opts parseOptions) (page, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return page{}, fmt.Errorf("detect charset of %s: %w", baseURL, err)
	}
	doc, err := html.Parse(reader)
	if err != nil {
		return page{}, fmt.Errorf("parse %s: %w", baseURL, err)
	}

	var p page
	p.title = extractTitle(doc)
	if opts.titlesOnly {
		return p, nil
	}

	p.text = extractVisibleText(doc)
	p.links = extractLinks(doc, baseURL, opts)
	p.matches = opts.keywords.MatchPage(p.text)
	return p, nil
}

// extractTitle returns the whitespace-collapsed text of the first
// non-empty <title> element.
func extractTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					b.WriteString(c.Data)
				}
			}
			if t := strings.Join(strings.Fields(b.String()), " "); t != "" {
				title = t
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return title
}

// extractVisibleText collects text nodes outside script, style, and
// noscript elements, collapsing all whitespace runs to single spaces.
func extractVisibleText(doc *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(b.String()), " ")
}

// extractLinks collects href targets from anchor elements, resolves them
// against the page URL, and applies the link policy: http(s) schemes
// only, no junk domains, no non-HTML file extensions, plus the optional
// onion-only and top-level-only narrowing.
func extractLinks(doc *html.Node, baseURL string, opts parseOptions) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	add := func(u string) {
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		links = append(links, u)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if href == "" || strings.HasPrefix(href, "#") {
					break
				}
				ref, err := url.Parse(href)
				if err != nil {
					break
				}
				resolved := base.ResolveReference(ref)
				resolved.Fragment = ""
				target := resolved.String()

				if resolved.Scheme != "http" && resolved.Scheme != "https" {
					break
				}
				if urlutil.IsJunk(target) || urlutil.HasNonHTMLExtension(target) {
					break
				}
				if opts.onionOnly && !urlutil.IsOnionHost(target) {
					break
				}
				if opts.topLevelOnly {
					if top := urlutil.TopLevel(target); top != "" {
						add(top)
					}
					break
				}
				add(urlutil.Normalize(target))
				break
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}
