package urlutil

import (
	"net/url"
	"regexp"
	"strings"
)

// junkRunLength is how many consecutive identical characters mark a host
// as auto-generated garbage (e.g. "aaaaaaaaaa.onion"). Legitimate onion
// addresses are base32 and effectively never repeat a character that long.
const junkRunLength = 8

// seedURLRegex finds http(s) URLs and bare www-prefixed hosts in free text.
var seedURLRegex = regexp.MustCompile(`https?://[^\s<>"]+|www\.[^\s<>"]+`)

// nonHTMLExtensions are path suffixes that never yield crawlable HTML.
// Links ending in these are discarded before they reach the store.
var nonHTMLExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {},
	".pdf": {}, ".zip": {}, ".rar": {}, ".7z": {}, ".tar": {}, ".gz": {},
	".iso": {}, ".dmg": {}, ".exe": {},
	".css": {}, ".js": {}, ".xml": {}, ".rss": {},
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mkv": {}, ".mov": {},
}

// Normalize strips the trailing slash from a URL. This is the canonical
// form stored in the link store; all comparisons against stored URLs must
// normalize first.
func Normalize(rawURL string) string {
	return strings.TrimRight(rawURL, "/")
}

// IsJunk reports whether the URL's host looks auto-generated, using the
// repeated-character heuristic. Malformed URLs are not junk: the store's
// uniqueness constraint handles them and failing open avoids dropping
// unusual but real links.
func IsJunk(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return hasRepeatRun(u.Host, junkRunLength)
}

// hasRepeatRun reports whether s contains the same rune repeated at least
// n times in a row. A plain scan: the repeated-character pattern needs a
// backreference, which regexp does not support.
func hasRepeatRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

// TopLevel reduces a URL to its scheme+host form, normalized. Returns an
// empty string when the URL cannot be parsed or has no host.
func TopLevel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return Normalize((&url.URL{Scheme: u.Scheme, Host: u.Host}).String())
}

// HasNonHTMLExtension reports whether the URL path ends in a known
// non-HTML file extension (images, archives, media, scripts, etc.).
func HasNonHTMLExtension(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	if i := strings.LastIndex(path, "."); i >= 0 {
		_, ok := nonHTMLExtensions[path[i:]]
		return ok
	}
	return false
}

// IsOnionHost reports whether the URL's host is a .onion address.
func IsOnionHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Hostname(), ".onion")
}

// ExtractFromText scans free text for seed URLs. Bare "www." hosts are
// normalized by prepending "http://". The result is deduplicated; order
// follows first appearance.
func ExtractFromText(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range seedURLRegex.FindAllString(text, -1) {
		if strings.HasPrefix(m, "www.") {
			m = "http://" + m
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
