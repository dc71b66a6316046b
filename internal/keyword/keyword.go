package keyword

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// RegexPrefix marks a raw keyword entry as a regular-expression pattern
// rather than a literal term. The prefix is part of the stored identifier
// for assertion patterns, so its exact spelling is load-bearing.
const RegexPrefix = "REGEX: "

// matchDelimiter joins matched keyword identifiers into the single string
// persisted in the keyword_match column. The core token never appears in
// page text or keyword identifiers, so splitting on it is unambiguous.
//
// Design decision: Existing databases already contain this delimiter, so
// it cannot change. Join uses the space-padded form for readability;
// SplitMatches splits on the unpadded core and trims, which accepts both
// forms.
const (
	matchDelimiter     = " _!|!_ "
	matchDelimiterCore = "_!|!_"
)

// assertionPrefix is the regex spelling that turns a pattern entry into a
// presence assertion. Go's regexp engine rejects lookahead syntax, so the
// wrapper is stripped before compiling and the entry matches on presence
// of the inner pattern.
const assertionPrefix = "(?="

// Kind classifies a parsed keyword entry.
type Kind int

const (
	// KindPlain is a literal term matched case-insensitively against page
	// text. Single-word terms match whole words only; multi-word terms
	// match as substrings.
	KindPlain Kind = iota

	// KindAssert is a presence assertion. On match it contributes its full
	// raw entry (prefix and wrapper included) as the identifier, not the
	// matched text.
	KindAssert

	// KindSearch is a search pattern. On match it contributes each distinct
	// matched substring as an identifier.
	KindSearch
)

// Entry is one parsed keyword.
type Entry struct {
	// Raw is the entry exactly as configured.
	Raw string

	// Kind classifies how the entry matches and what identifier it yields.
	Kind Kind

	// Term is the lowercased literal for KindPlain entries.
	Term string

	// Pattern is the compiled case-insensitive regex for KindAssert and
	// KindSearch entries.
	Pattern *regexp.Regexp
}

// Parse parses one raw keyword entry. Plain terms never fail; pattern
// entries fail when the regex does not compile.
func Parse(raw string) (Entry, error) {
	if !strings.HasPrefix(raw, RegexPrefix) {
		return Entry{
			Raw:  raw,
			Kind: KindPlain,
			Term: strings.ToLower(raw),
		}, nil
	}

	expr := strings.TrimPrefix(raw, RegexPrefix)
	kind := KindSearch
	if strings.HasPrefix(expr, assertionPrefix) && strings.HasSuffix(expr, ")") {
		expr = strings.TrimSuffix(strings.TrimPrefix(expr, assertionPrefix), ")")
		kind = KindAssert
	}

	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return Entry{}, fmt.Errorf("keyword: invalid pattern %q: %w", raw, err)
	}
	return Entry{Raw: raw, Kind: kind, Pattern: re}, nil
}

// Set is an immutable collection of parsed keyword entries. A nil *Set is
// valid and matches nothing.
type Set struct {
	entries []Entry
}

// NewSet parses all raw entries into a Set. Blank entries are skipped.
// The first invalid pattern aborts parsing.
func NewSet(raws []string) (*Set, error) {
	s := &Set{}
	for _, raw := range raws {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		e, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		s.entries = append(s.entries, e)
	}
	return s, nil
}

// Empty reports whether the set has no entries.
func (s *Set) Empty() bool {
	return s == nil || len(s.entries) == 0
}

// Len returns the number of entries.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// MatchPage matches every entry against extracted page text and returns
// the sorted, deduplicated identifiers of all matches. An empty result
// means no entry matched.
func (s *Set) MatchPage(text string) []string {
	if s.Empty() || text == "" {
		return nil
	}

	lower := strings.ToLower(text)
	// Single-word terms match only when space-delimited. Padding makes
	// that a plain substring test at both ends of the text.
	padded := " " + lower + " "

	seen := make(map[string]struct{})
	add := func(id string) {
		seen[id] = struct{}{}
	}

	for _, e := range s.entries {
		switch e.Kind {
		case KindPlain:
			if strings.ContainsRune(e.Term, ' ') {
				if strings.Contains(lower, e.Term) {
					add(e.Raw)
				}
			} else if strings.Contains(padded, " "+e.Term+" ") {
				add(e.Raw)
			}
		case KindAssert:
			if e.Pattern.MatchString(text) {
				add(e.Raw)
			}
		case KindSearch:
			for _, m := range e.Pattern.FindAllString(text, -1) {
				add(m)
			}
		}
	}

	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CountStored counts how many keyword entries are represented in a stored
// match, given its split tokens. Each entry counts at most once no matter
// how many tokens it matches. This is the filter engine's threshold input.
func (s *Set) CountStored(tokens []string) int {
	if s.Empty() || len(tokens) == 0 {
		return 0
	}

	lowerSet := make(map[string]struct{}, len(tokens))
	exactSet := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		lowerSet[strings.ToLower(tok)] = struct{}{}
		exactSet[tok] = struct{}{}
	}

	n := 0
	for _, e := range s.entries {
		switch e.Kind {
		case KindPlain:
			if _, ok := lowerSet[e.Term]; ok {
				n++
			}
		case KindAssert:
			if _, ok := exactSet[e.Raw]; ok {
				n++
			}
		case KindSearch:
			for _, tok := range tokens {
				if e.Pattern.MatchString(tok) {
					n++
					break
				}
			}
		}
	}
	return n
}

// Join encodes matched identifiers into the stored keyword_match form.
// An empty slice encodes to the empty string.
func Join(ids []string) string {
	return strings.Join(ids, matchDelimiter)
}

// SplitMatches decodes a stored keyword_match value into its identifier
// tokens. Blank tokens are dropped.
func SplitMatches(stored string) []string {
	if stored == "" {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(stored, matchDelimiterCore) {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Plains returns the lowercased literal terms of all plain entries, for
// building store-side candidate predicates.
func (s *Set) Plains() []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, e := range s.entries {
		if e.Kind == KindPlain {
			out = append(out, e.Term)
		}
	}
	return out
}

// AssertIDs returns the raw identifiers of all assertion entries.
func (s *Set) AssertIDs() []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, e := range s.entries {
		if e.Kind == KindAssert {
			out = append(out, e.Raw)
		}
	}
	return out
}

// SearchPatterns returns the case-insensitive source patterns of all
// search entries, compilable by the store's SQL regexp function.
func (s *Set) SearchPatterns() []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, e := range s.entries {
		if e.Kind == KindSearch {
			out = append(out, e.Pattern.String())
		}
	}
	return out
}
