package model

// Status describes the scrape state of a link record.
// The numeric values are part of the persisted schema contract
// (column "scraped") and must not be reordered.
type Status int

const (
	// StatusUnscraped marks a link that has never been fetched, or that
	// has been explicitly reset for a retry.
	StatusUnscraped Status = 0

	// StatusSuccess marks a link whose fetch and parse both completed.
	StatusSuccess Status = 1

	// StatusFailed marks a link whose fetch or parse failed.
	StatusFailed Status = 2
)

// String returns a human-readable status name for logs.
func (s Status) String() string {
	switch s {
	case StatusUnscraped:
		return "unscraped"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the three defined states.
func (s Status) Valid() bool {
	return s == StatusUnscraped || s == StatusSuccess || s == StatusFailed
}

// Title sentinels stored in the title column.
//
// Design decision: These are stored values, not presentation strings.
// Existing databases produced by earlier versions contain them, so the
// exact spelling is load-bearing (the missing-titles frontier query
// matches on them).
const (
	// TitleScrapeFailed is stored when a fetch or parse attempt failed.
	TitleScrapeFailed = "Scrape Failed"

	// TitleNotFound is stored when the page has no <title> element.
	TitleNotFound = "No Title Found"
)

// Link is one row of the link store. Nullable text columns are represented
// as empty strings; Status is never allowed to be NULL in a valid row.
type Link struct {
	// ID is the surrogate key assigned on insert. Immutable.
	ID int64

	// URL is the normalized (trailing slash stripped) unique URL.
	URL string

	// Status is the scrape state.
	Status Status

	// Title is the extracted page title, or a sentinel value.
	Title string

	// KeywordMatch is the delimiter-joined set of matched keyword
	// identifiers, empty when no keywords matched or none were configured.
	KeywordMatch string

	// PageData is the extracted visible page text, populated only per the
	// active save-mode policy.
	PageData string
}
