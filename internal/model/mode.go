package model

import "fmt"

// CrawlMode selects the producer's frontier strategy. Modes are mutually
// exclusive per run.
//
// Design decision: We use a tagged variant instead of independent boolean
// flags because the flags interact (e.g. titles-only implies a single
// iteration, rescrape modes ignore seeds) and a closed enum makes the
// producer's dispatch exhaustive.
type CrawlMode int

const (
	// ModeFresh crawls the unscraped frontier iteratively, discovering new
	// links as pages are parsed.
	ModeFresh CrawlMode = iota

	// ModeRescrapeFailed re-enqueues all FAILED rows. Rows are not reset to
	// UNSCRAPED first: an interrupted retry leaves them FAILED and therefore
	// still discoverable by a later rescrape.
	ModeRescrapeFailed

	// ModeRescrapeMissingData resets all non-failed rows lacking page data
	// to UNSCRAPED and re-enqueues them. Used to backfill page text after a
	// save-mode policy change.
	ModeRescrapeMissingData

	// ModeTitlesOnly performs exactly one iteration over unscraped rows
	// missing a usable title, updating only status and title.
	ModeTitlesOnly
)

// String returns the mode name used in logs.
func (m CrawlMode) String() string {
	switch m {
	case ModeFresh:
		return "fresh"
	case ModeRescrapeFailed:
		return "rescrape-failed"
	case ModeRescrapeMissingData:
		return "rescrape-missing-data"
	case ModeTitlesOnly:
		return "titles-only"
	default:
		return "unknown"
	}
}

// SaveMode controls when extracted page text is persisted.
type SaveMode int

const (
	// SaveNone never persists page text.
	SaveNone SaveMode = iota

	// SaveKeywordMatch persists page text only when at least one keyword
	// matched the page.
	SaveKeywordMatch

	// SaveAll always persists page text on a successful parse.
	SaveAll
)

// String returns the canonical configuration spelling of the mode.
func (m SaveMode) String() string {
	switch m {
	case SaveNone:
		return "None"
	case SaveKeywordMatch:
		return "Keyword Match"
	case SaveAll:
		return "All"
	default:
		return "unknown"
	}
}

// ParseSaveMode parses the configuration spelling of a save mode.
func ParseSaveMode(s string) (SaveMode, error) {
	switch s {
	case "None":
		return SaveNone, nil
	case "Keyword Match":
		return SaveKeywordMatch, nil
	case "All":
		return SaveAll, nil
	default:
		return SaveNone, fmt.Errorf("invalid save-page-data mode %q (want \"All\", \"Keyword Match\", or \"None\")", s)
	}
}

// ShouldSave applies the save-mode policy to a parse outcome. All write
// paths must route through this so the policy is applied uniformly.
func (m SaveMode) ShouldSave(keywordMatched bool) bool {
	switch m {
	case SaveAll:
		return true
	case SaveKeywordMatch:
		return keywordMatched
	default:
		return false
	}
}
