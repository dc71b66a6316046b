package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Serbz/TorScraper-SC/internal/keyword"
	"github.com/Serbz/TorScraper-SC/internal/model"
	"github.com/Serbz/TorScraper-SC/internal/urlutil"

	_ "modernc.org/sqlite" // sqlite driver
)

// schema is the canonical links table. The scraped column holds
// model.Status values; url is stored normalized (no trailing slash).
const schema = `
CREATE TABLE IF NOT EXISTS links (
	id            INTEGER PRIMARY KEY,
	url           TEXT UNIQUE NOT NULL,
	scraped       INTEGER DEFAULT 0,
	title         TEXT,
	keyword_match TEXT,
	page_data     TEXT
);
CREATE INDEX IF NOT EXISTS idx_links_url ON links(url);
CREATE INDEX IF NOT EXISTS idx_links_scraped ON links(scraped);
`

// LinkStore is a SQLite-backed link store. It is safe for concurrent use;
// the underlying pool is capped at one connection so SQLite serializes
// writers itself instead of returning busy errors.
type LinkStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the link store at path, applies the
// schema, and upgrades old databases in place by adding any missing
// columns. The caller owns the returned store and must Close it.
func Open(path string, logger *slog.Logger) (*LinkStore, error) {
	if path == "" {
		return nil, ErrEmptyDatabasePath
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("store: open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	s := &LinkStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate adds columns introduced after the original schema. Migrations
// are additive only; existing data is never rewritten.
func (s *LinkStore) migrate() error {
	rows, err := s.db.Query("SELECT name FROM pragma_table_info('links')")
	if err != nil {
		return fmt.Errorf("store: inspect schema: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("store: inspect schema: %w", err)
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: inspect schema: %w", err)
	}

	for _, col := range []string{"title", "keyword_match", "page_data"} {
		if _, ok := existing[col]; ok {
			continue
		}
		s.logger.Info("upgrading database schema", slog.String("column", col))
		if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE links ADD COLUMN %s TEXT", col)); err != nil {
			return fmt.Errorf("store: add column %s: %w", col, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *LinkStore) Close() error {
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// AddLinks inserts the given URLs, normalized, ignoring duplicates and
// junk domains. When alsoTopLevel is true the scheme+host form of each
// URL is inserted as well, so every discovered site gets a root entry.
// Returns the number of rows actually inserted.
func (s *LinkStore) AddLinks(ctx context.Context, urls []string, alsoTopLevel bool) (int64, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	if len(urls) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin add links: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO links (url) VALUES (?)")
	if err != nil {
		return 0, fmt.Errorf("store: prepare add links: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	insert := func(u string) error {
		res, err := stmt.ExecContext(ctx, u)
		if err != nil {
			return fmt.Errorf("store: insert link %s: %w", u, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("store: insert link %s: %w", u, err)
		}
		inserted += n
		return nil
	}

	for _, raw := range urls {
		u := urlutil.Normalize(raw)
		if u == "" || urlutil.IsJunk(u) {
			continue
		}
		if err := insert(u); err != nil {
			return 0, err
		}
		if alsoTopLevel {
			if top := urlutil.TopLevel(u); top != "" && top != u {
				if err := insert(top); err != nil {
					return 0, err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit add links: %w", err)
	}
	return inserted, nil
}

// scanLink reads one row. ok is false for structurally invalid rows
// (NULL id, url, or scraped), which are logged and skipped instead of
// failing the whole query; invalid rows indicate external tampering or
// corruption.
func (s *LinkStore) scanLink(rows *sql.Rows) (link model.Link, ok bool, err error) {
	var (
		id           sql.NullInt64
		url          sql.NullString
		scraped      sql.NullInt64
		title        sql.NullString
		keywordMatch sql.NullString
		pageData     sql.NullString
	)
	if err := rows.Scan(&id, &url, &scraped, &title, &keywordMatch, &pageData); err != nil {
		return model.Link{}, false, fmt.Errorf("store: scan link row: %w", err)
	}
	if !id.Valid || !url.Valid || !scraped.Valid {
		s.logger.Error("skipping invalid link row",
			slog.Int64("id", id.Int64),
			slog.Bool("url_null", !url.Valid),
			slog.Bool("scraped_null", !scraped.Valid))
		return model.Link{}, false, nil
	}
	return model.Link{
		ID:           id.Int64,
		URL:          url.String,
		Status:       model.Status(scraped.Int64),
		Title:        title.String,
		KeywordMatch: keywordMatch.String,
		PageData:     pageData.String,
	}, true, nil
}

func (s *LinkStore) scanLinks(rows *sql.Rows) ([]model.Link, error) {
	var links []model.Link
	for rows.Next() {
		l, ok, err := s.scanLink(rows)
		if err != nil {
			return nil, err
		}
		if ok {
			links = append(links, l)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate link rows: %w", err)
	}
	return links, nil
}

const selectColumns = "SELECT id, url, scraped, title, keyword_match, page_data FROM links"

func (s *LinkStore) queryLinks(ctx context.Context, where string, args ...any) ([]model.Link, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	q := selectColumns
	if where != "" {
		q += " WHERE " + where
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query links: %w", err)
	}
	defer rows.Close()
	return s.scanLinks(rows)
}

// UnscrapedLinks returns the fresh-crawl frontier: every link that has
// never been scraped or has been reset.
func (s *LinkStore) UnscrapedLinks(ctx context.Context) ([]model.Link, error) {
	return s.queryLinks(ctx, "scraped = ?", int64(model.StatusUnscraped))
}

// UnscrapedLinksMissingTitles returns unscraped links whose title is
// absent or a sentinel. This is the titles-only frontier.
func (s *LinkStore) UnscrapedLinksMissingTitles(ctx context.Context) ([]model.Link, error) {
	return s.queryLinks(ctx,
		"scraped = ? AND (title IS NULL OR title = ? OR title = ? OR title = '')",
		int64(model.StatusUnscraped), model.TitleNotFound, model.TitleScrapeFailed)
}

// FailedLinks returns every link in the failed state. The rescrape-failed
// frontier reads these without resetting them, so an interrupted retry
// leaves them discoverable by the next run.
func (s *LinkStore) FailedLinks(ctx context.Context) ([]model.Link, error) {
	return s.queryLinks(ctx, "scraped = ?", int64(model.StatusFailed))
}

// LinksMissingPageData returns non-failed links without stored page text.
func (s *LinkStore) LinksMissingPageData(ctx context.Context) ([]model.Link, error) {
	return s.queryLinks(ctx,
		"scraped != ? AND (page_data IS NULL OR page_data = '')",
		int64(model.StatusFailed))
}

// AllLinks returns every row, ordered by id. Intended for exports.
func (s *LinkStore) AllLinks(ctx context.Context) ([]model.Link, error) {
	return s.queryLinks(ctx, "1=1 ORDER BY id")
}

// UpdateLinksBatch writes scrape results (status, title, keyword match,
// and page data) for each link, keyed by URL, in one transaction.
func (s *LinkStore) UpdateLinksBatch(ctx context.Context, links []model.Link) error {
	return s.updateBatch(ctx, links,
		"UPDATE links SET scraped = ?, title = ?, keyword_match = ?, page_data = ? WHERE url = ?",
		func(l model.Link) []any {
			return []any{int64(l.Status), l.Title, nullable(l.KeywordMatch), nullable(l.PageData), l.URL}
		})
}

// UpdateStatusAndTitleBatch writes only status and title for each link,
// keyed by URL. The titles-only mode uses this narrow form so it never
// clobbers keyword matches or page data written by earlier runs.
func (s *LinkStore) UpdateStatusAndTitleBatch(ctx context.Context, links []model.Link) error {
	return s.updateBatch(ctx, links,
		"UPDATE links SET scraped = ?, title = ? WHERE url = ?",
		func(l model.Link) []any {
			return []any{int64(l.Status), l.Title, l.URL}
		})
}

func (s *LinkStore) updateBatch(ctx context.Context, links []model.Link, query string, args func(model.Link) []any) error {
	if s.db == nil {
		return ErrClosed
	}
	if len(links) == 0 {
		return ErrNoLinks
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin update batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("store: prepare update batch: %w", err)
	}
	defer stmt.Close()

	for _, l := range links {
		if _, err := stmt.ExecContext(ctx, args(l)...); err != nil {
			return fmt.Errorf("store: update link %s: %w", l.URL, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit update batch: %w", err)
	}
	return nil
}

// nullable maps an empty string to SQL NULL so optional columns stay NULL
// instead of accumulating empty strings.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ResetFailedLinks moves every failed link back to the unscraped state and
// returns how many rows changed. This is a maintenance operation; the
// rescrape-failed crawl mode deliberately does not call it.
func (s *LinkStore) ResetFailedLinks(ctx context.Context) (int64, error) {
	return s.execCount(ctx,
		"UPDATE links SET scraped = ? WHERE scraped = ?",
		int64(model.StatusUnscraped), int64(model.StatusFailed))
}

// ResetLinksMissingPageData moves every non-failed link without page text
// back to the unscraped state, so the missing-data crawl mode picks them
// up through the normal frontier.
func (s *LinkStore) ResetLinksMissingPageData(ctx context.Context) (int64, error) {
	return s.execCount(ctx,
		"UPDATE links SET scraped = ? WHERE scraped != ? AND (page_data IS NULL OR page_data = '')",
		int64(model.StatusUnscraped), int64(model.StatusFailed))
}

func (s *LinkStore) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("store: exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: rows affected: %w", err)
	}
	return n, nil
}

// TotalLinkCount returns the number of rows in the store.
func (s *LinkStore) TotalLinkCount(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM links").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count links: %w", err)
	}
	return n, nil
}

// Summary aggregates per-state row counts for reporting.
type Summary struct {
	Total        int64
	Unscraped    int64
	Scraped      int64
	Failed       int64
	WithKeyword  int64
	WithPageData int64
}

// Summarize computes row counts per state plus keyword and page data
// coverage, in a single pass over the table.
func (s *LinkStore) Summarize(ctx context.Context) (Summary, error) {
	if s.db == nil {
		return Summary{}, ErrClosed
	}
	const q = `
SELECT
	COUNT(*),
	COALESCE(SUM(scraped = ?), 0),
	COALESCE(SUM(scraped = ?), 0),
	COALESCE(SUM(scraped = ?), 0),
	COALESCE(SUM(keyword_match IS NOT NULL AND keyword_match != ''), 0),
	COALESCE(SUM(page_data IS NOT NULL AND page_data != ''), 0)
FROM links`
	var sum Summary
	err := s.db.QueryRowContext(ctx, q,
		int64(model.StatusUnscraped), int64(model.StatusSuccess), int64(model.StatusFailed)).
		Scan(&sum.Total, &sum.Unscraped, &sum.Scraped, &sum.Failed, &sum.WithKeyword, &sum.WithPageData)
	if err != nil {
		return Summary{}, fmt.Errorf("store: summarize: %w", err)
	}
	return sum, nil
}

// PullTopLevel copies every row whose URL already is its own top-level
// (scheme+host) form into a fresh store at destPath, id and scrape state
// included, and returns how many rows were copied. The destination holds
// exactly the site-root rows of the source, ready for a root-only crawl.
func (s *LinkStore) PullTopLevel(ctx context.Context, destPath string) (int64, error) {
	if s.db == nil {
		return 0, ErrClosed
	}

	links, err := s.queryLinks(ctx, "1=1 ORDER BY id")
	if err != nil {
		return 0, err
	}
	var roots []model.Link
	for _, l := range links {
		if urlutil.TopLevel(l.URL) == l.URL {
			roots = append(roots, l)
		}
	}

	dest, err := Open(destPath, s.logger)
	if err != nil {
		return 0, err
	}
	defer dest.Close()

	tx, err := dest.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin pull top level: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO links (id, url, scraped, title, keyword_match, page_data) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("store: prepare pull top level: %w", err)
	}
	defer stmt.Close()

	var copied int64
	for _, l := range roots {
		res, err := stmt.ExecContext(ctx,
			l.ID, l.URL, int64(l.Status), nullable(l.Title), nullable(l.KeywordMatch), nullable(l.PageData))
		if err != nil {
			return 0, fmt.Errorf("store: pull top level row %s: %w", l.URL, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("store: pull top level row %s: %w", l.URL, err)
		}
		copied += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit pull top level: %w", err)
	}
	return copied, nil
}

// candidatePredicate builds the WHERE clause that narrows the filter
// engine's scan to rows whose stored keyword_match could possibly satisfy
// the set. The predicate over-approximates; exact threshold counting
// happens in Go on the decoded tokens.
func candidatePredicate(ks *keyword.Set) (string, []any) {
	base := "keyword_match IS NOT NULL AND keyword_match != ''"
	var parts []string
	var args []any
	for _, term := range ks.Plains() {
		parts = append(parts, "instr(lower(keyword_match), ?) > 0")
		args = append(args, term)
	}
	for _, id := range ks.AssertIDs() {
		parts = append(parts, "instr(keyword_match, ?) > 0")
		args = append(args, id)
	}
	for _, pattern := range ks.SearchPatterns() {
		parts = append(parts, "keyword_match REGEXP ?")
		args = append(args, pattern)
	}
	if len(parts) == 0 {
		return base, nil
	}
	return base + " AND (" + strings.Join(parts, " OR ") + ")", args
}

// CountMatchCandidates returns how many rows the filter engine will scan
// for the given keyword set, for progress reporting.
func (s *LinkStore) CountMatchCandidates(ctx context.Context, ks *keyword.Set) (int64, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	where, args := candidatePredicate(ks)
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM links WHERE "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count candidates: %w", err)
	}
	return n, nil
}

// StreamMatchCandidates invokes fn for every candidate row in id order.
// Iteration stops on the first error fn returns.
func (s *LinkStore) StreamMatchCandidates(ctx context.Context, ks *keyword.Set, fn func(model.Link) error) error {
	if s.db == nil {
		return ErrClosed
	}
	where, args := candidatePredicate(ks)
	rows, err := s.db.QueryContext(ctx, selectColumns+" WHERE "+where+" ORDER BY id", args...)
	if err != nil {
		return fmt.Errorf("store: stream candidates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		l, ok, err := s.scanLink(rows)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(l); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: iterate candidates: %w", err)
	}
	return nil
}

// InsertRows inserts full link rows (all columns except id) into the
// store, ignoring URL conflicts. The filter engine uses this to populate
// result databases.
func (s *LinkStore) InsertRows(ctx context.Context, links []model.Link) error {
	if s.db == nil {
		return ErrClosed
	}
	if len(links) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin insert rows: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO links (url, scraped, title, keyword_match, page_data) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("store: prepare insert rows: %w", err)
	}
	defer stmt.Close()

	for _, l := range links {
		_, err := stmt.ExecContext(ctx,
			l.URL, int64(l.Status), nullable(l.Title), nullable(l.KeywordMatch), nullable(l.PageData))
		if err != nil {
			return fmt.Errorf("store: insert row %s: %w", l.URL, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit insert rows: %w", err)
	}
	return nil
}
