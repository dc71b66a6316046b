package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/Serbz/TorScraper-SC/internal/keyword"
	"github.com/Serbz/TorScraper-SC/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *LinkStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "links.db"), testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil && err != ErrClosed {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("empty path fails", func(t *testing.T) {
		t.Parallel()
		if _, err := Open("", testLogger()); err != ErrEmptyDatabasePath {
			t.Errorf("Open(\"\") error = %v, want ErrEmptyDatabasePath", err)
		}
	})

	t.Run("reopen preserves data", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "links.db")
		ctx := context.Background()

		s, err := Open(path, testLogger())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if _, err := s.AddLinks(ctx, []string{"http://a.onion"}, false); err != nil {
			t.Fatalf("AddLinks() error = %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		s, err = Open(path, testLogger())
		if err != nil {
			t.Fatalf("reopen error = %v", err)
		}
		defer s.Close()
		n, err := s.TotalLinkCount(ctx)
		if err != nil {
			t.Fatalf("TotalLinkCount() error = %v", err)
		}
		if n != 1 {
			t.Errorf("TotalLinkCount() = %d, want 1", n)
		}
	})
}

func TestLinkStoreAddLinks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("normalizes and deduplicates", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)
		n, err := s.AddLinks(ctx, []string{"http://a.onion/", "http://a.onion"}, false)
		if err != nil {
			t.Fatalf("AddLinks() error = %v", err)
		}
		if n != 1 {
			t.Errorf("inserted = %d, want 1", n)
		}
		links, err := s.UnscrapedLinks(ctx)
		if err != nil {
			t.Fatalf("UnscrapedLinks() error = %v", err)
		}
		if len(links) != 1 || links[0].URL != "http://a.onion" {
			t.Errorf("stored links = %+v, want single normalized URL", links)
		}
	})

	t.Run("skips junk domains", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)
		n, err := s.AddLinks(ctx, []string{"http://aaaaaaaaaa.onion/x"}, false)
		if err != nil {
			t.Fatalf("AddLinks() error = %v", err)
		}
		if n != 0 {
			t.Errorf("inserted = %d, want 0", n)
		}
	})

	t.Run("also inserts top-level form", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)
		n, err := s.AddLinks(ctx, []string{"http://a.onion/deep/page"}, true)
		if err != nil {
			t.Fatalf("AddLinks() error = %v", err)
		}
		if n != 2 {
			t.Errorf("inserted = %d, want 2", n)
		}
	})
}

func TestLinkStoreFrontiers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	urls := []string{"http://a.onion", "http://b.onion", "http://c.onion", "http://d.onion"}
	if _, err := s.AddLinks(ctx, urls, false); err != nil {
		t.Fatalf("AddLinks() error = %v", err)
	}

	// a: success with everything; b: failed; c: success without page data;
	// d: stays unscraped.
	err := s.UpdateLinksBatch(ctx, []model.Link{
		{URL: "http://a.onion", Status: model.StatusSuccess, Title: "Site A", KeywordMatch: "bitcoin", PageData: "text"},
		{URL: "http://b.onion", Status: model.StatusFailed, Title: model.TitleScrapeFailed},
		{URL: "http://c.onion", Status: model.StatusSuccess, Title: "Site C"},
	})
	if err != nil {
		t.Fatalf("UpdateLinksBatch() error = %v", err)
	}

	t.Run("unscraped", func(t *testing.T) {
		links, err := s.UnscrapedLinks(ctx)
		if err != nil {
			t.Fatalf("UnscrapedLinks() error = %v", err)
		}
		if len(links) != 1 || links[0].URL != "http://d.onion" {
			t.Errorf("UnscrapedLinks() = %+v, want only d", links)
		}
	})

	t.Run("failed", func(t *testing.T) {
		links, err := s.FailedLinks(ctx)
		if err != nil {
			t.Fatalf("FailedLinks() error = %v", err)
		}
		if len(links) != 1 || links[0].URL != "http://b.onion" {
			t.Errorf("FailedLinks() = %+v, want only b", links)
		}
	})

	t.Run("missing page data excludes failed", func(t *testing.T) {
		links, err := s.LinksMissingPageData(ctx)
		if err != nil {
			t.Fatalf("LinksMissingPageData() error = %v", err)
		}
		got := map[string]bool{}
		for _, l := range links {
			got[l.URL] = true
		}
		if len(got) != 2 || !got["http://c.onion"] || !got["http://d.onion"] {
			t.Errorf("LinksMissingPageData() = %+v, want c and d", links)
		}
	})

	t.Run("missing titles", func(t *testing.T) {
		links, err := s.UnscrapedLinksMissingTitles(ctx)
		if err != nil {
			t.Fatalf("UnscrapedLinksMissingTitles() error = %v", err)
		}
		if len(links) != 1 || links[0].URL != "http://d.onion" {
			t.Errorf("UnscrapedLinksMissingTitles() = %+v, want only d", links)
		}
	})

	t.Run("summary", func(t *testing.T) {
		sum, err := s.Summarize(ctx)
		if err != nil {
			t.Fatalf("Summarize() error = %v", err)
		}
		want := Summary{Total: 4, Unscraped: 1, Scraped: 2, Failed: 1, WithKeyword: 1, WithPageData: 1}
		if sum != want {
			t.Errorf("Summarize() = %+v, want %+v", sum, want)
		}
	})
}

func TestLinkStoreResets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reset failed links", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)
		if _, err := s.AddLinks(ctx, []string{"http://a.onion"}, false); err != nil {
			t.Fatalf("AddLinks() error = %v", err)
		}
		err := s.UpdateLinksBatch(ctx, []model.Link{
			{URL: "http://a.onion", Status: model.StatusFailed, Title: model.TitleScrapeFailed},
		})
		if err != nil {
			t.Fatalf("UpdateLinksBatch() error = %v", err)
		}
		n, err := s.ResetFailedLinks(ctx)
		if err != nil {
			t.Fatalf("ResetFailedLinks() error = %v", err)
		}
		if n != 1 {
			t.Errorf("reset = %d, want 1", n)
		}
	})

	t.Run("reset missing page data skips failed", func(t *testing.T) {
		t.Parallel()
		s := openTestStore(t)
		if _, err := s.AddLinks(ctx, []string{"http://a.onion", "http://b.onion"}, false); err != nil {
			t.Fatalf("AddLinks() error = %v", err)
		}
		err := s.UpdateLinksBatch(ctx, []model.Link{
			{URL: "http://a.onion", Status: model.StatusSuccess, Title: "A"},
			{URL: "http://b.onion", Status: model.StatusFailed, Title: model.TitleScrapeFailed},
		})
		if err != nil {
			t.Fatalf("UpdateLinksBatch() error = %v", err)
		}
		n, err := s.ResetLinksMissingPageData(ctx)
		if err != nil {
			t.Fatalf("ResetLinksMissingPageData() error = %v", err)
		}
		if n != 1 {
			t.Errorf("reset = %d, want 1", n)
		}
		failed, err := s.FailedLinks(ctx)
		if err != nil {
			t.Fatalf("FailedLinks() error = %v", err)
		}
		if len(failed) != 1 {
			t.Errorf("failed rows after reset = %d, want 1", len(failed))
		}
	})
}

func TestLinkStoreTitlesOnlyUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.AddLinks(ctx, []string{"http://a.onion"}, false); err != nil {
		t.Fatalf("AddLinks() error = %v", err)
	}
	err := s.UpdateLinksBatch(ctx, []model.Link{
		{URL: "http://a.onion", Status: model.StatusUnscraped, Title: "", KeywordMatch: "bitcoin", PageData: "old text"},
	})
	if err != nil {
		t.Fatalf("UpdateLinksBatch() error = %v", err)
	}

	err = s.UpdateStatusAndTitleBatch(ctx, []model.Link{
		{URL: "http://a.onion", Status: model.StatusSuccess, Title: "Site A"},
	})
	if err != nil {
		t.Fatalf("UpdateStatusAndTitleBatch() error = %v", err)
	}

	links, err := s.AllLinks(ctx)
	if err != nil {
		t.Fatalf("AllLinks() error = %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("AllLinks() len = %d, want 1", len(links))
	}
	got := links[0]
	if got.Title != "Site A" || got.Status != model.StatusSuccess {
		t.Errorf("narrow update missed: %+v", got)
	}
	if got.KeywordMatch != "bitcoin" || got.PageData != "old text" {
		t.Errorf("narrow update clobbered other columns: %+v", got)
	}
}

func TestLinkStorePullTopLevel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	urls := []string{
		"http://a.onion",
		"http://a.onion/page1",
		"http://a.onion/page2",
		"http://b.onion",
	}
	if _, err := s.AddLinks(ctx, urls, false); err != nil {
		t.Fatalf("AddLinks() error = %v", err)
	}
	err := s.UpdateLinksBatch(ctx, []model.Link{
		{URL: "http://a.onion", Status: model.StatusSuccess, Title: "Root Title",
			KeywordMatch: "alpha", PageData: "root text"},
	})
	if err != nil {
		t.Fatalf("UpdateLinksBatch() error = %v", err)
	}
	srcRows, err := s.AllLinks(ctx)
	if err != nil {
		t.Fatalf("AllLinks() error = %v", err)
	}
	srcIDs := make(map[string]int64, len(srcRows))
	for _, l := range srcRows {
		srcIDs[l.URL] = l.ID
	}

	destPath := filepath.Join(t.TempDir(), "pulled.db")
	n, err := s.PullTopLevel(ctx, destPath)
	if err != nil {
		t.Fatalf("PullTopLevel() error = %v", err)
	}
	if n != 2 {
		t.Errorf("pulled = %d, want 2", n)
	}

	dest, err := Open(destPath, testLogger())
	if err != nil {
		t.Fatalf("Open(dest) error = %v", err)
	}
	defer dest.Close()
	pulled, err := dest.AllLinks(ctx)
	if err != nil {
		t.Fatalf("AllLinks(dest) error = %v", err)
	}
	if len(pulled) != 2 {
		t.Fatalf("dest rows = %d, want 2: %v", len(pulled), pulled)
	}
	byURL := make(map[string]model.Link, len(pulled))
	for _, l := range pulled {
		byURL[l.URL] = l
	}
	// Only rows already in root form are copied, and they keep their id
	// and scrape state. Deep URLs never produce fabricated root rows.
	root, ok := byURL["http://a.onion"]
	if !ok {
		t.Fatalf("root row for a.onion missing: %v", pulled)
	}
	if root.ID != srcIDs["http://a.onion"] {
		t.Errorf("root id = %d, want %d", root.ID, srcIDs["http://a.onion"])
	}
	if root.Status != model.StatusSuccess || root.Title != "Root Title" ||
		root.KeywordMatch != "alpha" || root.PageData != "root text" {
		t.Errorf("root row lost scrape state: %+v", root)
	}
	b, ok := byURL["http://b.onion"]
	if !ok {
		t.Fatalf("root row for b.onion missing: %v", pulled)
	}
	if b.Status != model.StatusUnscraped || b.ID != srcIDs["http://b.onion"] {
		t.Errorf("b row = %+v, want unscraped with source id", b)
	}
}

func TestLinkStoreMatchCandidates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.AddLinks(ctx, []string{"http://a.onion", "http://b.onion", "http://c.onion"}, false); err != nil {
		t.Fatalf("AddLinks() error = %v", err)
	}
	err := s.UpdateLinksBatch(ctx, []model.Link{
		{URL: "http://a.onion", Status: model.StatusSuccess, Title: "A", KeywordMatch: keyword.Join([]string{"Bitcoin", "btc42"})},
		{URL: "http://b.onion", Status: model.StatusSuccess, Title: "B", KeywordMatch: "monero"},
		{URL: "http://c.onion", Status: model.StatusSuccess, Title: "C"},
	})
	if err != nil {
		t.Fatalf("UpdateLinksBatch() error = %v", err)
	}

	ks, err := keyword.NewSet([]string{"bitcoin", "REGEX: btc[0-9]+"})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}

	n, err := s.CountMatchCandidates(ctx, ks)
	if err != nil {
		t.Fatalf("CountMatchCandidates() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CountMatchCandidates() = %d, want 1", n)
	}

	var streamed []string
	err = s.StreamMatchCandidates(ctx, ks, func(l model.Link) error {
		streamed = append(streamed, l.URL)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamMatchCandidates() error = %v", err)
	}
	if len(streamed) != 1 || streamed[0] != "http://a.onion" {
		t.Errorf("streamed = %v, want [http://a.onion]", streamed)
	}
}

func TestLinkStoreInsertRows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	rows := []model.Link{
		{URL: "http://a.onion", Status: model.StatusSuccess, Title: "A", KeywordMatch: "bitcoin", PageData: "text"},
		{URL: "http://a.onion", Status: model.StatusSuccess, Title: "dup"},
	}
	if err := s.InsertRows(ctx, rows); err != nil {
		t.Fatalf("InsertRows() error = %v", err)
	}

	links, err := s.AllLinks(ctx)
	if err != nil {
		t.Fatalf("AllLinks() error = %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("AllLinks() len = %d, want 1", len(links))
	}
	if links[0].Title != "A" || links[0].PageData != "text" {
		t.Errorf("first insert should win: %+v", links[0])
	}
}
