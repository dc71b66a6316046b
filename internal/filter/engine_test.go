package filter

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/Serbz/TorScraper-SC/internal/keyword"
	"github.com/Serbz/TorScraper-SC/internal/model"
	"github.com/Serbz/TorScraper-SC/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedSource(t *testing.T) *store.LinkStore {
	t.Helper()
	ctx := context.Background()
	src, err := store.Open(filepath.Join(t.TempDir(), "src.db"), testLogger())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { src.Close() })

	urls := []string{"http://a.onion", "http://b.onion", "http://c.onion", "http://d.onion"}
	if _, err := src.AddLinks(ctx, urls, false); err != nil {
		t.Fatalf("AddLinks() error = %v", err)
	}
	err = src.UpdateLinksBatch(ctx, []model.Link{
		// Two distinct keywords.
		{URL: "http://a.onion", Status: model.StatusSuccess, Title: "A",
			KeywordMatch: keyword.Join([]string{"bitcoin", "escrow"}), PageData: "text a"},
		// One keyword.
		{URL: "http://b.onion", Status: model.StatusSuccess, Title: "B",
			KeywordMatch: "bitcoin"},
		// Matches outside the configured set.
		{URL: "http://c.onion", Status: model.StatusSuccess, Title: "C",
			KeywordMatch: "monero"},
		// No matches at all.
		{URL: "http://d.onion", Status: model.StatusSuccess, Title: "D"},
	})
	if err != nil {
		t.Fatalf("UpdateLinksBatch() error = %v", err)
	}
	return src
}

func TestEngineRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	newKeywords := func(t *testing.T) *keyword.Set {
		t.Helper()
		ks, err := keyword.NewSet([]string{"bitcoin", "escrow"})
		if err != nil {
			t.Fatalf("NewSet() error = %v", err)
		}
		return ks
	}

	t.Run("threshold two selects only fully matching rows", func(t *testing.T) {
		t.Parallel()
		src := seedSource(t)
		destPath := filepath.Join(t.TempDir(), "out.db")

		var progress []int
		e := New(src, newKeywords(t), 2,
			WithLogger(testLogger()),
			WithProgress(func(pct int) { progress = append(progress, pct) }))

		matched, err := e.Run(ctx, destPath)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if matched != 1 {
			t.Errorf("matched = %d, want 1", matched)
		}

		dest, err := store.Open(destPath, testLogger())
		if err != nil {
			t.Fatalf("Open(dest) error = %v", err)
		}
		defer dest.Close()
		links, err := dest.AllLinks(ctx)
		if err != nil {
			t.Fatalf("AllLinks() error = %v", err)
		}
		if len(links) != 1 || links[0].URL != "http://a.onion" {
			t.Fatalf("dest rows = %+v, want only a", links)
		}
		if links[0].PageData != "text a" {
			t.Errorf("page data not carried over: %+v", links[0])
		}

		if len(progress) == 0 || progress[0] != ProgressCalculating {
			t.Errorf("progress = %v, want leading ProgressCalculating", progress)
		}
		if progress[len(progress)-1] != 100 {
			t.Errorf("progress = %v, want trailing 100", progress)
		}
	})

	t.Run("threshold one selects any overlap", func(t *testing.T) {
		t.Parallel()
		src := seedSource(t)
		destPath := filepath.Join(t.TempDir(), "out.db")

		matched, err := New(src, newKeywords(t), 1, WithLogger(testLogger())).Run(ctx, destPath)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if matched != 2 {
			t.Errorf("matched = %d, want 2 (a and b)", matched)
		}
	})

	t.Run("no candidates reports completion", func(t *testing.T) {
		t.Parallel()
		src := seedSource(t)
		ks, err := keyword.NewSet([]string{"zzznotpresent"})
		if err != nil {
			t.Fatalf("NewSet() error = %v", err)
		}
		destPath := filepath.Join(t.TempDir(), "out.db")

		var last int
		matched, err := New(src, ks, 1,
			WithLogger(testLogger()),
			WithProgress(func(pct int) { last = pct })).Run(ctx, destPath)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if matched != 0 {
			t.Errorf("matched = %d, want 0", matched)
		}
		if last != 100 {
			t.Errorf("final progress = %d, want 100", last)
		}
	})

	t.Run("empty keyword set fails", func(t *testing.T) {
		t.Parallel()
		src := seedSource(t)
		ks, err := keyword.NewSet(nil)
		if err != nil {
			t.Fatalf("NewSet() error = %v", err)
		}
		if _, err := New(src, ks, 1).Run(ctx, filepath.Join(t.TempDir(), "out.db")); err != ErrNoKeywords {
			t.Errorf("Run() error = %v, want ErrNoKeywords", err)
		}
	})

	t.Run("small batch size still copies everything", func(t *testing.T) {
		t.Parallel()
		src := seedSource(t)
		destPath := filepath.Join(t.TempDir(), "out.db")

		matched, err := New(src, newKeywords(t), 1,
			WithLogger(testLogger()),
			WithBatchSize(1)).Run(ctx, destPath)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if matched != 2 {
			t.Errorf("matched = %d, want 2", matched)
		}
	})
}
