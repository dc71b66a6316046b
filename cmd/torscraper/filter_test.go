package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Serbz/TorScraper-SC/internal/keyword"
	"github.com/Serbz/TorScraper-SC/internal/model"
	"github.com/Serbz/TorScraper-SC/internal/store"
)

func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "links.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(path, logger)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if _, err := st.AddLinks(ctx, []string{"http://a.onion/page", "http://b.onion"}, false); err != nil {
		t.Fatalf("AddLinks() error = %v", err)
	}
	err = st.UpdateLinksBatch(ctx, []model.Link{
		{URL: "http://a.onion/page", Status: model.StatusSuccess, Title: "A",
			KeywordMatch: keyword.Join([]string{"bitcoin", "escrow"})},
		{URL: "http://b.onion", Status: model.StatusSuccess, Title: "B", KeywordMatch: "bitcoin"},
	})
	if err != nil {
		t.Fatalf("UpdateLinksBatch() error = %v", err)
	}
	return path
}

func TestFilterCmd(t *testing.T) {
	t.Parallel()

	dbPath := seedDatabase(t)
	outPath := filepath.Join(t.TempDir(), "matches.db")

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{
		"filter",
		"--db", dbPath,
		"--out", outPath,
		"--keywords", "bitcoin",
		"--keywords", "escrow",
		"--threshold", "2",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "1 matching links") {
		t.Errorf("output = %q, want one match reported", out.String())
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dest, err := store.Open(outPath, logger)
	if err != nil {
		t.Fatalf("store.Open(dest) error = %v", err)
	}
	defer dest.Close()
	links, err := dest.AllLinks(context.Background())
	if err != nil {
		t.Fatalf("AllLinks() error = %v", err)
	}
	if len(links) != 1 || links[0].URL != "http://a.onion/page" {
		t.Errorf("dest rows = %+v, want only the two-keyword row", links)
	}
}

func TestPullCmd(t *testing.T) {
	t.Parallel()

	dbPath := seedDatabase(t)
	outPath := filepath.Join(t.TempDir(), "roots.db")

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"pull", "--db", dbPath, "--out", outPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	// Only http://b.onion is already in root form; the deep a.onion URL
	// contributes nothing.
	if !strings.Contains(out.String(), "1 site roots") {
		t.Errorf("output = %q, want one root reported", out.String())
	}
}

func TestExportCmd(t *testing.T) {
	t.Parallel()

	dbPath := seedDatabase(t)

	t.Run("json to stdout", func(t *testing.T) {
		t.Parallel()
		cmd := NewRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"export", "--db", dbPath, "--format", "json"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		for _, want := range []string{`"total": 2`, "http://a.onion/page"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("output missing %q:\n%s", want, out.String())
			}
		}
	})

	t.Run("unknown format fails", func(t *testing.T) {
		t.Parallel()
		cmd := NewRootCmd()
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"export", "--db", dbPath, "--format", "yaml"})
		if err := cmd.Execute(); err == nil {
			t.Error("Execute() error = nil, want unknown format error")
		}
	})
}
