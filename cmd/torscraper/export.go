package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Serbz/TorScraper-SC/internal/config"
	"github.com/Serbz/TorScraper-SC/internal/log"
	"github.com/Serbz/TorScraper-SC/internal/report"
	"github.com/Serbz/TorScraper-SC/internal/store"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a link store as text, JSON, or Markdown",
		Long: `Export renders a link store's summary and full link listing in the
chosen format.

Examples:
  torscraper export --db links.db
  torscraper export --db links.db --format json --output links.json
  torscraper export --db links.db --format markdown --summary-only`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	cmd.Flags().String("db", config.DefaultDBFile, "Link store path")
	cmd.Flags().StringP("format", "f", "text", `Output format: "text", "json", or "markdown"`)
	cmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().Bool("summary-only", false, "Omit the per-link listing")

	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	summaryOnly, _ := cmd.Flags().GetBool("summary-only")
	verbose, _ := cmd.Flags().GetBool("verbose")

	logger := log.NewSecureLogger(os.Stderr, verbose)
	st, err := store.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	r := &report.CrawlReport{
		DatabasePath: dbPath,
		GeneratedAt:  time.Now(),
	}
	if r.Summary, err = st.Summarize(ctx); err != nil {
		return err
	}
	if !summaryOnly {
		if r.Links, err = st.AllLinks(ctx); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath) //nolint:gosec // user-provided output path is intentional
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	var w report.Writer
	switch format {
	case "text":
		w = report.NewTextWriter(out)
	case "json":
		w = report.NewJSONWriter(out)
	case "markdown":
		w = report.NewMarkdownWriter(out)
	default:
		return fmt.Errorf("unknown format %q (want text, json, or markdown)", format)
	}

	_, err = w.Write(r)
	return err
}
