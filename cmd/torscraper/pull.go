package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Serbz/TorScraper-SC/internal/config"
	"github.com/Serbz/TorScraper-SC/internal/log"
	"github.com/Serbz/TorScraper-SC/internal/store"
)

// NewPullCmd creates the pull command.
func NewPullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Copy the site-root rows into a new database",
		Long: `Pull copies every row whose URL is a bare site root (scheme and host
only) into a fresh database, keeping ids, titles, keyword matches, and
page data. The result is a compact database of known site roots with
their scrape state intact.

Example:
  torscraper pull --db links.db --out roots.db`,
		Args: cobra.NoArgs,
		RunE: runPullCmd,
	}

	cmd.Flags().String("db", config.DefaultDBFile, "Source link store path")
	cmd.Flags().StringP("out", "o", "", "Destination database path (required)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runPullCmd(cmd *cobra.Command, _ []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	outPath, _ := cmd.Flags().GetString("out")
	verbose, _ := cmd.Flags().GetBool("verbose")

	logger := log.NewSecureLogger(os.Stderr, verbose)
	src, err := store.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	n, err := src.PullTopLevel(cmd.Context(), outPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d site roots written to %s\n", n, outPath)
	return nil
}
