package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Serbz/TorScraper-SC/internal/config"
	"github.com/Serbz/TorScraper-SC/internal/filter"
	"github.com/Serbz/TorScraper-SC/internal/keyword"
	"github.com/Serbz/TorScraper-SC/internal/log"
	"github.com/Serbz/TorScraper-SC/internal/store"
)

// NewFilterCmd creates the filter command.
func NewFilterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Copy keyword-matching rows into a fresh database",
		Long: `Filter scans an existing link store and copies every row whose stored
keyword matches cover at least --threshold distinct keywords into a new
database. The source database is never modified.

Examples:
  # Rows matching at least two of the given keywords
  torscraper filter --db links.db --out matches.db \
      --keywords bitcoin --keywords escrow --threshold 2

  # Keywords from a file, one per line
  torscraper filter --db links.db --out matches.db \
      --keywords-file keywords.txt`,
		Args: cobra.NoArgs,
		RunE: runFilterCmd,
	}

	cmd.Flags().String("db", config.DefaultDBFile, "Source link store path")
	cmd.Flags().StringP("out", "o", "", "Result database path (required)")
	cmd.Flags().StringSlice("keywords", nil, "Keyword entries to match against stored results")
	cmd.Flags().String("keywords-file", "", "Keyword entries from a file, one per line")
	cmd.Flags().Int("threshold", 1, "Minimum number of distinct matching keywords")
	cmd.Flags().Int("batch-size", 0, "Result write batch size (0 uses the default)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runFilterCmd(cmd *cobra.Command, _ []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	outPath, _ := cmd.Flags().GetString("out")
	threshold, _ := cmd.Flags().GetInt("threshold")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	verbose, _ := cmd.Flags().GetBool("verbose")

	raws, _ := cmd.Flags().GetStringSlice("keywords")
	if kwFile, _ := cmd.Flags().GetString("keywords-file"); kwFile != "" {
		fromFile, err := config.LoadKeywordsFile(kwFile)
		if err != nil {
			return err
		}
		raws = append(raws, fromFile...)
	}
	ks, err := keyword.NewSet(raws)
	if err != nil {
		return err
	}

	logger := log.NewSecureLogger(os.Stderr, verbose)
	src, err := store.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	opts := []filter.Option{
		filter.WithLogger(logger),
		filter.WithProgress(func(pct int) {
			if pct == filter.ProgressCalculating {
				fmt.Fprint(cmd.ErrOrStderr(), "\rcalculating...")
				return
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "\rfiltering: %3d%%", pct)
		}),
	}
	if batchSize > 0 {
		opts = append(opts, filter.WithBatchSize(batchSize))
	}

	matched, err := filter.New(src, ks, threshold, opts...).Run(cmd.Context(), outPath)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d matching links written to %s\n", matched, outPath)
	return nil
}
