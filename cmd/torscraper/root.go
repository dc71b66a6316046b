package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for torscraper.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "torscraper",
		Short: "Keyword-matching crawler for Tor hidden services",
		Long: `torscraper crawls Tor hidden services (.onion addresses) through one or
more SOCKS5 proxies, persisting every discovered link in a SQLite link
store. Page titles, keyword matches, and optionally full page text are
recorded per link; interrupted crawls resume from the stored state.

The filter command scans an existing link store and copies rows matching
a minimum number of distinct keywords into a fresh result database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewFilterCmd())
	cmd.AddCommand(NewPullCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
