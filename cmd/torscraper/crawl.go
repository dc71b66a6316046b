package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Serbz/TorScraper-SC/internal/config"
	"github.com/Serbz/TorScraper-SC/internal/crawler"
	"github.com/Serbz/TorScraper-SC/internal/keyword"
	"github.com/Serbz/TorScraper-SC/internal/log"
	"github.com/Serbz/TorScraper-SC/internal/model"
	"github.com/Serbz/TorScraper-SC/internal/report"
	"github.com/Serbz/TorScraper-SC/internal/store"
	"github.com/Serbz/TorScraper-SC/internal/tor"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl Tor hidden services into a SQLite link store",
		Long: `Crawl fetches pages through Tor SOCKS5 proxies, extracts titles, links,
and keyword matches, and persists everything to a SQLite link store.
Interrupted crawls resume where they left off: the store itself is the
frontier.

Examples:
  # Fresh crawl from seed URLs
  torscraper crawl --seeds http://exampleonion.onion --db links.db

  # Resume an interrupted crawl (no seeds needed)
  torscraper crawl --db links.db

  # Retry everything that failed
  torscraper crawl --db links.db --rescrape-failed

  # Fill in missing titles only
  torscraper crawl --db links.db --titles-only

  # Use the embedded Tor daemon instead of external proxies
  torscraper crawl --db links.db --embedded-tor

Press Ctrl+C once for a graceful stop (in-flight results are discarded,
the store stays consistent); twice to abort immediately.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().String("db", config.DefaultDBFile, "SQLite link store path")
	cmd.Flags().StringP("config", "c", "", "Configuration file path (default: .torscraper in current, XDG config, or home directory)")

	cmd.Flags().StringSlice("proxies", config.DefaultProxies, "Tor SOCKS5 proxy addresses")
	cmd.Flags().Bool("embedded-tor", false, "Launch an embedded Tor daemon instead of using --proxies")
	cmd.Flags().Duration("tor-timeout", 3*time.Minute, "Timeout for embedded Tor startup")

	cmd.Flags().Int("workers", config.DefaultWorkers, "Number of concurrent fetch workers")
	cmd.Flags().Int("queue-size", config.DefaultQueueSize, "Work queue capacity")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Per-request timeout")
	cmd.Flags().Duration("crawl-delay", config.DefaultCrawlDelay, "Minimum interval between fetches (0 disables pacing)")
	cmd.Flags().String("user-agent", "", "Override the browser-like User-Agent")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize, "Response body read cap in bytes")
	cmd.Flags().Duration("shutdown-grace", config.DefaultShutdownGrace, "How long a stop lets in-flight fetches finish")

	cmd.Flags().StringSlice("seeds", nil, "Seed URLs for a fresh crawl")
	cmd.Flags().String("seeds-file", "", "Extract seed URLs from a text file")
	cmd.Flags().Bool("rescrape-failed", false, "Re-enqueue failed links instead of crawling fresh")
	cmd.Flags().Bool("rescrape-missing-data", false, "Reset and re-enqueue links without stored page text")
	cmd.Flags().Bool("titles-only", false, "Single pass filling in missing titles only")
	cmd.Flags().Bool("onion-only", false, "Keep only .onion links during discovery")
	cmd.Flags().Bool("top-level-only", false, "Collapse discovered links to site roots")

	cmd.Flags().StringSlice("keywords", nil, "Keyword entries matched against page text")
	cmd.Flags().String("keywords-file", "", "Keyword entries from a file, one per line")
	cmd.Flags().String("save-page-data", config.DefaultSaveMode, `When to store page text: "All", "Keyword Match", or "None"`)

	cmd.Flags().String("log-file", "", "Write logs to a file instead of stderr")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildCrawlConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	if closeLog != nil {
		defer closeLog.Close()
	}

	ks, err := keyword.NewSet(cfg.Keywords)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBFile, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pool, cleanup, err := buildProxyPool(ctx, cmd, cfg, logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	ctrl := crawler.NewControls()
	installSignalHandler(ctx, cancel, ctrl, logger)

	// Prune finished task telemetry periodically so the live table does
	// not grow without bound.
	go func() {
		ticker := time.NewTicker(model.DisplayGracePeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ctrl.Tasks.Prune(model.DisplayGracePeriod)
			}
		}
	}()

	c := crawler.New(st, pool,
		crawler.WithLogger(logger),
		crawler.WithControls(ctrl),
		crawler.WithKeywords(ks),
		crawler.WithMode(cfg.CrawlMode()),
		crawler.WithSaveMode(cfg.ParsedSaveMode()),
		crawler.WithSeeds(cfg.Seeds),
		crawler.WithWorkers(cfg.Workers),
		crawler.WithQueueSize(cfg.QueueSize),
		crawler.WithOnionOnly(cfg.OnionOnly),
		crawler.WithTopLevelOnly(cfg.TopLevelOnly),
		crawler.WithCrawlDelay(cfg.CrawlDelay),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithShutdownGrace(cfg.ShutdownGrace),
	)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	sum, err := st.Summarize(ctx)
	if err != nil {
		return err
	}
	_, err = report.NewTextWriter(cmd.OutOrStdout()).Write(&report.CrawlReport{
		DatabasePath: cfg.DBFile,
		GeneratedAt:  time.Now(),
		Summary:      sum,
	})
	return err
}

// buildCrawlConfig layers defaults, the config file, and explicit flags,
// in that order.
func buildCrawlConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.New()

	explicitPath, _ := cmd.Flags().GetString("config")
	if path := config.FindConfigFile(explicitPath); path != "" {
		f, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := f.Apply(cfg); err != nil {
			return nil, err
		}
	} else if explicitPath != "" {
		return nil, config.ErrConfigNotFound
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBFile, _ = flags.GetString("db")
	}
	if flags.Changed("proxies") {
		cfg.Proxies, _ = flags.GetStringSlice("proxies")
	}
	if flags.Changed("embedded-tor") {
		cfg.EmbeddedTor, _ = flags.GetBool("embedded-tor")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("queue-size") {
		cfg.QueueSize, _ = flags.GetInt("queue-size")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("crawl-delay") {
		cfg.CrawlDelay, _ = flags.GetDuration("crawl-delay")
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent, _ = flags.GetString("user-agent")
	}
	if flags.Changed("max-body-size") {
		cfg.MaxBodySize, _ = flags.GetInt64("max-body-size")
	}
	if flags.Changed("shutdown-grace") {
		cfg.ShutdownGrace, _ = flags.GetDuration("shutdown-grace")
	}
	if flags.Changed("keywords") {
		cfg.Keywords, _ = flags.GetStringSlice("keywords")
	}
	if flags.Changed("save-page-data") {
		cfg.SaveMode, _ = flags.GetString("save-page-data")
	}
	if flags.Changed("log-file") {
		cfg.LogFile, _ = flags.GetString("log-file")
	}

	cfg.RescrapeFailed, _ = flags.GetBool("rescrape-failed")
	cfg.RescrapeMissingData, _ = flags.GetBool("rescrape-missing-data")
	cfg.TitlesOnly, _ = flags.GetBool("titles-only")
	cfg.OnionOnly, _ = flags.GetBool("onion-only")
	cfg.TopLevelOnly, _ = flags.GetBool("top-level-only")
	cfg.Verbose, _ = cmd.Flags().GetBool("verbose")

	cfg.Seeds, _ = flags.GetStringSlice("seeds")
	if seedsFile, _ := flags.GetString("seeds-file"); seedsFile != "" {
		seeds, err := config.LoadSeedsFile(seedsFile)
		if err != nil {
			return nil, err
		}
		cfg.Seeds = append(cfg.Seeds, seeds...)
	}
	if kwFile, _ := flags.GetString("keywords-file"); kwFile != "" {
		kws, err := config.LoadKeywordsFile(kwFile)
		if err != nil {
			return nil, err
		}
		cfg.Keywords = append(cfg.Keywords, kws...)
	}

	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	if cfg.LogFile != "" {
		return log.NewFileLogger(cfg.LogFile, cfg.Verbose)
	}
	return log.NewSecureLogger(os.Stderr, cfg.Verbose), nil, nil
}

// buildProxyPool returns the crawl's client source: either a pool over
// the configured external proxies or a freshly bootstrapped embedded Tor
// daemon. The returned cleanup stops the embedded daemon.
func buildProxyPool(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*tor.ProxyPool, func(), error) {
	if cfg.EmbeddedTor {
		torTimeout, _ := cmd.Flags().GetDuration("tor-timeout")
		logger.Info("starting embedded Tor daemon, this can take a few minutes")
		embedded := tor.NewEmbeddedTor(tor.WithStartupTimeout(torTimeout))
		if err := embedded.Start(ctx); err != nil {
			return nil, nil, err
		}
		pool, err := embedded.NewProxyPool(cfg.Timeout)
		if err != nil {
			_ = embedded.Stop() //nolint:errcheck // already failing
			return nil, nil, err
		}
		logger.Info("embedded Tor ready", slog.String("socks", embedded.SocksAddr()))
		return pool, func() { _ = embedded.Stop() }, nil
	}

	pool, err := tor.NewProxyPool(cfg.Proxies, cfg.Timeout)
	if err != nil {
		return nil, nil, err
	}
	for addr, status := range pool.CheckAll(ctx) {
		if status != tor.ProxyStatusOK {
			logger.Warn("proxy check failed",
				slog.String("proxy", addr),
				slog.String("status", status.String()))
		}
	}
	return pool, nil, nil
}

// installSignalHandler wires Ctrl+C to a graceful stop, and a second
// Ctrl+C to an immediate context cancellation.
func installSignalHandler(ctx context.Context, cancel context.CancelFunc, ctrl *crawler.Controls, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			logger.Info("stop requested, letting in-flight fetches finish")
			ctrl.Stop.Set()
		}
		select {
		case <-ctx.Done():
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "aborting immediately")
			cancel()
		}
	}()
}
