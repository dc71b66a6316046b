package crawler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Serbz/TorScraper-SC/internal/keyword"
	"github.com/Serbz/TorScraper-SC/internal/model"
	"github.com/Serbz/TorScraper-SC/internal/store"
)

// Defaults applied by New when the corresponding option is not given.
const (
	// DefaultWorkers matches one worker per proxy endpoint in a typical
	// multi-instance Tor setup.
	DefaultWorkers = 7

	// DefaultQueueSize bounds producer memory while keeping workers fed.
	DefaultQueueSize = 1000

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize = 5 << 20

	// DefaultShutdownGrace is how long a stop request waits for in-flight
	// fetches before the context is cancelled under them.
	DefaultShutdownGrace = 10 * time.Second
)

// Crawler wires the producer, the worker pool, and their shared queue
// over a link store and a Tor client source.
type Crawler struct {
	store    *store.LinkStore
	clients  ClientSource
	logger   *slog.Logger
	controls *Controls
	keywords *keyword.Set

	mode          model.CrawlMode
	saveMode      model.SaveMode
	seeds         []string
	workers       int
	queueSize     int
	onionOnly     bool
	topLevelOnly  bool
	crawlDelay    time.Duration
	maxBodySize   int64
	userAgent     string
	shutdownGrace time.Duration
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) { c.logger = l }
}

// WithControls attaches externally owned crawl controls so a caller can
// stop, pause, and observe the run. Defaults to a private Controls.
func WithControls(ctrl *Controls) Option {
	return func(c *Crawler) { c.controls = ctrl }
}

// WithKeywords sets the keyword set matched against every page.
func WithKeywords(ks *keyword.Set) Option {
	return func(c *Crawler) { c.keywords = ks }
}

// WithMode sets the crawl mode. Defaults to ModeFresh.
func WithMode(m model.CrawlMode) Option {
	return func(c *Crawler) { c.mode = m }
}

// WithSaveMode sets the page text persistence policy. Defaults to
// SaveNone.
func WithSaveMode(m model.SaveMode) Option {
	return func(c *Crawler) { c.saveMode = m }
}

// WithSeeds sets the seed URLs inserted before a fresh crawl.
func WithSeeds(seeds []string) Option {
	return func(c *Crawler) { c.seeds = seeds }
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQueueSize sets the work queue capacity.
func WithQueueSize(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithOnionOnly restricts discovered links to .onion hosts.
func WithOnionOnly(v bool) Option {
	return func(c *Crawler) { c.onionOnly = v }
}

// WithTopLevelOnly collapses discovered links to their site roots.
func WithTopLevelOnly(v bool) Option {
	return func(c *Crawler) { c.topLevelOnly = v }
}

// WithCrawlDelay sets the minimum interval between fetches across the
// whole pool. Zero disables rate limiting.
func WithCrawlDelay(d time.Duration) Option {
	return func(c *Crawler) { c.crawlDelay = d }
}

// WithMaxBodySize caps response body reads.
func WithMaxBodySize(n int64) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithUserAgent overrides the browser user agent sent with fetches.
func WithUserAgent(ua string) Option {
	return func(c *Crawler) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithShutdownGrace sets how long a stop request lets in-flight fetches
// finish before cancelling them.
func WithShutdownGrace(d time.Duration) Option {
	return func(c *Crawler) {
		if d > 0 {
			c.shutdownGrace = d
		}
	}
}

// New creates a Crawler over the given store and client source.
func New(st *store.LinkStore, clients ClientSource, opts ...Option) *Crawler {
	c := &Crawler{
		store:         st,
		clients:       clients,
		logger:        slog.Default(),
		workers:       DefaultWorkers,
		queueSize:     DefaultQueueSize,
		maxBodySize:   DefaultMaxBodySize,
		userAgent:     defaultUserAgent,
		shutdownGrace: DefaultShutdownGrace,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.controls == nil {
		c.controls = NewControls()
	}
	return c
}

// Controls returns the crawl controls in use.
func (c *Crawler) Controls() *Controls {
	return c.controls
}

// Run executes the crawl until the frontier is exhausted, the context is
// cancelled, or the stop signal is raised. On stop, in-flight fetches get
// the shutdown grace to finish (their results are discarded); after the
// grace the context under them is cancelled.
func (c *Crawler) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := newWorkQueue(c.queueSize)
	done := &Signal{}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if c.crawlDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(c.crawlDelay), 1)
	}

	f := &fetcher{
		clients:     c.clients,
		tasks:       c.controls.Tasks,
		userAgent:   c.userAgent,
		maxBodySize: c.maxBodySize,
	}
	parse := parseOptions{
		titlesOnly:   c.mode == model.ModeTitlesOnly,
		onionOnly:    c.onionOnly,
		topLevelOnly: c.topLevelOnly,
		keywords:     c.keywords,
	}

	g, gctx := errgroup.WithContext(runCtx)
	for i := range c.workers {
		w := &worker{
			id:       i + 1,
			store:    c.store,
			fetcher:  f,
			queue:    queue,
			controls: c.controls,
			done:     done,
			limiter:  limiter,
			logger:   c.logger,
			mode:     c.mode,
			saveMode: c.saveMode,
			parse:    parse,
		}
		g.Go(func() error { return w.run(gctx) })
	}

	prod := &producer{
		store:        c.store,
		queue:        queue,
		controls:     c.controls,
		logger:       c.logger,
		mode:         c.mode,
		seeds:        c.seeds,
		onionOnly:    c.onionOnly,
		topLevelOnly: c.topLevelOnly,
	}
	g.Go(func() error {
		defer done.Set()
		return prod.run(gctx)
	})

	// Enforce the shutdown grace: once stop is raised, give in-flight
	// work a bounded window, then cancel the run context under it.
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		ticker := time.NewTicker(producerPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-finished:
				return
			case <-ticker.C:
				if !c.controls.Stop.IsSet() {
					continue
				}
				select {
				case <-finished:
				case <-time.After(c.shutdownGrace):
					c.logger.Warn("shutdown grace elapsed, cancelling in-flight fetches")
					cancel()
				}
				return
			}
		}
	}()

	return g.Wait()
}
