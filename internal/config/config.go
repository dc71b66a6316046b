package config

import (
	"time"

	"github.com/Serbz/TorScraper-SC/internal/model"
)

// Default configuration values, chosen for the latency profile of the
// Tor network and the multi-instance proxy setup the crawler targets.
const (
	// AppName is used for XDG directory paths and config file naming.
	AppName = "torscraper"

	// DefaultDBFile is the link store path when none is given.
	DefaultDBFile = "links.db"

	// DefaultWorkers matches the typical one-worker-per-proxy setup.
	DefaultWorkers = 7

	// DefaultQueueSize bounds producer memory between frontier batches.
	DefaultQueueSize = 1000

	// DefaultTimeout is generous because each request crosses several
	// Tor relays; short timeouts misclassify slow services as dead.
	DefaultTimeout = 60 * time.Second

	// DefaultCrawlDelay spaces fetches out of politeness. Zero disables
	// pacing entirely.
	DefaultCrawlDelay = 0 * time.Second

	// DefaultMaxBodySize caps response reads at 5MB, enough for any HTML
	// page while bounding memory on hostile responses.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultShutdownGrace is how long a stop request waits for in-flight
	// fetches before cancelling them.
	DefaultShutdownGrace = 10 * time.Second

	// DefaultSaveMode is the page text persistence policy.
	DefaultSaveMode = "None"
)

// DefaultProxies are the SOCKS endpoints of a local multi-instance Tor
// setup, one instance per port.
var DefaultProxies = []string{
	"127.0.0.1:9100",
	"127.0.0.1:9101",
	"127.0.0.1:9102",
	"127.0.0.1:9103",
	"127.0.0.1:9104",
	"127.0.0.1:9105",
	"127.0.0.1:9106",
}

// Config holds the crawler's runtime configuration. It is populated from
// CLI flags, optionally overlaid by a YAML config file, and passed by
// injection; there is no global configuration state.
//
// Design decision: One flat struct rather than nested sub-configs. The
// option count is small enough that nesting would only add indirection.
type Config struct {
	// DBFile is the SQLite link store path.
	DBFile string

	// Proxies are the Tor SOCKS5 endpoints in "host:port" form.
	Proxies []string

	// EmbeddedTor launches a bundled Tor daemon instead of using Proxies.
	EmbeddedTor bool

	// Workers is the number of concurrent fetch workers.
	Workers int

	// QueueSize is the work queue capacity.
	QueueSize int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// CrawlDelay is the minimum interval between fetches across the pool.
	CrawlDelay time.Duration

	// UserAgent overrides the browser-like default user agent when set.
	UserAgent string

	// MaxBodySize caps response body reads, in bytes.
	MaxBodySize int64

	// ShutdownGrace is how long a stop request lets in-flight fetches
	// finish before cancelling them.
	ShutdownGrace time.Duration

	// Seeds are starting URLs for a fresh crawl.
	Seeds []string

	// RescrapeFailed re-enqueues failed links instead of crawling fresh.
	RescrapeFailed bool

	// RescrapeMissingData resets and re-enqueues links without page text.
	RescrapeMissingData bool

	// TitlesOnly runs a single narrow pass filling in missing titles.
	TitlesOnly bool

	// OnionOnly restricts discovered links to .onion hosts.
	OnionOnly bool

	// TopLevelOnly collapses discovered links to site roots.
	TopLevelOnly bool

	// Keywords are the raw keyword entries matched against page text.
	Keywords []string

	// SaveMode is the page text persistence policy: "All",
	// "Keyword Match", or "None".
	SaveMode string

	// LogFile, when set, routes logs to a file instead of stderr.
	LogFile string

	// Verbose enables debug-level logging.
	Verbose bool
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		DBFile:        DefaultDBFile,
		Proxies:       append([]string(nil), DefaultProxies...),
		Workers:       DefaultWorkers,
		QueueSize:     DefaultQueueSize,
		Timeout:       DefaultTimeout,
		CrawlDelay:    DefaultCrawlDelay,
		MaxBodySize:   DefaultMaxBodySize,
		ShutdownGrace: DefaultShutdownGrace,
		SaveMode:      DefaultSaveMode,
	}
}

// Validate checks the configuration for contradictions and unusable
// values. It returns the first problem found.
func (c *Config) Validate() error {
	if c.DBFile == "" {
		return ErrNoDatabase
	}
	if len(c.Proxies) == 0 && !c.EmbeddedTor {
		return ErrNoProxies
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.QueueSize <= 0 {
		return ErrInvalidQueueSize
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	modes := 0
	for _, enabled := range []bool{c.RescrapeFailed, c.RescrapeMissingData, c.TitlesOnly} {
		if enabled {
			modes++
		}
	}
	if modes > 1 {
		return ErrConflictingModes
	}

	if _, err := model.ParseSaveMode(c.SaveMode); err != nil {
		return err
	}
	return nil
}

// CrawlMode resolves the mode switches into the crawl mode. Validate
// must have passed first.
func (c *Config) CrawlMode() model.CrawlMode {
	switch {
	case c.RescrapeFailed:
		return model.ModeRescrapeFailed
	case c.RescrapeMissingData:
		return model.ModeRescrapeMissingData
	case c.TitlesOnly:
		return model.ModeTitlesOnly
	default:
		return model.ModeFresh
	}
}

// ParsedSaveMode returns the save mode enum. Validate must have passed
// first; an invalid spelling falls back to SaveNone.
func (c *Config) ParsedSaveMode() model.SaveMode {
	m, err := model.ParseSaveMode(c.SaveMode)
	if err != nil {
		return model.SaveNone
	}
	return m
}
