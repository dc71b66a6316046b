package config

import "errors"

// Configuration validation errors returned by Config.Validate.
//
// Design decision: Package-level sentinel errors instead of fmt.Errorf in
// Validate, so callers can branch with errors.Is while users still get a
// readable message.
var (
	// ErrNoDatabase is returned when no database file path is configured.
	ErrNoDatabase = errors.New("no database file specified")

	// ErrNoProxies is returned when no SOCKS proxy addresses are
	// configured and the embedded Tor daemon is disabled.
	ErrNoProxies = errors.New("no Tor proxies configured: set proxies or enable embedded Tor")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidTimeout is returned when the request timeout is not
	// positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidQueueSize is returned when the queue size is not positive.
	ErrInvalidQueueSize = errors.New("invalid queue size: must be positive")

	// ErrConflictingModes is returned when more than one of the rescrape
	// and titles-only switches is enabled.
	ErrConflictingModes = errors.New("conflicting crawl modes: enable at most one of rescrape-failed, rescrape-missing-data, titles-only")
)
