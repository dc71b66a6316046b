// Package log builds the application's slog loggers. All loggers route
// through a sanitizing handler that masks credential-like attributes and
// values before they reach the output, since crawl logs routinely quote
// material from untrusted hidden-service pages.
package log
