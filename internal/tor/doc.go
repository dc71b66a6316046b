// Package tor provides the Tor connectivity layer for the crawler.
//
// It wraps SOCKS5 proxy endpoints into HTTP clients suitable for fetching
// hidden services, verifies that configured proxies actually speak the
// Tor SOCKS5 protocol, and optionally manages an embedded Tor daemon via
// tornago for deployments without an external Tor installation.
//
// The crawler spreads load across several SOCKS endpoints (typically one
// Tor instance per port), so the central type here is ProxyPool rather
// than a single client. Components receive a pool by injection; there is
// no global state.
package tor
