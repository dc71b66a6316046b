package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/Serbz/TorScraper-SC/internal/model"
)

// ClientSource supplies HTTP clients for fetches. The production
// implementation is tor.ProxyPool; tests substitute a source backed by
// httptest servers.
type ClientSource interface {
	// RandomHTTPClient returns a client and a label identifying the
	// endpoint it routes through, for logging.
	RandomHTTPClient() (*http.Client, string)
}

// defaultUserAgent mimics a desktop browser. Some hidden services serve
// reduced or empty pages to clients that identify as bots.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// browserHeaders completes the browser disguise alongside the user agent.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Upgrade-Insecure-Requests": "1",
}

// fetchResult is the raw outcome of one page fetch.
type fetchResult struct {
	// body is the (size-capped) response body.
	body []byte

	// contentType is the Content-Type header, used for charset detection
	// during parsing.
	contentType string

	// proxyLabel identifies the endpoint the fetch went through.
	proxyLabel string
}

// fetcher performs single-page fetches through a client source, capping
// body size and reporting progress into the task table.
type fetcher struct {
	clients     ClientSource
	tasks       *model.TaskTable
	userAgent   string
	maxBodySize int64
}

// fetch retrieves one page. The returned error is the classification
// boundary: a ctx error means cancellation, anything else means the link
// failed. Task telemetry (bytes read) is updated as a side effect; the
// caller owns registering and finishing the task.
func (f *fetcher) fetch(ctx context.Context, rawURL, taskID string) (fetchResult, error) {
	client, label := f.clients.RandomHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fetchResult{}, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fetchResult{}, ctx.Err()
		}
		return fetchResult{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fetchResult{}, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		if ctx.Err() != nil {
			return fetchResult{}, ctx.Err()
		}
		return fetchResult{}, fmt.Errorf("read body of %s: %w", rawURL, err)
	}
	f.tasks.SetBytes(taskID, int64(len(body)))

	return fetchResult{
		body:        body,
		contentType: resp.Header.Get("Content-Type"),
		proxyLabel:  label,
	}, nil
}

// siteOf extracts the host for task telemetry; falls back to the raw URL
// when it cannot be parsed.
func siteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
