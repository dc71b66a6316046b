package crawler

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/Serbz/TorScraper-SC/internal/keyword"
	"github.com/Serbz/TorScraper-SC/internal/model"
	"github.com/Serbz/TorScraper-SC/internal/store"
)

const (
	// pausePollInterval is how often a paused worker rechecks the pause
	// signal.
	pausePollInterval = 500 * time.Millisecond

	// popTimeout bounds each queue wait so idle workers keep observing
	// the stop, pause, and done signals.
	popTimeout = time.Second
)

// worker pops URLs from the queue, fetches and parses them, and persists
// the outcome. Several workers run concurrently against the same queue
// and store.
type worker struct {
	id       int
	store    *store.LinkStore
	fetcher  *fetcher
	queue    *workQueue
	controls *Controls
	done     *Signal
	limiter  *rate.Limiter
	logger   *slog.Logger
	mode     model.CrawlMode
	saveMode model.SaveMode
	parse    parseOptions
}

// run loops until stopped, cancelled, or told the producer is finished.
// The done signal is only raised after the queue has drained, so
// returning on it never strands queued work.
func (w *worker) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if w.controls.Stop.IsSet() || w.done.IsSet() {
			return nil
		}
		if w.controls.Pause.IsSet() {
			time.Sleep(pausePollInterval)
			continue
		}
		item, ok := w.queue.Pop(popTimeout)
		if !ok {
			continue
		}
		if err := w.process(ctx, item); err != nil {
			w.queue.Done()
			return err
		}
		w.queue.Done()
	}
}

// process handles one queue item end to end. A raised stop signal
// between fetch and persist discards the result entirely: the row stays
// in its prior state and a later run redoes the work. The returned error
// is non-nil only for store failures, which abort the crawl.
func (w *worker) process(ctx context.Context, item workItem) error {
	w.controls.Tasks.Register(item.taskID, w.id, item.url, siteOf(item.url))
	defer w.controls.Tasks.Finish(item.taskID)

	if err := w.limiter.Wait(ctx); err != nil {
		return nil
	}

	res, err := w.fetcher.fetch(ctx, item.url, item.taskID)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		if w.controls.Stop.IsSet() {
			return nil
		}
		w.logFetchError(item.url, err)
		return w.persistFailure(ctx, item.url)
	}

	if w.controls.Stop.IsSet() {
		return nil
	}

	p, err := parsePage(item.url, res.body, res.contentType, w.parse)
	if err != nil {
		w.logger.Debug("parse failed",
			slog.String("url", item.url),
			slog.String("error", err.Error()))
		if w.controls.Stop.IsSet() {
			return nil
		}
		return w.persistFailure(ctx, item.url)
	}

	title := p.title
	if title == "" {
		title = model.TitleNotFound
	}
	w.controls.Tasks.SetTitle(item.taskID, title)

	if w.controls.Stop.IsSet() {
		return nil
	}
	return w.persistSuccess(ctx, item.url, title, p, res.proxyLabel)
}

// logFetchError separates the routine failures of crawling hidden
// services (timeouts, refused circuits, dead hosts) from genuinely
// unexpected errors.
func (w *worker) logFetchError(rawURL string, err error) {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		w.logger.Debug("fetch failed",
			slog.Int("worker", w.id),
			slog.String("url", rawURL),
			slog.String("error", err.Error()))
		return
	}
	w.logger.Warn("fetch failed",
		slog.Int("worker", w.id),
		slog.String("url", rawURL),
		slog.String("error", err.Error()))
}

func (w *worker) persistFailure(ctx context.Context, rawURL string) error {
	link := model.Link{
		URL:    rawURL,
		Status: model.StatusFailed,
		Title:  model.TitleScrapeFailed,
	}
	if w.mode == model.ModeTitlesOnly {
		return w.store.UpdateStatusAndTitleBatch(ctx, []model.Link{link})
	}
	return w.store.UpdateLinksBatch(ctx, []model.Link{link})
}

func (w *worker) persistSuccess(ctx context.Context, rawURL, title string, p page, proxyLabel string) error {
	if w.mode == model.ModeTitlesOnly {
		// Narrow update: never touch keyword matches or page data that
		// earlier full runs may have written.
		return w.store.UpdateStatusAndTitleBatch(ctx, []model.Link{{
			URL:    rawURL,
			Status: model.StatusSuccess,
			Title:  title,
		}})
	}

	matched := len(p.matches) > 0
	link := model.Link{
		URL:          rawURL,
		Status:       model.StatusSuccess,
		Title:        title,
		KeywordMatch: keyword.Join(p.matches),
	}
	if w.saveMode.ShouldSave(matched) {
		link.PageData = p.text
	}

	if err := w.store.UpdateLinksBatch(ctx, []model.Link{link}); err != nil {
		return err
	}
	if len(p.links) > 0 {
		if _, err := w.store.AddLinks(ctx, p.links, w.parse.topLevelOnly); err != nil {
			return err
		}
	}

	w.logger.Debug("scraped page",
		slog.Int("worker", w.id),
		slog.String("url", rawURL),
		slog.String("title", title),
		slog.Int("links", len(p.links)),
		slog.Bool("keyword_match", matched),
		slog.String("proxy", proxyLabel))
	return nil
}
