package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Serbz/TorScraper-SC/internal/model"
	"github.com/Serbz/TorScraper-SC/internal/store"
	"github.com/Serbz/TorScraper-SC/internal/urlutil"
)

// producerPollInterval paces the producer's backpressure and drain
// polling loops.
const producerPollInterval = 100 * time.Millisecond

// producer feeds the work queue from the store. One iteration enqueues
// the current frontier and waits for the workers to drain it; in fresh
// mode the frontier is then recomputed, picking up links the workers
// discovered, until it comes back empty. The rescrape and titles-only
// modes run exactly one iteration: their frontiers are defined by row
// state that a failed retry does not change, so recomputing could loop
// forever on permanently dead links.
type producer struct {
	store        *store.LinkStore
	queue        *workQueue
	controls     *Controls
	logger       *slog.Logger
	mode         model.CrawlMode
	seeds        []string
	onionOnly    bool
	topLevelOnly bool
}

func (p *producer) run(ctx context.Context) error {
	p.logger.Info("starting crawl", slog.String("mode", p.mode.String()))
	defer p.finalize(context.WithoutCancel(ctx))

	switch p.mode {
	case model.ModeFresh:
		if len(p.seeds) > 0 {
			n, err := p.store.AddLinks(ctx, p.seeds, p.topLevelOnly)
			if err != nil {
				return err
			}
			p.logger.Info("seeded link store", slog.Int64("inserted", n))
		}
	case model.ModeRescrapeMissingData:
		n, err := p.store.ResetLinksMissingPageData(ctx)
		if err != nil {
			return err
		}
		p.logger.Info("reset links missing page data", slog.Int64("reset", n))
	}

	handled := make(map[string]struct{})
	for iteration := 1; ; iteration++ {
		if p.stopped(ctx) {
			break
		}

		frontier, err := p.frontier(ctx)
		if err != nil {
			p.logger.Error("frontier query failed", slog.String("error", err.Error()))
			break
		}
		pending, err := p.prepare(ctx, frontier, handled)
		if err != nil {
			p.logger.Error("frontier preparation failed", slog.String("error", err.Error()))
			break
		}
		if len(pending) == 0 {
			p.logger.Info("frontier empty, crawl complete", slog.Int("iterations", iteration-1))
			break
		}
		p.logger.Info("enqueueing frontier",
			slog.Int("iteration", iteration),
			slog.Int("links", len(pending)))

		if err := p.enqueue(ctx, pending, handled); err != nil {
			return err
		}
		if err := p.awaitDrain(ctx); err != nil {
			return err
		}

		if p.mode != model.ModeFresh {
			break
		}
	}
	return nil
}

// frontier selects the mode's pending link set.
func (p *producer) frontier(ctx context.Context) ([]model.Link, error) {
	switch p.mode {
	case model.ModeRescrapeFailed:
		return p.store.FailedLinks(ctx)
	case model.ModeRescrapeMissingData:
		return p.store.LinksMissingPageData(ctx)
	case model.ModeTitlesOnly:
		return p.store.UnscrapedLinksMissingTitles(ctx)
	default:
		return p.store.UnscrapedLinks(ctx)
	}
}

// prepare turns a raw frontier into the URLs to enqueue this iteration.
// The onion-only filter and top-level collapse apply first, then
// anything already handled this run is dropped. The handled filter is
// what guarantees termination: a row the enqueue path always skips
// would otherwise keep the frontier non-empty forever.
func (p *producer) prepare(ctx context.Context, frontier []model.Link, handled map[string]struct{}) ([]string, error) {
	urls := make([]string, 0, len(frontier))
	for _, l := range frontier {
		if p.onionOnly && !urlutil.IsOnionHost(l.URL) {
			continue
		}
		urls = append(urls, l.URL)
	}

	if p.topLevelOnly {
		// Collapse the frontier to unique site roots, make sure each root
		// exists as a row, and crawl only the roots.
		seen := make(map[string]struct{}, len(urls))
		tops := make([]string, 0, len(urls))
		for _, u := range urls {
			top := urlutil.TopLevel(u)
			if top == "" {
				continue
			}
			if _, ok := seen[top]; ok {
				continue
			}
			seen[top] = struct{}{}
			tops = append(tops, top)
		}
		if _, err := p.store.AddLinks(ctx, tops, false); err != nil {
			return nil, err
		}
		urls = tops
	}

	pending := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := handled[u]; ok {
			continue
		}
		pending = append(pending, u)
	}
	return pending, nil
}

// enqueue pushes the pending URLs, polling on a full queue so the stop
// signal stays observable. Every URL is marked handled, including junk
// rows inserted by older versions, which are skipped here instead of
// being fetched.
func (p *producer) enqueue(ctx context.Context, urls []string, handled map[string]struct{}) error {
	for _, u := range urls {
		handled[u] = struct{}{}
		if urlutil.IsJunk(u) {
			p.logger.Debug("skipping junk link", slog.String("url", u))
			continue
		}
		item := workItem{url: u, taskID: uuid.NewString()}
		for !p.queue.TryPush(item) {
			if p.stopped(ctx) {
				return nil
			}
			time.Sleep(producerPollInterval)
		}
	}
	return nil
}

// awaitDrain blocks until every enqueued item has been processed or the
// crawl is stopped.
func (p *producer) awaitDrain(ctx context.Context) error {
	for !p.queue.Drained() {
		if p.stopped(ctx) {
			return nil
		}
		time.Sleep(producerPollInterval)
	}
	return nil
}

// finalize reports the closing row count. It runs on every exit path,
// stop and failure included, so a crawl always ends with the total.
func (p *producer) finalize(ctx context.Context) {
	total, err := p.store.TotalLinkCount(ctx)
	if err != nil {
		p.logger.Error("final link count unavailable", slog.String("error", err.Error()))
		return
	}
	p.logger.Info("crawl finished", slog.Int64("total_links", total))
}

func (p *producer) stopped(ctx context.Context) bool {
	return ctx.Err() != nil || p.controls.Stop.IsSet()
}
