package filter

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Serbz/TorScraper-SC/internal/keyword"
	"github.com/Serbz/TorScraper-SC/internal/model"
	"github.com/Serbz/TorScraper-SC/internal/store"
)

// ProgressCalculating is reported before the candidate count is known,
// while the engine sizes the scan.
const ProgressCalculating = -1

// defaultBatchSize bounds memory and transaction size while copying
// matching rows into the result database.
const defaultBatchSize = 250

// ErrNoKeywords is returned when the engine is run with an empty keyword
// set; a threshold over zero keywords can never be met.
var ErrNoKeywords = errors.New("filter: keyword set is empty")

// Engine copies rows whose stored keyword matches cover at least a
// threshold number of distinct keywords from a source store into a fresh
// result store.
type Engine struct {
	src        *store.LinkStore
	keywords   *keyword.Set
	threshold  int
	batchSize  int
	logger     *slog.Logger
	onProgress func(pct int)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithBatchSize overrides the result write batch size.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithProgress installs a progress callback. It receives
// ProgressCalculating once up front, then whole percentages (0-100) as
// the scan advances. Callbacks run on the engine goroutine and must be
// cheap.
func WithProgress(fn func(pct int)) Option {
	return func(e *Engine) { e.onProgress = fn }
}

// New creates an Engine scanning src for rows matching at least
// threshold distinct keywords from ks. A threshold below one is raised
// to one.
func New(src *store.LinkStore, ks *keyword.Set, threshold int, opts ...Option) *Engine {
	if threshold < 1 {
		threshold = 1
	}
	e := &Engine{
		src:       src,
		keywords:  ks,
		threshold: threshold,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the filter, writing matching rows to a fresh store at
// destPath. Candidate narrowing happens in SQL; the exact distinct-
// keyword count is computed in Go on the decoded match tokens, so SQL
// false positives are harmless.
func (e *Engine) Run(ctx context.Context, destPath string) (matched int64, err error) {
	if e.keywords.Empty() {
		return 0, ErrNoKeywords
	}

	e.report(ProgressCalculating)

	total, err := e.src.CountMatchCandidates(ctx, e.keywords)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		e.report(100)
		e.logger.Info("no candidate rows to filter")
		return 0, nil
	}
	e.logger.Info("filtering candidates",
		slog.Int64("candidates", total),
		slog.Int("threshold", e.threshold))

	dest, err := store.Open(destPath, e.logger)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := dest.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var (
		scanned int64
		lastPct = -1
		batch   []model.Link
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := dest.InsertRows(ctx, batch); err != nil {
			return err
		}
		matched += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	err = e.src.StreamMatchCandidates(ctx, e.keywords, func(l model.Link) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		scanned++

		tokens := keyword.SplitMatches(l.KeywordMatch)
		if e.keywords.CountStored(tokens) >= e.threshold {
			batch = append(batch, l)
			if len(batch) >= e.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}

		if pct := int(scanned * 100 / total); pct != lastPct {
			lastPct = pct
			e.report(pct)
		}
		return nil
	})
	if err != nil {
		return matched, err
	}
	if err := flush(); err != nil {
		return matched, err
	}

	e.report(100)
	e.logger.Info("filter complete",
		slog.Int64("scanned", scanned),
		slog.Int64("matched", matched))
	return matched, nil
}

func (e *Engine) report(pct int) {
	if e.onProgress != nil {
		e.onProgress(pct)
	}
}
