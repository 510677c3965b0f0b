package scraper

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"proxyscout/internal/config"
	candidatequeue "proxyscout/internal/jobs/queue/candidates"
	"proxyscout/internal/metrics"
	"proxyscout/internal/support"
)

// CollectSummary counts what one Collect call did with its sources.
type CollectSummary struct {
	Sources   int
	Succeeded int
	Failed    int
	Skipped   int
	Parsed    int
	Inserted  int
}

// Aggregator fetches every source concurrently and feeds the parsed candidates
// into a store. A failing source never affects the others.
type Aggregator struct {
	fetcher     Fetcher
	logger      *log.Logger
	blocklist   *config.WebsiteBlocklist
	robots      *RobotsGuard
	metrics     *metrics.Collector
	concurrency int
}

type AggregatorOption func(*Aggregator)

func WithLogger(logger *log.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithBlocklist(blocklist *config.WebsiteBlocklist) AggregatorOption {
	return func(a *Aggregator) { a.blocklist = blocklist }
}

// WithRobotsGuard skips sources that robots.txt disallows.
func WithRobotsGuard(guard *RobotsGuard) AggregatorOption {
	return func(a *Aggregator) { a.robots = guard }
}

func WithMetrics(collector *metrics.Collector) AggregatorOption {
	return func(a *Aggregator) { a.metrics = collector }
}

// WithConcurrency caps the number of sources fetched at once. Zero or less
// means no cap.
func WithConcurrency(n int) AggregatorOption {
	return func(a *Aggregator) { a.concurrency = n }
}

func NewAggregator(fetcher Fetcher, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		fetcher: fetcher,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Collect(ctx context.Context, sources []config.Source, store *candidatequeue.Store) CollectSummary {
	var (
		mu      sync.Mutex
		summary = CollectSummary{Sources: len(sources)}
	)

	var g errgroup.Group
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}

	for _, source := range sources {
		g.Go(func() error {
			parsed, inserted, err := a.collectSource(ctx, source, store)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				summary.Succeeded++
				summary.Parsed += parsed
				summary.Inserted += inserted
				a.metrics.SourceProcessed(metrics.SourceSucceeded)
			case isSkip(err):
				summary.Skipped++
				a.metrics.SourceProcessed(metrics.SourceSkipped)
				a.logger.Info("Skipping source", "source", source.Label(), "reason", err)
			default:
				summary.Failed++
				a.metrics.SourceProcessed(metrics.SourceFailed)
				a.logger.Warn("Source failed", "source", source.Label(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	a.metrics.CandidatesDiscovered(summary.Inserted)
	a.logger.Info("Collected candidates",
		"sources", summary.Sources,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"parsed", summary.Parsed,
		"distinct", summary.Inserted,
	)
	return summary
}

func (a *Aggregator) collectSource(ctx context.Context, source config.Source, store *candidatequeue.Store) (int, int, error) {
	if !support.IsValidURL(source.URL) {
		return 0, 0, fmt.Errorf("scraper: invalid source url %q", source.URL)
	}
	if a.blocklist.IsBlocked(source.URL) {
		return 0, 0, fmt.Errorf("%w: %s", ErrBlocked, source.URL)
	}
	if a.robots != nil {
		allowed, err := a.robots.Allowed(ctx, source.URL)
		if err != nil {
			a.logger.Debug("robots.txt check failed", "url", source.URL, "error", err)
		}
		if !allowed {
			return 0, 0, fmt.Errorf("%w: %s", ErrRobotsDisallowed, source.URL)
		}
	}

	payload, err := a.fetcher.Fetch(ctx, source)
	if err != nil {
		return 0, 0, err
	}

	candidates, err := support.ParseSource(source, payload)
	if err != nil {
		return 0, 0, fmt.Errorf("scraper: parse %s: %w", source.URL, err)
	}

	inserted := store.InsertAll(candidates)
	a.logger.Debug("Parsed source", "source", source.Label(), "found", len(candidates), "new", inserted)
	return len(candidates), inserted, nil
}
