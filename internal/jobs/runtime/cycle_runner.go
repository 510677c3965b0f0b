package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"proxyscout/internal/config"
	"proxyscout/internal/geolite"
	"proxyscout/internal/jobs/checker"
	candidatequeue "proxyscout/internal/jobs/queue/candidates"
	"proxyscout/internal/jobs/ranking"
	"proxyscout/internal/jobs/scraper"
	"proxyscout/internal/metrics"
	"proxyscout/internal/publish"
)

// Runner runs one full discovery and verification cycle per RunCycle call.
type Runner struct {
	Sources    []config.Source
	Aggregator *scraper.Aggregator

	Checker        checker.CheckerSettings
	CheckerOptions []checker.Option
	IPLookup       string

	Locator   *geolite.Locator
	Heartbeat *Heartbeat
	Sink      publish.Sink
	Metrics   *metrics.Collector
	Logger    *log.Logger
	Clock     clock.Clock
}

// cycle is everything scoped to a single run. It is dropped when RunCycle
// returns.
type cycle struct {
	id        string
	logger    *log.Logger
	store     *candidatequeue.Store
	selfIP    *checker.SelfIPResolver
	startedAt time.Time
}

func (r *Runner) newCycle() *cycle {
	id := uuid.NewString()
	return &cycle{
		id:        id,
		logger:    r.logger().With("cycle", id),
		store:     candidatequeue.NewStore(),
		selfIP:    checker.NewSelfIPResolver(r.IPLookup, r.Checker.Timeout),
		startedAt: r.clock().Now(),
	}
}

// RunCycle collects candidates from every source, verifies them, ranks the
// working ones and hands a non-empty result to the sink.
func (r *Runner) RunCycle(ctx context.Context) (publish.Report, error) {
	c := r.newCycle()
	c.logger.Info("Cycle started", "sources", len(r.Sources))

	r.Heartbeat.CycleStarted(ctx, c.id)
	defer r.Heartbeat.CycleFinished(context.WithoutCancel(ctx))

	summary := r.Aggregator.Collect(ctx, r.Sources, c.store)
	candidates := c.store.Snapshot()

	options := []checker.Option{
		checker.WithClock(r.clock()),
		checker.WithLogger(c.logger),
		checker.WithSelfIP(c.selfIP),
		checker.WithMetrics(r.Metrics),
	}
	verifier := checker.NewVerifier(r.Checker, append(options, r.CheckerOptions...)...)
	results := verifier.VerifyAll(ctx, candidates)

	if filled := r.Locator.Enrich(results); filled > 0 {
		c.logger.Debug("Filled countries from GeoLite", "count", filled)
	}

	entries := ranking.Rank(results)
	finishedAt := r.clock().Now()

	report := publish.Report{
		CycleID:    c.id,
		StartedAt:  c.startedAt,
		FinishedAt: finishedAt,
		Entries:    entries,
		Groups:     ranking.GroupByProtocol(entries),
		Stats: publish.Stats{
			Sources:          summary.Sources,
			SourcesSucceeded: summary.Succeeded,
			SourcesFailed:    summary.Failed,
			SourcesSkipped:   summary.Skipped,
			Parsed:           summary.Parsed,
			Candidates:       len(candidates),
			Working:          len(entries),
			Elite:            len(ranking.Elite(entries)),
			ByProtocol:       ranking.CountByProtocol(entries),
		},
	}

	r.Metrics.SetWorking(report.Stats.ByProtocol)
	r.Metrics.ObserveCycle(finishedAt.Sub(c.startedAt))

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("runtime: cycle %s interrupted: %w", c.id, err)
	}

	if len(entries) == 0 {
		c.logger.Warn("No working proxies found, nothing to publish", "candidates", len(candidates))
		return report, nil
	}

	if r.Sink != nil {
		if err := r.Sink.Publish(ctx, report); err != nil {
			return report, fmt.Errorf("runtime: publish cycle %s: %w", c.id, err)
		}
	}

	c.logger.Info("Cycle finished",
		"candidates", len(candidates),
		"working", len(entries),
		"elite", report.Stats.Elite,
		"duration", finishedAt.Sub(c.startedAt).Round(time.Second),
	)
	return report, nil
}

func (r *Runner) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

func (r *Runner) clock() clock.Clock {
	if r.Clock != nil {
		return r.Clock
	}
	return clock.New()
}
