package checker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"

	"proxyscout/internal/config"
	"proxyscout/internal/domain"
	"proxyscout/internal/metrics"
	"proxyscout/internal/support"
)

const (
	defaultThreads   = 250
	defaultRetries   = 2
	defaultTimeout   = 5 * time.Second
	defaultBatchSize = 100
)

type CheckerSettings struct {
	Threads      int
	Retries      int
	Timeout      time.Duration
	RetryBackoff time.Duration
	BatchSize    int
	ProbeTargets []string
	UserAgents   []string
	Anonymity    support.AnonymitySettings
}

func SettingsFromConfig(cfg config.Config) CheckerSettings {
	return CheckerSettings{
		Threads:      int(cfg.Checker.Threads),
		Retries:      int(cfg.Checker.Retries),
		Timeout:      cfg.CheckerTimeout(),
		RetryBackoff: cfg.CheckerRetryBackoff(),
		BatchSize:    int(cfg.Checker.BatchSize),
		ProbeTargets: cfg.Checker.ProbeTargets,
		UserAgents:   cfg.Scraper.UserAgents,
		Anonymity: support.AnonymitySettings{
			ProxyHeaders:       cfg.Checker.ProxyHeader,
			TransparentMarkers: cfg.Checker.TransparentMarkers,
		},
	}
}

// Progress is reported after every batch of completed checks and once at the
// end of a pass.
type Progress struct {
	Done    int
	Total   int
	Working int
}

func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Done) * 100 / float64(p.Total)
}

type attemptOutcome uint8

const (
	attemptSuccess attemptOutcome = iota
	attemptRetryable
	attemptMalformed
)

type Option func(*Verifier)

func WithProber(prober Prober) Option {
	return func(v *Verifier) { v.prober = prober }
}

func WithClock(c clock.Clock) Option {
	return func(v *Verifier) { v.clock = c }
}

func WithLogger(logger *log.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithSelfIP sets the resolver used to detect transparent relays.
func WithSelfIP(resolver *SelfIPResolver) Option {
	return func(v *Verifier) { v.selfIP = resolver }
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(v *Verifier) { v.metrics = collector }
}

// WithBlocklist drops probe targets on blocked hosts.
func WithBlocklist(blocklist *config.WebsiteBlocklist) Option {
	return func(v *Verifier) { v.blocklist = blocklist }
}

func OnProgress(fn func(Progress)) Option {
	return func(v *Verifier) { v.onProgress = fn }
}

// Verifier checks candidates against the probe targets under a fixed
// concurrency cap.
type Verifier struct {
	settings   CheckerSettings
	gate       *Gate
	prober     Prober
	clock      clock.Clock
	logger     *log.Logger
	selfIP     *SelfIPResolver
	metrics    *metrics.Collector
	blocklist  *config.WebsiteBlocklist
	onProgress func(Progress)
}

func NewVerifier(settings CheckerSettings, opts ...Option) *Verifier {
	if settings.Threads <= 0 {
		settings.Threads = defaultThreads
	}
	if settings.Retries <= 0 {
		settings.Retries = defaultRetries
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaultTimeout
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = defaultBatchSize
	}

	v := &Verifier{
		settings: settings,
		gate:     NewGate(settings.Threads),
		clock:    clock.New(),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.prober == nil {
		v.prober = NewRelayProber(settings.Timeout, settings.UserAgents)
	}
	return v
}

func (v *Verifier) Gate() *Gate {
	return v.gate
}

// VerifyAll checks every candidate and returns one result per candidate in
// input order. It returns once all checks have finished.
func (v *Verifier) VerifyAll(ctx context.Context, candidates []domain.Candidate) []domain.VerificationResult {
	results := make([]domain.VerificationResult, len(candidates))
	if len(candidates) == 0 {
		return results
	}

	targets := v.probeTargets()
	selfIP := v.selfIP.Resolve(ctx)
	tracker := newProgressTracker(len(candidates), v.settings.BatchSize, v.report)

	v.logger.Info("Verifying candidates", "count", len(candidates), "threads", v.settings.Threads, "targets", len(targets))

	var wg sync.WaitGroup
	for i, candidate := range candidates {
		if _, err := candidate.Endpoint(); err != nil {
			results[i] = v.notWorking(candidate)
			v.metrics.ProbeAttempt(metrics.ProbeMalformed)
			v.logger.Debug("Skipping malformed candidate", "candidate", candidate.Identity(), "error", err)
			tracker.complete(false)
			continue
		}

		if err := v.gate.Acquire(ctx); err != nil {
			results[i] = v.notWorking(candidate)
			tracker.complete(false)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer v.gate.Release()

			result := v.check(ctx, candidate, targets, selfIP)
			results[i] = result
			tracker.complete(result.IsWorking)
		}()
	}
	wg.Wait()
	tracker.finish()

	return results
}

func (v *Verifier) probeTargets() []string {
	targets := v.blocklist.FilterBlocked(v.settings.ProbeTargets)
	if skipped := len(v.settings.ProbeTargets) - len(targets); skipped > 0 {
		v.logger.Warn("Skipping blocked probe targets", "skipped", skipped, "remaining", len(targets))
	}
	return targets
}

// check walks the targets in order. Each target gets up to Retries attempts
// with a linear backoff between them; the first success ends the check.
func (v *Verifier) check(ctx context.Context, candidate domain.Candidate, targets []string, selfIP string) domain.VerificationResult {
	result := domain.NewVerificationResult(candidate)

probing:
	for _, target := range targets {
		for attempt := 0; attempt < v.settings.Retries; attempt++ {
			if attempt > 0 && !v.sleep(ctx, time.Duration(attempt)*v.settings.RetryBackoff) {
				break probing
			}

			outcome, resp, latency, err := v.attempt(ctx, candidate, target)
			result.Attempts++

			switch outcome {
			case attemptSuccess:
				result.IsWorking = true
				result.SuccessCount = 1
				result.LatencyMs = latency.Milliseconds()
				result.WorkingTarget = target
				result.Anonymity = support.ClassifyAnonymity(resp.Body, resp.Header, selfIP, v.settings.Anonymity)
				result.LastCheckedAt = v.clock.Now()
				return result

			case attemptMalformed:
				v.logger.Debug("Candidate rejected as malformed", "candidate", candidate.Identity(), "error", err)
				break probing

			default:
				result.FailureCount++
				v.logger.Debug("Probe attempt failed",
					"candidate", candidate.Identity(),
					"target", target,
					"attempt", attempt+1,
					"error", err,
				)
			}

			if ctx.Err() != nil {
				break probing
			}
		}
	}

	result.LastCheckedAt = v.clock.Now()
	return result
}

func (v *Verifier) attempt(ctx context.Context, candidate domain.Candidate, target string) (attemptOutcome, ProbeResponse, time.Duration, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, v.settings.Timeout)
	defer cancel()

	start := v.clock.Now()
	resp, err := v.prober.Probe(attemptCtx, candidate, target)
	latency := v.clock.Since(start)

	switch {
	case errors.Is(err, domain.ErrMalformedCandidate):
		v.metrics.ProbeAttempt(metrics.ProbeMalformed)
		return attemptMalformed, resp, latency, err
	case err != nil:
		v.metrics.ProbeAttempt(metrics.ProbeFailure)
		return attemptRetryable, resp, latency, err
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		v.metrics.ProbeAttempt(metrics.ProbeFailure)
		return attemptRetryable, resp, latency, fmt.Errorf("probe status %d", resp.StatusCode)
	}

	v.metrics.ProbeAttempt(metrics.ProbeSuccess)
	return attemptSuccess, resp, latency, nil
}

func (v *Verifier) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := v.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (v *Verifier) notWorking(candidate domain.Candidate) domain.VerificationResult {
	result := domain.NewVerificationResult(candidate)
	result.LastCheckedAt = v.clock.Now()
	return result
}

func (v *Verifier) report(p Progress) {
	v.logger.Info("Verification progress",
		"done", p.Done,
		"total", p.Total,
		"percent", fmt.Sprintf("%.1f", p.Percent()),
		"working", p.Working,
	)
	if v.onProgress != nil {
		v.onProgress(p)
	}
}

type progressTracker struct {
	mu        sync.Mutex
	progress  Progress
	batchSize int
	reported  int
	report    func(Progress)
}

func newProgressTracker(total, batchSize int, report func(Progress)) *progressTracker {
	return &progressTracker{
		progress:  Progress{Total: total},
		batchSize: batchSize,
		report:    report,
	}
}

func (t *progressTracker) complete(working bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.progress.Done++
	if working {
		t.progress.Working++
	}
	if t.progress.Done%t.batchSize == 0 {
		t.reported = t.progress.Done
		t.report(t.progress)
	}
}

func (t *progressTracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.reported != t.progress.Done {
		t.reported = t.progress.Done
		t.report(t.progress)
	}
}
