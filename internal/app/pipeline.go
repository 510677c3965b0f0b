package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"proxyscout/internal/config"
	"proxyscout/internal/database"
	"proxyscout/internal/geolite"
	"proxyscout/internal/jobs/checker"
	jobruntime "proxyscout/internal/jobs/runtime"
	"proxyscout/internal/jobs/scraper"
	"proxyscout/internal/metrics"
	"proxyscout/internal/publish"
	"proxyscout/internal/support"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// pipeline owns every long lived collaborator of the cycle runner.
type pipeline struct {
	runner    *jobruntime.Runner
	scheduler *jobruntime.Scheduler
	closers   []io.Closer
}

func newPipeline(ctx context.Context, cfg config.Config) (_ *pipeline, err error) {
	p := &pipeline{}
	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	collector := metrics.NewCollector()
	blocklist := config.NewWebsiteBlocklist(cfg.WebsiteBlacklist)

	var (
		redisClient *redis.Client
		heartbeat   *jobruntime.Heartbeat
	)
	if cfg.Output.RedisURL != "" {
		redisClient, err = support.NewRedisClient(ctx, cfg.Output.RedisURL)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, redisClient)

		heartbeat = jobruntime.NewHeartbeat(redisClient, nil)
		p.closers = append(p.closers, startHeartbeat(ctx, heartbeat))

		if peers, err := heartbeat.Peers(ctx); err == nil {
			log.Info("Connected to redis", "instance", heartbeat.ID(), "active_instances", len(peers))
		}
	}

	sinks, err := p.buildSinks(cfg, redisClient)
	if err != nil {
		return nil, err
	}

	var locator *geolite.Locator
	if path := cfg.GeoLite.CountryDatabase; path != "" {
		if locator, err = geolite.Open(path); err != nil {
			log.Warn("GeoLite database unavailable, countries come from sources only", "error", err)
			locator, err = nil, nil
		} else {
			p.closers = append(p.closers, locator)
		}
	}

	timeout := cfg.ScraperTimeout()
	browser := scraper.NewBrowserFetcher(timeout)
	p.closers = append(p.closers, browser)

	fetcher := scraper.RoutingFetcher{
		HTTP: scraper.NewHTTPFetcher(timeout,
			scraper.WithMaxBodyBytes(cfg.Scraper.MaxBodyBytes),
			scraper.WithUserAgents(cfg.Scraper.UserAgents),
		),
		Browser: browser,
	}

	aggregatorOptions := []scraper.AggregatorOption{
		scraper.WithBlocklist(blocklist),
		scraper.WithMetrics(collector),
		scraper.WithConcurrency(cfg.Scraper.Concurrency),
		scraper.WithLogger(log.Default().With("component", "scraper")),
	}
	if cfg.Scraper.RespectRobots {
		aggregatorOptions = append(aggregatorOptions, scraper.WithRobotsGuard(scraper.NewRobotsGuard(nil, timeout)))
	}

	p.runner = &jobruntime.Runner{
		Sources:    cfg.Sources,
		Aggregator: scraper.NewAggregator(fetcher, aggregatorOptions...),
		Checker:    checker.SettingsFromConfig(cfg),
		CheckerOptions: []checker.Option{
			checker.WithBlocklist(blocklist),
			checker.OnProgress(func(progress checker.Progress) {
				log.Info("Checking proxies", "done", progress.Done, "total", progress.Total,
					"working", progress.Working, "percent", fmt.Sprintf("%.1f", progress.Percent()))
			}),
		},
		IPLookup:  cfg.Checker.IpLookup,
		Locator:   locator,
		Sink:      sinks,
		Metrics:   collector,
		Logger:    log.Default(),
		Heartbeat: heartbeat,
	}

	p.scheduler = &jobruntime.Scheduler{
		Runner:   p.runner,
		Interval: cfg.CycleInterval(),
		Logger:   log.Default().With("component", "scheduler"),
	}
	if redisClient != nil && cfg.Scheduler.LockKey != "" {
		key := cfg.Scheduler.LockKey
		p.scheduler.Lock = func(ctx context.Context, fn func(context.Context) error) error {
			return support.TryWithLock(ctx, redisClient, key, support.DefaultLockTTL, fn)
		}
		p.scheduler.Peers = heartbeat
	}

	if cfg.Metrics.Address != "" {
		p.closers = append(p.closers, serveMetrics(cfg.Metrics.Address, collector))
	}

	return p, nil
}

// startHeartbeat runs h until the returned closer is called. Close waits for
// the heartbeat key to be removed so the redis client can be closed after it.
func startHeartbeat(parent context.Context, h *jobruntime.Heartbeat) io.Closer {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
	}()
	return closerFunc(func() error {
		cancel()
		<-done
		return nil
	})
}

func (p *pipeline) buildSinks(cfg config.Config, redisClient *redis.Client) (publish.Multi, error) {
	var sinks publish.Multi

	if cfg.Output.Directory != "" {
		sinks = append(sinks, publish.NewFileSink(cfg.Output.Directory))
	}

	if redisClient != nil {
		sinks = append(sinks, publish.NewRedisSink(redisClient, cfg.Output.RedisKeyPrefix))
	}

	if cfg.Output.DatabaseDSN != "" {
		dialector, err := database.Dialector(cfg.Output.DatabaseDriver, cfg.Output.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		db, err := database.SetupDB(database.WithDialector(dialector))
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			p.closers = append(p.closers, sqlDB)
		}
		sinks = append(sinks, publish.NewDatabaseSink(db))
	}

	if len(sinks) == 0 {
		log.Warn("No output configured, results are only logged")
	}
	return sinks, nil
}

func serveMetrics(addr string, collector *metrics.Collector) io.Closer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("Serving metrics", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server terminated", "error", err)
		}
	}()

	return closerFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	})
}

// Close releases collaborators in reverse order of creation.
func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			log.Warn("Error while shutting down", "error", err)
		}
	}
	p.closers = nil
}
