package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"

	"proxyscout/internal/publish"
	"proxyscout/internal/support"
)

type CycleRunner interface {
	RunCycle(ctx context.Context) (publish.Report, error)
}

// PeerLister reports the status other instances advertise, keyed by
// instance id. Heartbeat implements it.
type PeerLister interface {
	ID() string
	Peers(ctx context.Context) (map[string]string, error)
}

// LockFunc runs fn only while holding a lock shared between instances. It
// returns support.ErrLockHeld when another instance holds it.
type LockFunc func(ctx context.Context, fn func(context.Context) error) error

// Scheduler runs a cycle immediately and then once per Interval until its
// context is cancelled. A failed cycle never stops the loop.
type Scheduler struct {
	Runner   CycleRunner
	Interval time.Duration
	Clock    clock.Clock
	Lock     LockFunc
	Peers    PeerLister
	Logger   *log.Logger
}

func (s *Scheduler) Run(ctx context.Context) error {
	logger := s.logger()
	s.runOnce(ctx, logger)

	ticker := s.clock().Ticker(s.Interval)
	defer ticker.Stop()

	logger.Info("Scheduler started", "interval", s.Interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx, logger)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, logger *log.Logger) {
	run := func(ctx context.Context) error {
		_, err := s.Runner.RunCycle(ctx)
		return err
	}

	var err error
	if s.Lock != nil {
		err = s.Lock(ctx, run)
	} else {
		err = run(ctx)
	}

	switch {
	case err == nil:
	case errors.Is(err, support.ErrLockHeld):
		s.logLockHolder(ctx, logger)
	case ctx.Err() != nil:
		logger.Debug("Cycle stopped by shutdown", "error", err)
	default:
		logger.Error("Cycle failed", "error", err)
	}
}

func (s *Scheduler) logLockHolder(ctx context.Context, logger *log.Logger) {
	if s.Peers == nil {
		logger.Info("Another instance is running a cycle, skipping this tick")
		return
	}

	peers, err := s.Peers.Peers(ctx)
	if err != nil {
		logger.Info("Another instance is running a cycle, skipping this tick", "peers_error", err)
		return
	}

	running := runningPeers(peers, s.Peers.ID())
	if len(running) == 0 {
		logger.Info("Cycle lock held but no peer advertises a cycle, skipping this tick", "peers", len(peers))
		return
	}
	for id, cycleID := range running {
		logger.Info("Another instance is running a cycle, skipping this tick", "instance", id, "cycle", cycleID)
	}
}

func (s *Scheduler) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

func (s *Scheduler) clock() clock.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return clock.New()
}
