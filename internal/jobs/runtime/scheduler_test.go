package runtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"proxyscout/internal/publish"
	"proxyscout/internal/support"
)

type countingRunner struct {
	runs atomic.Int64
	ran  chan struct{}
	err  error
}

func (r *countingRunner) RunCycle(context.Context) (publish.Report, error) {
	r.runs.Add(1)
	r.ran <- struct{}{}
	return publish.Report{}, r.err
}

func waitForRun(t *testing.T, ran <-chan struct{}, advance func()) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-ran:
			return
		case <-deadline:
			t.Fatalf("timed out waiting for cycle")
		default:
			if advance != nil {
				advance()
			}
			time.Sleep(time.Millisecond)
		}
	}
}

func TestSchedulerRunsImmediatelyThenOnInterval(t *testing.T) {
	mock := clock.NewMock()
	runner := &countingRunner{ran: make(chan struct{}, 16), err: errors.New("source outage")}
	scheduler := &Scheduler{Runner: runner, Interval: time.Minute, Clock: mock}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	waitForRun(t, runner.ran, nil)
	waitForRun(t, runner.ran, func() { mock.Add(time.Minute) })

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop after cancel")
	}

	if got := runner.runs.Load(); got < 2 {
		t.Fatalf("expected at least 2 cycles despite failures, got %d", got)
	}
}

func TestSchedulerSkipsWhenLockHeld(t *testing.T) {
	runner := &countingRunner{ran: make(chan struct{}, 1)}
	var attempts atomic.Int64
	scheduler := &Scheduler{
		Runner:   runner,
		Interval: time.Minute,
		Lock: func(ctx context.Context, fn func(context.Context) error) error {
			attempts.Add(1)
			return support.ErrLockHeld
		},
	}

	scheduler.runOnce(context.Background(), scheduler.logger())

	if attempts.Load() != 1 {
		t.Fatalf("expected lock to be attempted once, got %d", attempts.Load())
	}
	if runner.runs.Load() != 0 {
		t.Fatalf("cycle must not run while another instance holds the lock")
	}
}

func TestSchedulerRunsUnderLock(t *testing.T) {
	runner := &countingRunner{ran: make(chan struct{}, 1)}
	scheduler := &Scheduler{
		Runner: runner,
		Lock: func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	}

	scheduler.runOnce(context.Background(), scheduler.logger())

	if runner.runs.Load() != 1 {
		t.Fatalf("expected one cycle under lock, got %d", runner.runs.Load())
	}
}

type fakePeers struct {
	self  string
	peers map[string]string
	calls atomic.Int64
}

func (f *fakePeers) ID() string { return f.self }

func (f *fakePeers) Peers(context.Context) (map[string]string, error) {
	f.calls.Add(1)
	return f.peers, nil
}

func TestSchedulerLooksUpLockHolder(t *testing.T) {
	runner := &countingRunner{ran: make(chan struct{}, 1)}
	peers := &fakePeers{self: "me", peers: map[string]string{"me": StatusIdle, "peer": "cycle-7"}}
	scheduler := &Scheduler{
		Runner: runner,
		Lock: func(context.Context, func(context.Context) error) error {
			return support.ErrLockHeld
		},
		Peers: peers,
	}

	scheduler.runOnce(context.Background(), scheduler.logger())

	if peers.calls.Load() != 1 {
		t.Fatalf("expected peers to be listed once on a held lock, got %d", peers.calls.Load())
	}
	if runner.runs.Load() != 0 {
		t.Fatalf("cycle must not run while the lock is held")
	}
}

func TestSchedulerSkipsPeerLookupWhenCycleRuns(t *testing.T) {
	runner := &countingRunner{ran: make(chan struct{}, 1)}
	peers := &fakePeers{self: "me"}
	scheduler := &Scheduler{Runner: runner, Peers: peers}

	scheduler.runOnce(context.Background(), scheduler.logger())

	if peers.calls.Load() != 0 {
		t.Fatalf("peers listed %d times without lock contention", peers.calls.Load())
	}
}
