package checker

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate bounds how many candidate checks run at once and records the highest
// concurrency it has admitted.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64

	inFlight atomic.Int64
	peak     atomic.Int64
}

func NewGate(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Acquire blocks until a slot is free or ctx is done. Every successful
// Acquire must be paired with exactly one Release.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	n := g.inFlight.Add(1)
	for {
		peak := g.peak.Load()
		if n <= peak || g.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	return nil
}

func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

func (g *Gate) Capacity() int64 { return g.capacity }
func (g *Gate) InFlight() int64 { return g.inFlight.Load() }
func (g *Gate) Peak() int64     { return g.peak.Load() }
