package downloader

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of transfers doing network I/O at the same time.
// Waiters are admitted in FIFO order as soon as a permit is released.
type Gate struct {
	sem     *semaphore.Weighted
	cap     int
	running atomic.Int32
}

// Permit is the right to run one transfer. Release it exactly once; extra calls are no-ops.
type Permit struct {
	gate *Gate
	once sync.Once
}

func NewGate(capacity int) *Gate {
	return &Gate{
		sem: semaphore.NewWeighted(int64(capacity)),
		cap: capacity,
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) (*Permit, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	g.running.Add(1)

	return &Permit{gate: g}, nil
}

func (p *Permit) Release() {
	p.once.Do(func() {
		p.gate.running.Add(-1)
		p.gate.sem.Release(1)
	})
}

// Running returns the number of outstanding permits.
func (g *Gate) Running() int {
	return int(g.running.Load())
}

func (g *Gate) Cap() int {
	return g.cap
}
