package downloader

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateNeverExceedsCap(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		cap     int
	}{
		{"serial", 8, 1},
		{"two of five", 5, 2},
		{"cap equals workers", 4, 4},
		{"many", 64, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(tt.cap)

			var (
				wg      sync.WaitGroup
				peak    atomic.Int32
				current atomic.Int32
			)

			for i := 0; i < tt.workers; i++ {
				wg.Add(1)

				go func() {
					defer wg.Done()

					p, err := g.Acquire(context.Background())
					if !assert.NoError(t, err) {
						return
					}
					defer p.Release()

					n := current.Add(1)
					for {
						old := peak.Load()
						if n <= old || peak.CompareAndSwap(old, n) {
							break
						}
					}

					assert.LessOrEqual(t, g.Running(), tt.cap)
					time.Sleep(2 * time.Millisecond)
					current.Add(-1)
				}()
			}

			wg.Wait()

			assert.LessOrEqual(t, int(peak.Load()), tt.cap)
			assert.Equal(t, 0, g.Running())
			assert.Equal(t, tt.cap, g.Cap())
		})
	}
}

func TestGateAcquireHonoursContext(t *testing.T) {
	g := NewGate(1)

	p, err := g.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = g.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, g.Running())

	p.Release()
	p.Release()
	assert.Equal(t, 0, g.Running(), "release must be idempotent")

	p2, err := g.Acquire(context.Background())
	require.NoError(t, err)
	p2.Release()
}

func TestGateWakesWaiterOnRelease(t *testing.T) {
	g := NewGate(1)

	p, err := g.Acquire(context.Background())
	require.NoError(t, err)

	admitted := make(chan struct{})

	go func() {
		p2, err := g.Acquire(context.Background())
		if err == nil {
			close(admitted)
			p2.Release()
		}
	}()

	select {
	case <-admitted:
		t.Fatal("waiter admitted while the only slot was held")
	case <-time.After(20 * time.Millisecond):
	}

	p.Release()

	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("waiter not admitted after release")
	}
}
