package downloader

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/italolelis/batchdl/internal/logctx"
	"github.com/italolelis/batchdl/internal/sizefmt"
	"github.com/italolelis/batchdl/internal/telemetry"
	"github.com/italolelis/batchdl/internal/transfer"
	"golang.org/x/sync/errgroup"
)

const DefaultSampleInterval = 250 * time.Millisecond

// Resolver turns a source URI into a URL the HTTP client can fetch.
type Resolver interface {
	Resolve(ctx context.Context, source string) (string, error)
}

// BatchState is shared by every task of one batch and its sampler. Counters are only
// ever added to by the task that owns the bytes; nothing recomputes them.
type BatchState struct {
	ID    string
	Total int

	gate        *Gate
	transferred atomic.Int64
	declared    atomic.Int64
	completed   atomic.Int32
	succeeded   atomic.Int32
	firstError  atomic.Pointer[transfer.TransferError]
	cancel      context.CancelCauseFunc
}

func newBatchState(id string, total int, gate *Gate, cancel context.CancelCauseFunc) *BatchState {
	return &BatchState{
		ID:     id,
		Total:  total,
		gate:   gate,
		cancel: cancel,
	}
}

func (b *BatchState) Transferred() int64 { return b.transferred.Load() }

func (b *BatchState) Declared() int64 { return b.declared.Load() }

// Completed returns the number of tasks that reached a terminal state.
func (b *BatchState) Completed() int { return int(b.completed.Load()) }

func (b *BatchState) Succeeded() int { return int(b.succeeded.Load()) }

func (b *BatchState) Running() int { return b.gate.Running() }

// FirstError returns the failure that aborted the batch, or nil.
func (b *BatchState) FirstError() *transfer.TransferError {
	return b.firstError.Load()
}

// fail records err as the batch failure unless one is already recorded, and signals
// cancellation. It reports whether err was the first.
func (b *BatchState) fail(err *transfer.TransferError) bool {
	if !b.firstError.CompareAndSwap(nil, err) {
		return false
	}

	b.cancel(err)

	return true
}

func (b *BatchState) snapshot(speed float64) BatchSnapshot {
	return BatchSnapshot{
		BatchID:   b.ID,
		Done:      b.Transferred(),
		Declared:  b.Declared(),
		Completed: b.Completed(),
		Total:     b.Total,
		Running:   b.Running(),
		Speed:     speed,
		SpeedText: sizefmt.Speed(speed),
	}
}

// Coordinator runs batches of transfers.
type Coordinator struct {
	client         *http.Client
	resolver       Resolver
	presenter      Presenter
	telemetry      *telemetry.Telemetry
	sampleInterval time.Duration
}

type Option func(*Coordinator)

func WithResolver(r Resolver) Option {
	return func(c *Coordinator) { c.resolver = r }
}

func WithPresenter(p Presenter) Option {
	return func(c *Coordinator) { c.presenter = p }
}

func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(c *Coordinator) { c.telemetry = t }
}

func WithSampleInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.sampleInterval = d
		}
	}
}

func NewCoordinator(client *http.Client, opts ...Option) *Coordinator {
	if client == nil {
		client = http.DefaultClient
	}

	c := &Coordinator{
		client:         client,
		presenter:      nopPresenter{},
		sampleInterval: DefaultSampleInterval,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run downloads every spec with at most concurrency transfers in flight and blocks
// until all of them are terminal. The first transfer failure cancels the rest and is
// returned as a *transfer.BatchError. A batch id already carried by ctx is reused.
func (c *Coordinator) Run(ctx context.Context, specs []transfer.Spec, concurrency int) error {
	if concurrency < 1 {
		return &transfer.ConfigError{
			Field:  "concurrency cap",
			Reason: fmt.Sprintf("must be at least 1, got %d", concurrency),
		}
	}

	if len(specs) == 0 {
		return nil
	}

	if err := validateSpecs(specs); err != nil {
		return err
	}

	batchID := logctx.BatchIDFromContext(ctx)
	if batchID == "" {
		batchID = uuid.NewString()
		ctx = logctx.WithBatchID(ctx, batchID)
	}

	return c.telemetry.InstrumentBatch(ctx, func(ctx context.Context) error {
		return c.run(ctx, batchID, specs, concurrency)
	})
}

func (c *Coordinator) run(parent context.Context, batchID string, specs []transfer.Spec, concurrency int) error {
	logger := logctx.LoggerFromContext(parent)

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	b := newBatchState(batchID, len(specs), NewGate(concurrency), cancel)
	d := newDispatcher(c.presenter, 4*len(specs)+16)

	tasks := make([]*task, len(specs))
	for i, spec := range specs {
		tasks[i] = newTask(i, spec)
	}

	logger.InfoContext(ctx, "starting batch", "files", len(specs), "max_parallel", concurrency)

	start := time.Now()

	stopSampler := make(chan struct{})

	var samplerWG sync.WaitGroup

	samplerWG.Add(1)

	go func() {
		defer samplerWG.Done()

		c.sample(b, d, tasks, stopSampler)
	}()

	g, gctx := errgroup.WithContext(ctx)

	for _, t := range tasks {
		g.Go(func() error {
			return c.runTask(gctx, b, d, t)
		})
	}

	waitErr := g.Wait()

	close(stopSampler)
	samplerWG.Wait()

	d.batchProgress(b.snapshot(0))
	d.close()

	if first := b.FirstError(); first != nil {
		logger.ErrorContext(parent, "batch failed",
			"completed", b.Succeeded(),
			"files", b.Total,
			"duration", time.Since(start).String(),
			"err", waitErr)

		return &transfer.BatchError{Total: b.Total, Completed: b.Succeeded(), Err: first}
	}

	if err := parent.Err(); err != nil {
		logger.WarnContext(parent, "batch interrupted", "completed", b.Succeeded(), "files", b.Total)

		return fmt.Errorf("batch interrupted: %w", context.Cause(parent))
	}

	logger.InfoContext(parent, "batch finished",
		"files", b.Total,
		"duration", time.Since(start).String(),
		"size", sizefmt.HumanReadable(uint64(b.Transferred())))

	return nil
}

// sample pushes progress every interval until stop is closed. It is the only reader of
// task.lastSampled.
func (c *Coordinator) sample(b *BatchState, d *dispatcher, tasks []*task, stop <-chan struct{}) {
	ticker := time.NewTicker(c.sampleInterval)
	defer ticker.Stop()

	seconds := c.sampleInterval.Seconds()

	var last int64

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, t := range tasks {
				if t.state.Status() != transfer.StatusTransferring {
					continue
				}

				done := t.state.Transferred()
				speed := float64(done-t.lastSampled) / seconds
				t.lastSampled = done

				d.taskProgress(t.index, t.snapshot(done, speed))
			}

			current := b.Transferred()
			speed := float64(current-last) / seconds
			last = current

			d.batchProgress(b.snapshot(speed))

			if first := b.FirstError(); first != nil {
				b.cancel(first)
			}
		}
	}
}

func validateSpecs(specs []transfer.Spec) error {
	seen := make(map[string]struct{}, len(specs))

	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return err
		}

		dest := filepath.Clean(spec.Destination)
		if _, ok := seen[dest]; ok {
			return &transfer.ConfigError{Field: "destination", Reason: "duplicate destination " + dest}
		}

		seen[dest] = struct{}{}
	}

	return nil
}
