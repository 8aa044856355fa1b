package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/batchdl/internal/downloader/progress"
	"github.com/italolelis/batchdl/internal/logctx"
	"github.com/italolelis/batchdl/internal/sizefmt"
	"github.com/italolelis/batchdl/internal/transfer"
)

// MessageCancelled is the terminal message of transfers stopped by batch cancellation.
const MessageCancelled = "cancelled"

const (
	dirPerm = 0755

	progressLogInterval = 10 * time.Second
)

// task downloads one spec. Its state is written only by the goroutine running it.
type task struct {
	index int
	spec  transfer.Spec
	state *transfer.State

	// owned by the sampler
	lastSampled int64
}

func newTask(index int, spec transfer.Spec) *task {
	return &task{
		index: index,
		spec:  spec,
		state: transfer.NewState(),
	}
}

func (t *task) snapshot(done int64, speed float64) TaskSnapshot {
	return TaskSnapshot{
		Name:      t.spec.Name(),
		Done:      done,
		Total:     t.state.Total(),
		Speed:     speed,
		SpeedText: sizefmt.Speed(speed),
	}
}

// finish hands the presenter the final byte count followed by the outcome.
func (t *task) finish(d *dispatcher, success bool, message string) {
	d.taskProgress(t.index, t.snapshot(t.state.Transferred(), 0))
	d.taskTerminal(t.index, success, message)
}

// run drives the task to a terminal state. It returns an error only when this task's
// failure is the first of the batch; every other outcome returns nil.
func (c *Coordinator) runTask(ctx context.Context, b *BatchState, d *dispatcher, t *task) error {
	logger := logctx.LoggerFromContext(ctx).With("source", t.spec.Source, "destination", t.spec.Destination)

	defer b.completed.Add(1)

	permit, err := b.gate.Acquire(ctx)
	if err != nil {
		t.state.SetStatus(transfer.StatusCancelled)
		logger.DebugContext(ctx, "transfer cancelled before admission")

		return nil
	}
	defer permit.Release()

	d.taskStarted(t.index, t.spec)
	t.state.SetStatus(transfer.StatusConnecting)

	start := time.Now()

	err = c.telemetry.InstrumentTransfer(ctx, func(ctx context.Context) error {
		return c.download(ctx, b, t, logger)
	})

	switch {
	case err == nil:
		t.state.SetStatus(transfer.StatusCompleted)
		b.succeeded.Add(1)
		t.finish(d, true, "")

		logger.InfoContext(ctx, "downloaded and saved file",
			"size", humanize.Bytes(uint64(t.state.Transferred())),
			"duration", time.Since(start).String())

		return nil
	case ctx.Err() != nil:
		// The batch was cancelled underneath us; whatever failed here is a consequence.
		t.state.SetStatus(transfer.StatusCancelled)
		t.finish(d, false, MessageCancelled)

		logger.DebugContext(ctx, "transfer cancelled", "transferred", t.state.Transferred(), "err", err)

		return nil
	}

	var terr *transfer.TransferError
	if !errors.As(err, &terr) {
		terr = &transfer.TransferError{
			Source:      t.spec.Source,
			Destination: t.spec.Destination,
			Reason:      err.Error(),
			Err:         err,
		}
	}

	t.state.Fail(terr.Reason)
	t.finish(d, false, terr.Error())

	if !b.fail(terr) {
		logger.DebugContext(ctx, "discarding transfer error, batch already failed", "err", terr)

		return nil
	}

	logger.ErrorContext(ctx, "failed to download file", "err", terr)

	return terr
}

func (c *Coordinator) download(ctx context.Context, b *BatchState, t *task, logger *slog.Logger) error {
	fail := func(statusCode int, reason string, err error) error {
		return &transfer.TransferError{
			Source:      t.spec.Source,
			Destination: t.spec.Destination,
			StatusCode:  statusCode,
			Reason:      reason,
			Err:         err,
		}
	}

	url := t.spec.Source
	if c.resolver != nil {
		resolved, err := c.resolver.Resolve(ctx, t.spec.Source)
		if err != nil {
			return fail(0, "failed to resolve source", err)
		}

		url = resolved
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(0, "failed to create request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fail(0, "failed to connect", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fail(resp.StatusCode, fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode), nil)
	}

	if t.state.SetTotal(resp.ContentLength) {
		b.declared.Add(resp.ContentLength)
	}

	t.state.SetStatus(transfer.StatusTransferring)

	if err := ensureTargetDir(t.spec.Destination); err != nil {
		return fail(0, "failed to create target directory", err)
	}

	out, err := os.Create(t.spec.Destination)
	if err != nil {
		return fail(0, "failed to create target file", err)
	}
	defer out.Close()

	total := t.state.Total()

	bufSize := sizefmt.DefaultBufferSize
	if total != transfer.UnknownSize {
		bufSize = sizefmt.ChooseBufferSize(uint64(total))
	}

	logger.InfoContext(ctx, "downloading file", "file_size", describeSize(total), "buffer_size", humanize.IBytes(uint64(bufSize)))

	pr := progress.NewReader(ctx, resp.Body, total, progressLogInterval, func(read, total int64) {
		if total > 0 {
			logger.DebugContext(ctx, "download progress",
				"downloaded", humanize.Bytes(uint64(read)),
				"total", humanize.Bytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(read)*100/float64(total), 2))
		} else {
			logger.DebugContext(ctx, "download progress", "downloaded", humanize.Bytes(uint64(read)))
		}
	})

	buf := make([]byte, bufSize)

	for {
		n, rerr := pr.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return fail(0, "failed to write chunk", err)
			}

			t.state.Add(int64(n))
			b.transferred.Add(int64(n))
			c.telemetry.RecordBytes(ctx, int64(n))
		}

		if rerr == io.EOF {
			break
		}

		if rerr != nil {
			return fail(0, "failed to read chunk", rerr)
		}
	}

	if err := out.Close(); err != nil {
		return fail(0, "failed to flush target file", err)
	}

	return nil
}

func ensureTargetDir(targetPath string) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create target directory %s: %w", dir, err)
	}

	return nil
}

func describeSize(total int64) string {
	if total == transfer.UnknownSize {
		return "unknown"
	}

	return humanize.Bytes(uint64(total))
}
