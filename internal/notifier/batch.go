package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/batchdl/internal/logctx"
	"github.com/italolelis/batchdl/internal/transfer"
)

// BatchResult summarises a finished batch for humans.
type BatchResult struct {
	BatchID  string
	Files    int
	Bytes    int64
	Duration time.Duration
	Err      error
}

func (r BatchResult) Message() string {
	if r.Err == nil {
		return fmt.Sprintf("✅ Batch %s finished: %d files, %s in %s",
			r.BatchID, r.Files, humanize.Bytes(uint64(r.Bytes)), r.Duration.Round(time.Second))
	}

	var batchErr *transfer.BatchError
	if errors.As(r.Err, &batchErr) {
		return fmt.Sprintf("❌ Batch %s failed after %d/%d files: %v",
			r.BatchID, batchErr.Completed, batchErr.Total, batchErr.Err)
	}

	return fmt.Sprintf("⚠️ Batch %s stopped: %v", r.BatchID, r.Err)
}

// NotifyBatch sends the batch outcome. A nil notifier is a no-op; delivery failures are
// logged and otherwise ignored.
func NotifyBatch(ctx context.Context, n Notifier, r BatchResult) {
	if n == nil {
		return
	}

	if err := n.Notify(ctx, r.Message()); err != nil {
		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to send notification", "batch_id", r.BatchID, "err", err)
	}
}
