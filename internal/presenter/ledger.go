package presenter

import (
	"context"
	"time"

	"github.com/italolelis/batchdl/internal/downloader"
	"github.com/italolelis/batchdl/internal/logctx"
	"github.com/italolelis/batchdl/internal/storage"
	"github.com/italolelis/batchdl/internal/transfer"
)

// Ledger records the outcome of every admitted transfer. Write failures are logged and
// never affect the batch.
type Ledger struct {
	ctx     context.Context
	repo    storage.TransferWriteRepository
	batchID string
	now     func() time.Time
}

// NewLedger creates a ledger for the batch whose id ctx carries. Outcomes are written
// even after ctx is cancelled, so an interrupted batch still records its cancelled transfers.
func NewLedger(ctx context.Context, repo storage.TransferWriteRepository) *Ledger {
	return &Ledger{
		ctx:     context.WithoutCancel(ctx),
		repo:    repo,
		batchID: logctx.BatchIDFromContext(ctx),
		now:     time.Now,
	}
}

func (l *Ledger) TaskStarted(spec transfer.Spec) downloader.TaskHandle {
	return &ledgerHandle{ledger: l, spec: spec}
}

func (l *Ledger) BatchProgress(downloader.BatchSnapshot) {}

type ledgerHandle struct {
	ledger *Ledger
	spec   transfer.Spec
	done   int64
}

func (h *ledgerHandle) Progress(s downloader.TaskSnapshot) {
	h.done = s.Done
}

func (h *ledgerHandle) Terminal(success bool, message string) {
	record := storage.TransferRecord{
		BatchID:     h.ledger.batchID,
		Source:      h.spec.Source,
		Destination: h.spec.Destination,
		Status:      outcome(success, message).String(),
		Bytes:       h.done,
		Message:     message,
		FinishedAt:  h.ledger.now(),
	}

	if err := h.ledger.repo.RecordTransfer(h.ledger.ctx, record); err != nil {
		logctx.LoggerFromContext(h.ledger.ctx).ErrorContext(h.ledger.ctx, "failed to record transfer outcome",
			"destination", h.spec.Destination, "err", err)
	}
}

func outcome(success bool, message string) transfer.Status {
	switch {
	case success:
		return transfer.StatusCompleted
	case message == downloader.MessageCancelled:
		return transfer.StatusCancelled
	default:
		return transfer.StatusFailed
	}
}
