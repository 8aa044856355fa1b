package storage

import (
	"context"
	"time"
)

// TransferRecord is the outcome of one transfer of a batch.
type TransferRecord struct {
	BatchID     string
	Source      string
	Destination string
	Status      string
	Bytes       int64
	Message     string
	FinishedAt  time.Time
}

type TransferReadRepository interface {
	GetTransfers(ctx context.Context, batchID string) ([]TransferRecord, error)
}

type TransferWriteRepository interface {
	RecordTransfer(ctx context.Context, record TransferRecord) error
}
