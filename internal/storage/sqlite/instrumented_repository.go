package sqlite

import (
	"context"
	"database/sql"

	"github.com/italolelis/batchdl/internal/storage"
	"github.com/italolelis/batchdl/internal/telemetry"
)

// InstrumentedTransferRepository wraps TransferRepository with telemetry.
type InstrumentedTransferRepository struct {
	repo      *TransferRepository
	telemetry *telemetry.Telemetry
}

func NewInstrumentedTransferRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedTransferRepository {
	return &InstrumentedTransferRepository{
		repo:      NewTransferRepository(dbConn),
		telemetry: tel,
	}
}

func (r *InstrumentedTransferRepository) RecordTransfer(ctx context.Context, record storage.TransferRecord) error {
	return r.telemetry.InstrumentDBOperation(ctx, "record_transfer", func(ctx context.Context) error {
		return r.repo.RecordTransfer(ctx, record)
	})
}

func (r *InstrumentedTransferRepository) GetTransfers(ctx context.Context, batchID string) ([]storage.TransferRecord, error) {
	var result []storage.TransferRecord

	err := r.telemetry.InstrumentDBOperation(ctx, "get_transfers", func(ctx context.Context) error {
		var err error

		result, err = r.repo.GetTransfers(ctx, batchID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
