package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/italolelis/batchdl/internal/storage"
)

type TransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(dbConn *sql.DB) *TransferRepository {
	return &TransferRepository{db: dbConn}
}

// RecordTransfer appends one outcome. Records are never updated.
func (r *TransferRepository) RecordTransfer(ctx context.Context, record storage.TransferRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transfers (batch_id, source, destination, status, bytes, message, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.BatchID, record.Source, record.Destination, record.Status, record.Bytes,
		record.Message, record.FinishedAt.UTC().Format(time.RFC3339Nano))

	return err
}

// GetTransfers returns the outcomes of a batch in the order they were recorded.
func (r *TransferRepository) GetTransfers(ctx context.Context, batchID string) ([]storage.TransferRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT
			batch_id,
			source,
			destination,
			status,
			bytes,
			message,
			finished_at
		FROM transfers
		WHERE batch_id = ?
		ORDER BY id`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []storage.TransferRecord

	for rows.Next() {
		var (
			record     storage.TransferRecord
			message    sql.NullString
			finishedAt string
		)

		if err := rows.Scan(&record.BatchID, &record.Source, &record.Destination, &record.Status,
			&record.Bytes, &message, &finishedAt); err != nil {
			return nil, err
		}

		record.Message = message.String

		record.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, rows.Err()
}
