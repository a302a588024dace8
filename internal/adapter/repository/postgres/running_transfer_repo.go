package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

const runningTransferColumns = `
	debtor_id, transfer_uuid, coordinator_request_id,
	recipient, amount, transfer_note_format, transfer_note,
	initiated_at, transfer_id, finalized_at, error_code, total_locked_amount`

// runningTransferRepository implements domain.RunningTransferRepository
type runningTransferRepository struct {
	q querier
}

// Get retrieves a running transfer by its key
func (r *runningTransferRepository) Get(ctx context.Context, debtorID int64, transferUUID uuid.UUID, lock bool) (*domain.RunningTransfer, error) {
	query := `SELECT` + runningTransferColumns + `
		FROM running_transfer
		WHERE debtor_id = $1 AND transfer_uuid = $2` + forUpdate(lock)

	rt, err := scanRunningTransfer(r.q.QueryRowContext(ctx, query, debtorID, transferUUID))
	if err != nil {
		return nil, fmt.Errorf("failed to get running transfer: %w", err)
	}
	return rt, nil
}

// FindByCoordinatorRequest retrieves the running transfer correlated with a
// coordinator request. The coordinator ID of a debtor transfer is the debtor ID.
func (r *runningTransferRepository) FindByCoordinatorRequest(ctx context.Context, coordinatorID, coordinatorRequestID int64, lock bool) (*domain.RunningTransfer, error) {
	query := `SELECT` + runningTransferColumns + `
		FROM running_transfer
		WHERE debtor_id = $1 AND coordinator_request_id = $2` + forUpdate(lock)

	rt, err := scanRunningTransfer(r.q.QueryRowContext(ctx, query, coordinatorID, coordinatorRequestID))
	if err != nil {
		return nil, fmt.Errorf("failed to find running transfer: %w", err)
	}
	return rt, nil
}

// NextCoordinatorRequestID allocates a new correlation ID from a sequence
func (r *runningTransferRepository) NextCoordinatorRequestID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.q.QueryRowContext(ctx, `SELECT nextval('coordinator_request_id_seq')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to allocate coordinator request ID: %w", err)
	}
	return id, nil
}

// Create inserts a new running transfer
func (r *runningTransferRepository) Create(ctx context.Context, rt *domain.RunningTransfer) error {
	query := `INSERT INTO running_transfer (` + runningTransferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.q.ExecContext(ctx, query,
		rt.DebtorID,
		rt.TransferUUID,
		rt.CoordinatorRequestID,
		rt.Recipient,
		rt.Amount,
		rt.TransferNoteFormat,
		rt.TransferNote,
		rt.InitiatedAt,
		rt.TransferID,
		rt.FinalizedAt,
		rt.ErrorCode,
		rt.TotalLockedAmount,
	)
	if err != nil {
		return fmt.Errorf("failed to create running transfer: %w", mapError(err))
	}
	return nil
}

// Update saves the mutable fields of a running transfer
func (r *runningTransferRepository) Update(ctx context.Context, rt *domain.RunningTransfer) error {
	query := `
		UPDATE running_transfer
		SET transfer_id = $3, finalized_at = $4, error_code = $5, total_locked_amount = $6
		WHERE debtor_id = $1 AND transfer_uuid = $2
	`

	result, err := r.q.ExecContext(ctx, query,
		rt.DebtorID,
		rt.TransferUUID,
		rt.TransferID,
		rt.FinalizedAt,
		rt.ErrorCode,
		rt.TotalLockedAmount,
	)
	if err != nil {
		return fmt.Errorf("failed to update running transfer: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update running transfer %s: %w", rt.TransferUUID, domain.ErrTransferDoesNotExist)
	}
	return nil
}

// Delete removes a running transfer and reports whether it existed
func (r *runningTransferRepository) Delete(ctx context.Context, debtorID int64, transferUUID uuid.UUID) (bool, error) {
	result, err := r.q.ExecContext(ctx,
		`DELETE FROM running_transfer WHERE debtor_id = $1 AND transfer_uuid = $2`,
		debtorID, transferUUID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete running transfer: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// DeleteAllForDebtor removes all running transfers of a debtor
func (r *runningTransferRepository) DeleteAllForDebtor(ctx context.Context, debtorID int64) (int64, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM running_transfer WHERE debtor_id = $1`, debtorID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete running transfers: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

// DeleteFinalizedBefore removes the transfers finalized before cutoff and
// counts them per debtor
func (r *runningTransferRepository) DeleteFinalizedBefore(ctx context.Context, cutoff time.Time) (map[int64]int32, error) {
	query := `
		DELETE FROM running_transfer
		WHERE finalized_at < $1
		RETURNING debtor_id
	`

	rows, err := r.q.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to delete finalized transfers: %w", err)
	}
	defer rows.Close()

	deleted := make(map[int64]int32)
	for rows.Next() {
		var debtorID int64
		if err := rows.Scan(&debtorID); err != nil {
			return nil, fmt.Errorf("failed to scan debtor ID: %w", err)
		}
		deleted[debtorID]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deleted transfers: %w", err)
	}

	return deleted, nil
}

// ListUUIDs returns the transfer UUIDs of a debtor
func (r *runningTransferRepository) ListUUIDs(ctx context.Context, debtorID int64) ([]uuid.UUID, error) {
	query := `
		SELECT transfer_uuid
		FROM running_transfer
		WHERE debtor_id = $1
		ORDER BY initiated_at, transfer_uuid
	`

	rows, err := r.q.QueryContext(ctx, query, debtorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list running transfers: %w", err)
	}
	defer rows.Close()

	uuids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan transfer UUID: %w", err)
		}
		uuids = append(uuids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating running transfers: %w", err)
	}

	return uuids, nil
}

// scanRunningTransfer reads one row, returning nil when there is none
func scanRunningTransfer(row *sql.Row) (*domain.RunningTransfer, error) {
	var rt domain.RunningTransfer
	var transferID, totalLockedAmount sql.NullInt64
	var finalizedAt sql.NullTime
	var errorCode sql.NullString

	err := row.Scan(
		&rt.DebtorID,
		&rt.TransferUUID,
		&rt.CoordinatorRequestID,
		&rt.Recipient,
		&rt.Amount,
		&rt.TransferNoteFormat,
		&rt.TransferNote,
		&rt.InitiatedAt,
		&transferID,
		&finalizedAt,
		&errorCode,
		&totalLockedAmount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if transferID.Valid {
		rt.TransferID = &transferID.Int64
	}
	if finalizedAt.Valid {
		rt.FinalizedAt = &finalizedAt.Time
	}
	if errorCode.Valid {
		rt.ErrorCode = &errorCode.String
	}
	if totalLockedAmount.Valid {
		rt.TotalLockedAmount = &totalLockedAmount.Int64
	}

	return &rt, nil
}
