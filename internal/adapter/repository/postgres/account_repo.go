package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

const accountColumns = `
	debtor_id, creditor_id, creation_date, last_change_ts, last_change_seqnum,
	principal, interest, interest_rate, last_interest_rate_change_ts,
	negligible_amount, config_flags, status_flags, last_heartbeat_ts,
	is_muted, last_maintenance_request_ts`

// accountRepository implements domain.AccountRepository
type accountRepository struct {
	q querier
}

// Get retrieves an account replica
func (r *accountRepository) Get(ctx context.Context, debtorID, creditorID int64, lock bool) (*domain.Account, error) {
	query := `SELECT` + accountColumns + `
		FROM account
		WHERE debtor_id = $1 AND creditor_id = $2` + forUpdate(lock)

	var a domain.Account
	var lastMaintenanceRequestTs sql.NullTime

	err := r.q.QueryRowContext(ctx, query, debtorID, creditorID).Scan(
		&a.DebtorID,
		&a.CreditorID,
		&a.CreationDate,
		&a.LastChangeTs,
		&a.LastChangeSeqnum,
		&a.Principal,
		&a.Interest,
		&a.InterestRate,
		&a.LastInterestRateChangeTs,
		&a.NegligibleAmount,
		&a.ConfigFlags,
		&a.StatusFlags,
		&a.LastHeartbeatTs,
		&a.IsMuted,
		&lastMaintenanceRequestTs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if lastMaintenanceRequestTs.Valid {
		a.LastMaintenanceRequestTs = &lastMaintenanceRequestTs.Time
	}

	return &a, nil
}

// Create inserts a new account replica
func (r *accountRepository) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO account (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	if _, err := r.q.ExecContext(ctx, query, accountArgs(a)...); err != nil {
		return fmt.Errorf("failed to create account: %w", mapError(err))
	}
	return nil
}

// Update saves all fields of an account replica
func (r *accountRepository) Update(ctx context.Context, a *domain.Account) error {
	query := `
		UPDATE account SET
			creation_date = $3, last_change_ts = $4, last_change_seqnum = $5,
			principal = $6, interest = $7, interest_rate = $8, last_interest_rate_change_ts = $9,
			negligible_amount = $10, config_flags = $11, status_flags = $12, last_heartbeat_ts = $13,
			is_muted = $14, last_maintenance_request_ts = $15
		WHERE debtor_id = $1 AND creditor_id = $2
	`

	if _, err := r.q.ExecContext(ctx, query, accountArgs(a)...); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

// Delete removes an account replica
func (r *accountRepository) Delete(ctx context.Context, debtorID, creditorID int64) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM account WHERE debtor_id = $1 AND creditor_id = $2`,
		debtorID, creditorID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

func accountArgs(a *domain.Account) []any {
	return []any{
		a.DebtorID,
		a.CreditorID,
		a.CreationDate,
		a.LastChangeTs,
		int32(a.LastChangeSeqnum),
		a.Principal,
		a.Interest,
		a.InterestRate,
		a.LastInterestRateChangeTs,
		a.NegligibleAmount,
		a.ConfigFlags,
		a.StatusFlags,
		a.LastHeartbeatTs,
		a.IsMuted,
		a.LastMaintenanceRequestTs,
	}
}
