package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

const dateLayout = "2006-01-02"

const debtorColumns = `
	debtor_id, status_flags, created_at, reservation_id, deactivated_at,
	interest_rate_target,
	interest_rate_lower_limit_values, interest_rate_lower_limit_cutoffs,
	balance_lower_limit_values, balance_lower_limit_cutoffs,
	min_balance, balance, account_id, transfer_note_max_bytes,
	has_server_account, account_creation_date, account_last_change_ts,
	account_last_change_seqnum, account_last_heartbeat_ts,
	is_config_effectual, config_error, debtor_info_iri,
	last_config_ts, last_config_seqnum, config_data, config_flags,
	config_latest_update_id,
	actions_count, actions_count_reset_date,
	documents_count, documents_count_reset_date,
	running_transfers_count`

// debtorRepository implements domain.DebtorRepository
type debtorRepository struct {
	q querier
}

// Get retrieves a debtor by its ID
func (r *debtorRepository) Get(ctx context.Context, debtorID int64, lock bool) (*domain.Debtor, error) {
	query := `SELECT` + debtorColumns + `
		FROM debtor
		WHERE debtor_id = $1` + forUpdate(lock)

	var d domain.Debtor
	var deactivatedAt sql.NullTime
	var configError, debtorInfoIRI sql.NullString
	var rateValues, rateCutoffs, balanceValues, balanceCutoffs pq.StringArray

	err := r.q.QueryRowContext(ctx, query, debtorID).Scan(
		&d.DebtorID,
		&d.StatusFlags,
		&d.CreatedAt,
		&d.ReservationID,
		&deactivatedAt,
		&d.InterestRateTarget,
		&rateValues,
		&rateCutoffs,
		&balanceValues,
		&balanceCutoffs,
		&d.MinBalance,
		&d.Balance,
		&d.AccountID,
		&d.TransferNoteMaxBytes,
		&d.HasServerAccount,
		&d.AccountCreationDate,
		&d.AccountLastChangeTs,
		&d.AccountLastChangeSeqnum,
		&d.AccountLastHeartbeatTs,
		&d.IsConfigEffectual,
		&configError,
		&debtorInfoIRI,
		&d.LastConfigTs,
		&d.LastConfigSeqnum,
		&d.ConfigData,
		&d.ConfigFlags,
		&d.ConfigLatestUpdateID,
		&d.ActionsCount,
		&d.ActionsCountResetDate,
		&d.DocumentsCount,
		&d.DocumentsCountResetDate,
		&d.RunningTransfersCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get debtor: %w", err)
	}

	if deactivatedAt.Valid {
		d.DeactivatedAt = &deactivatedAt.Time
	}
	if configError.Valid {
		d.ConfigError = &configError.String
	}
	if debtorInfoIRI.Valid {
		d.DebtorInfoIRI = &debtorInfoIRI.String
	}

	// Parse lower limits (NUMERIC[] and DATE[])
	if d.InterestRateLowerLimits, err = decodeLimits(rateValues, rateCutoffs); err != nil {
		return nil, fmt.Errorf("failed to parse interest rate lower limits: %w", err)
	}
	if d.BalanceLowerLimits, err = decodeLimits(balanceValues, balanceCutoffs); err != nil {
		return nil, fmt.Errorf("failed to parse balance lower limits: %w", err)
	}

	return &d, nil
}

// Create inserts a new debtor
func (r *debtorRepository) Create(ctx context.Context, d *domain.Debtor) error {
	query := `INSERT INTO debtor (` + debtorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32)
	`

	if _, err := r.q.ExecContext(ctx, query, debtorArgs(d)...); err != nil {
		return fmt.Errorf("failed to create debtor: %w", mapError(err))
	}
	return nil
}

// Update saves all fields of an existing debtor
func (r *debtorRepository) Update(ctx context.Context, d *domain.Debtor) error {
	query := `
		UPDATE debtor SET
			status_flags = $2, created_at = $3, reservation_id = $4, deactivated_at = $5,
			interest_rate_target = $6,
			interest_rate_lower_limit_values = $7, interest_rate_lower_limit_cutoffs = $8,
			balance_lower_limit_values = $9, balance_lower_limit_cutoffs = $10,
			min_balance = $11, balance = $12, account_id = $13, transfer_note_max_bytes = $14,
			has_server_account = $15, account_creation_date = $16, account_last_change_ts = $17,
			account_last_change_seqnum = $18, account_last_heartbeat_ts = $19,
			is_config_effectual = $20, config_error = $21, debtor_info_iri = $22,
			last_config_ts = $23, last_config_seqnum = $24, config_data = $25, config_flags = $26,
			config_latest_update_id = $27,
			actions_count = $28, actions_count_reset_date = $29,
			documents_count = $30, documents_count_reset_date = $31,
			running_transfers_count = $32
		WHERE debtor_id = $1
	`

	result, err := r.q.ExecContext(ctx, query, debtorArgs(d)...)
	if err != nil {
		return fmt.Errorf("failed to update debtor: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update debtor %d: %w", d.DebtorID, domain.ErrDebtorDoesNotExist)
	}
	return nil
}

// ListActivatedIDs returns activated debtor IDs in ascending order
func (r *debtorRepository) ListActivatedIDs(ctx context.Context, startFrom int64, count int) ([]int64, error) {
	query := `
		SELECT debtor_id
		FROM debtor
		WHERE status_flags & $1 != 0 AND debtor_id >= $2
		ORDER BY debtor_id
		LIMIT $3
	`

	rows, err := r.q.QueryContext(ctx, query, domain.DebtorStatusActivatedFlag, startFrom, count)
	if err != nil {
		return nil, fmt.Errorf("failed to list debtors: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan debtor ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating debtors: %w", err)
	}

	return ids, nil
}

func debtorArgs(d *domain.Debtor) []any {
	rateValues, rateCutoffs := encodeLimits(d.InterestRateLowerLimits)
	balanceValues, balanceCutoffs := encodeLimits(d.BalanceLowerLimits)

	return []any{
		d.DebtorID,
		d.StatusFlags,
		d.CreatedAt,
		d.ReservationID,
		d.DeactivatedAt,
		d.InterestRateTarget,
		rateValues,
		rateCutoffs,
		balanceValues,
		balanceCutoffs,
		d.MinBalance,
		d.Balance,
		d.AccountID,
		d.TransferNoteMaxBytes,
		d.HasServerAccount,
		d.AccountCreationDate,
		d.AccountLastChangeTs,
		int32(d.AccountLastChangeSeqnum),
		d.AccountLastHeartbeatTs,
		d.IsConfigEffectual,
		d.ConfigError,
		d.DebtorInfoIRI,
		d.LastConfigTs,
		int32(d.LastConfigSeqnum),
		d.ConfigData,
		d.ConfigFlags,
		d.ConfigLatestUpdateID,
		d.ActionsCount,
		d.ActionsCountResetDate,
		d.DocumentsCount,
		d.DocumentsCountResetDate,
		d.RunningTransfersCount,
	}
}

// encodeLimits splits a limit sequence into parallel value and cutoff arrays
func encodeLimits(s domain.LowerLimitSequence) (pq.StringArray, pq.StringArray) {
	values := make(pq.StringArray, len(s))
	cutoffs := make(pq.StringArray, len(s))
	for i, limit := range s {
		values[i] = limit.Value.String()
		cutoffs[i] = limit.Cutoff.Format(dateLayout)
	}
	return values, cutoffs
}

// decodeLimits is the inverse of encodeLimits
func decodeLimits(values, cutoffs pq.StringArray) (domain.LowerLimitSequence, error) {
	if len(values) != len(cutoffs) {
		return nil, fmt.Errorf("got %d values and %d cutoffs", len(values), len(cutoffs))
	}

	s := make(domain.LowerLimitSequence, 0, len(values))
	for i := range values {
		value, err := decimal.NewFromString(values[i])
		if err != nil {
			return nil, fmt.Errorf("invalid limit value %q: %w", values[i], err)
		}
		cutoff, err := time.Parse(dateLayout, cutoffs[i])
		if err != nil {
			return nil, fmt.Errorf("invalid limit cutoff %q: %w", cutoffs[i], err)
		}
		s = append(s, domain.LowerLimit{Value: value, Cutoff: cutoff})
	}
	return s, nil
}
