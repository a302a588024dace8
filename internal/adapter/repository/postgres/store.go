package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// querier is the subset of *sql.Tx the repositories run their queries on
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements domain.Store on top of PostgreSQL transactions
type Store struct {
	db          *DB
	maxAttempts int
}

// NewStore creates a new Store. A unit of work is attempted at most
// maxAttempts times.
func NewStore(db *DB, maxAttempts int) *Store {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Store{db: db, maxAttempts: maxAttempts}
}

// Atomic runs fn in a database transaction, retrying on unique violations,
// serialization failures and deadlocks
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.attempt(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
	}
	return err
}

func (s *Store) attempt(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if err := fn(ctx, &tx{q: dbTx}); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	return nil
}

// mapError translates unique violations to domain.ErrRecordExists
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", domain.ErrRecordExists, pqErr.Constraint)
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, domain.ErrRecordExists) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == serializationFailure || pqErr.Code == deadlockDetected
	}
	return false
}

type tx struct {
	q querier
}

func (t *tx) Debtors() domain.DebtorRepository {
	return &debtorRepository{q: t.q}
}

func (t *tx) RunningTransfers() domain.RunningTransferRepository {
	return &runningTransferRepository{q: t.q}
}

func (t *tx) Accounts() domain.AccountRepository {
	return &accountRepository{q: t.q}
}

func (t *tx) NodeConfigs() domain.NodeConfigRepository {
	return &nodeConfigRepository{q: t.q}
}

func (t *tx) Outbox() domain.OutboxRepository {
	return &outboxRepository{q: t.q}
}

// forUpdate returns the locking clause for a SELECT
func forUpdate(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}
