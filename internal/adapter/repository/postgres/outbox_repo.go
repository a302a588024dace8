package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

// outboxRepository implements domain.OutboxRepository
type outboxRepository struct {
	q querier
}

// Append records a message and sets its ID
func (r *outboxRepository) Append(ctx context.Context, msg *domain.OutboxMessage) error {
	query := `
		INSERT INTO outbox (kind, debtor_id, payload, inserted_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.q.QueryRowContext(ctx, query,
		string(msg.Kind),
		msg.DebtorID,
		msg.Payload,
		msg.InsertedAt,
	).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("failed to append outbox message: %w", err)
	}
	return nil
}

// Pending returns the oldest messages, skipping the ones locked by
// concurrent relays
func (r *outboxRepository) Pending(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	query := `
		SELECT id, kind, debtor_id, payload, inserted_at
		FROM outbox
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.OutboxMessage
	for rows.Next() {
		var msg domain.OutboxMessage
		var kind string
		if err := rows.Scan(&msg.ID, &kind, &msg.DebtorID, &msg.Payload, &msg.InsertedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		msg.Kind = domain.SignalKind(kind)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox messages: %w", err)
	}

	return messages, nil
}

// Delete removes published messages
func (r *outboxRepository) Delete(ctx context.Context, ids []int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM outbox WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to delete outbox messages: %w", err)
	}
	return nil
}
