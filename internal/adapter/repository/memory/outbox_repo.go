package memory

import (
	"context"
	"slices"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

type outboxRepository struct {
	state *state
}

func (r *outboxRepository) Append(ctx context.Context, msg *domain.OutboxMessage) error {
	r.state.lastOutboxID++
	c := *msg
	c.ID = r.state.lastOutboxID
	r.state.outbox = append(r.state.outbox, &c)
	msg.ID = c.ID
	return nil
}

func (r *outboxRepository) Pending(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	n := min(limit, len(r.state.outbox))
	pending := make([]*domain.OutboxMessage, 0, n)
	for _, msg := range r.state.outbox[:n] {
		c := *msg
		pending = append(pending, &c)
	}
	return pending, nil
}

func (r *outboxRepository) Delete(ctx context.Context, ids []int64) error {
	r.state.outbox = slices.DeleteFunc(r.state.outbox, func(msg *domain.OutboxMessage) bool {
		return slices.Contains(ids, msg.ID)
	})
	return nil
}
