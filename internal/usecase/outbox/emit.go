package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/epandurski/swpt-debtors/internal/domain"
	"github.com/epandurski/swpt-debtors/internal/metrics"
)

// Emit records signal in the outbox of the running unit of work, so that it
// is published only if the unit of work commits.
func Emit(ctx context.Context, tx domain.Tx, signal domain.OutboundSignal, now time.Time) error {
	msg, err := domain.NewOutboxMessage(signal, now)
	if err != nil {
		return err
	}

	if err := tx.Outbox().Append(ctx, msg); err != nil {
		return fmt.Errorf("failed to append %s signal to the outbox: %w", signal.Kind(), err)
	}

	metrics.CountEmitted(ctx, signal.Kind())
	return nil
}
