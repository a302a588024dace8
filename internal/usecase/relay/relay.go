package relay

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/epandurski/swpt-debtors/internal/domain"
	"github.com/epandurski/swpt-debtors/internal/metrics"
)

// Publisher delivers outbound signals to the accounting service
type Publisher interface {
	Publish(ctx context.Context, msg *domain.OutboxMessage) error
}

// Relay moves committed outbox messages to a Publisher. Delivery is
// at-least-once: a message is deleted only after it has been published.
type Relay struct {
	Store     domain.Store
	Publisher Publisher
	BatchSize int
	Log       *logrus.Logger
}

// NewRelay creates a new Relay instance
func NewRelay(store domain.Store, publisher Publisher, batchSize int, log *logrus.Logger) *Relay {
	return &Relay{
		Store:     store,
		Publisher: publisher,
		BatchSize: batchSize,
		Log:       log,
	}
}

// RunOnce publishes one batch of pending messages and returns how many
// were delivered
// Logic:
//  1. Lock a batch of pending messages
//  2. Publish them in insertion order, stopping at the first failure
//  3. Delete the delivered messages
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	var published int
	var publishErr error

	err := r.Store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		published, publishErr = 0, nil

		// 1. Lock a batch
		pending, err := tx.Outbox().Pending(ctx, r.BatchSize)
		if err != nil {
			return err
		}

		// 2. Publish
		ids := make([]int64, 0, len(pending))
		for _, msg := range pending {
			if err := r.Publisher.Publish(ctx, msg); err != nil {
				metrics.OutboxPublishFailures.Inc()
				publishErr = fmt.Errorf("failed to publish %s signal %d: %w", msg.Kind, msg.ID, err)
				break
			}
			ids = append(ids, msg.ID)
		}

		// 3. Delete
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Outbox().Delete(ctx, ids); err != nil {
			return err
		}
		published = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.OutboxPublished.Add(float64(published))
	return published, publishErr
}

// Flush publishes batches until the outbox is empty and returns the total
// number of delivered messages
func (r *Relay) Flush(ctx context.Context) (int, error) {
	var total int
	for {
		n, err := r.RunOnce(ctx)
		total += n
		if err != nil || n == 0 || n < r.BatchSize {
			return total, err
		}
	}
}

// Schedule runs Flush on the given cron schedule until ctx is done.
// Overlapping runs are skipped.
func (r *Relay) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	logger := cron.PrintfLogger(r.Log)
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))

	_, err := c.AddFunc(spec, func() {
		n, err := r.Flush(ctx)
		if err != nil {
			r.Log.WithError(err).WithField("published", n).Warn("outbox relay interrupted")
			return
		}
		if n > 0 {
			r.Log.WithField("published", n).Debug("outbox relayed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid relay schedule %q: %w", spec, err)
	}

	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}
