package publisher

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

// LogPublisher writes outbound signals to the log instead of delivering
// them. It is used when no accounting service target is configured.
type LogPublisher struct {
	Log *logrus.Logger
}

// NewLogPublisher creates a new LogPublisher instance
func NewLogPublisher(log *logrus.Logger) *LogPublisher {
	return &LogPublisher{Log: log}
}

// Publish logs the message at info level
func (p *LogPublisher) Publish(ctx context.Context, msg *domain.OutboxMessage) error {
	p.Log.WithFields(logrus.Fields{
		"kind":      msg.Kind,
		"debtor_id": msg.DebtorID,
		"outbox_id": msg.ID,
		"payload":   string(msg.Payload),
	}).Info("outbound signal")
	return nil
}
