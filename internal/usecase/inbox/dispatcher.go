package inbox

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/epandurski/swpt-debtors/internal/domain"
	"github.com/epandurski/swpt-debtors/internal/metrics"
)

// AccountProcessor handles the account signals
type AccountProcessor interface {
	ProcessAccountUpdate(ctx context.Context, u *domain.AccountUpdate) error
	ProcessAccountPurge(ctx context.Context, p *domain.AccountPurge) error
	ProcessRejectedConfig(ctx context.Context, r *domain.RejectedConfig) error
	ProcessAccountMaintenance(ctx context.Context, m *domain.AccountMaintenanceRequest) error
}

// TransferProcessor handles the transfer signals
type TransferProcessor interface {
	ProcessPrepared(ctx context.Context, p *domain.PreparedTransfer) error
	ProcessRejected(ctx context.Context, r *domain.RejectedTransfer) error
	ProcessFinalized(ctx context.Context, f *domain.FinalizedTransfer) error
}

// Dispatcher routes inbound signals to the service that processes them.
// Stale and duplicate signals complete without error, so a non-nil error
// means the delivery should be retried or the signal is malformed.
type Dispatcher struct {
	Accounts  AccountProcessor
	Transfers TransferProcessor
	Log       *logrus.Logger
}

// NewDispatcher creates a new Dispatcher instance
func NewDispatcher(accounts AccountProcessor, transfers TransferProcessor, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		Accounts:  accounts,
		Transfers: transfers,
		Log:       log,
	}
}

// Deliver decodes a JSON payload of the given kind and dispatches it
func (d *Dispatcher) Deliver(ctx context.Context, kind domain.SignalKind, payload []byte) error {
	signal, err := domain.DecodeInboundSignal(kind, payload)
	if err != nil {
		return err
	}
	return d.Dispatch(ctx, signal)
}

// Dispatch processes one inbound signal
func (d *Dispatcher) Dispatch(ctx context.Context, signal domain.InboundSignal) error {
	metrics.SignalsReceived.WithLabelValues(string(signal.Kind())).Inc()

	var err error
	switch s := signal.(type) {
	case *domain.AccountUpdate:
		err = d.Accounts.ProcessAccountUpdate(ctx, s)
	case *domain.AccountPurge:
		err = d.Accounts.ProcessAccountPurge(ctx, s)
	case *domain.RejectedConfig:
		err = d.Accounts.ProcessRejectedConfig(ctx, s)
	case *domain.AccountMaintenanceRequest:
		err = d.Accounts.ProcessAccountMaintenance(ctx, s)
	case *domain.PreparedTransfer:
		err = d.Transfers.ProcessPrepared(ctx, s)
	case *domain.RejectedTransfer:
		err = d.Transfers.ProcessRejected(ctx, s)
	case *domain.FinalizedTransfer:
		err = d.Transfers.ProcessFinalized(ctx, s)
	default:
		return fmt.Errorf("%w: unsupported signal %T", domain.ErrInvalidInput, signal)
	}

	if err != nil {
		d.Log.WithError(err).WithField("kind", signal.Kind()).Error("failed to process signal")
		return fmt.Errorf("failed to process %s signal: %w", signal.Kind(), err)
	}
	return nil
}
