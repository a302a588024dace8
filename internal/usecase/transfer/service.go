package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/epandurski/swpt-debtors/internal/domain"
	"github.com/epandurski/swpt-debtors/internal/metrics"
	"github.com/epandurski/swpt-debtors/internal/usecase/debtor"
	"github.com/epandurski/swpt-debtors/internal/usecase/outbox"
)

// InitiateTransferInput represents the input for initiating a transfer
type InitiateTransferInput struct {
	DebtorID     int64
	TransferUUID uuid.UUID
	domain.TransferRequest
}

// TransferService coordinates debtor-initiated transfers with the
// accounting service
type TransferService struct {
	Store  domain.Store
	Limits domain.Limits
	Log    *logrus.Logger
	Now    func() time.Time
}

// NewTransferService creates a new TransferService instance
func NewTransferService(store domain.Store, limits domain.Limits, log *logrus.Logger) *TransferService {
	return &TransferService{
		Store:  store,
		Limits: limits,
		Log:    log,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Initiate creates a running transfer and asks the accounting service to
// prepare it
// Logic:
//  1. An existing transfer with the same UUID fails with ErrTransferExists
//     when it has the same fields, and with ErrTransfersConflict otherwise
//  2. Lock the active debtor and count the management action
//  3. Count the running transfer against the debtor's cap
//  4. Insert the transfer with a fresh coordinator request ID
//  5. Record the PrepareTransfer signal
func (s *TransferService) Initiate(ctx context.Context, input InitiateTransferInput) (*domain.RunningTransfer, error) {
	if err := input.TransferRequest.Validate(); err != nil {
		return nil, err
	}

	var rt *domain.RunningTransfer
	err := metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		// 1. Check for a duplicate
		existing, err := tx.RunningTransfers().Get(ctx, input.DebtorID, input.TransferUUID, false)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Matches(input.TransferRequest) {
				return domain.ErrTransferExists
			}
			return domain.ErrTransfersConflict
		}

		// 2. Throttle
		now := s.Now()
		d, err := debtor.ThrottledDebtor(ctx, tx, input.DebtorID, now, s.Limits.MaxActionsPerMonth)
		if err != nil {
			return err
		}

		// 3. Count
		if int(d.RunningTransfersCount) >= s.Limits.MaxRunningTransfers {
			return domain.ErrTooManyRunningTransfers
		}
		d.RunningTransfersCount++

		// 4. Insert
		reqID, err := tx.RunningTransfers().NextCoordinatorRequestID(ctx)
		if err != nil {
			return err
		}
		rt = &domain.RunningTransfer{
			DebtorID:             input.DebtorID,
			TransferUUID:         input.TransferUUID,
			CoordinatorRequestID: reqID,
			TransferRequest:      input.TransferRequest,
			InitiatedAt:          now,
		}
		if err := tx.RunningTransfers().Create(ctx, rt); err != nil {
			return err
		}

		// 5. Prepare
		if err := outbox.Emit(ctx, tx, rt.PrepareSignal(d.MinBalance, now), now); err != nil {
			return err
		}
		return tx.Debtors().Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// Get returns a running transfer
func (s *TransferService) Get(ctx context.Context, debtorID int64, transferUUID uuid.UUID) (*domain.RunningTransfer, error) {
	var rt *domain.RunningTransfer
	err := metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		var err error
		rt, err = tx.RunningTransfers().Get(ctx, debtorID, transferUUID, false)
		if err != nil {
			return err
		}
		if rt == nil {
			return domain.ErrTransferDoesNotExist
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// ListUUIDs returns the UUIDs of the running transfers of an active debtor
func (s *TransferService) ListUUIDs(ctx context.Context, debtorID int64) ([]uuid.UUID, error) {
	var uuids []uuid.UUID
	err := metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		if _, err := debtor.ActiveDebtor(ctx, tx, debtorID, true); err != nil {
			return err
		}
		var err error
		uuids, err = tx.RunningTransfers().ListUUIDs(ctx, debtorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return uuids, nil
}

// Cancel finalizes a transfer that has not been settled yet. Canceling a
// finalized transfer that was never settled is a no-op.
func (s *TransferService) Cancel(ctx context.Context, debtorID int64, transferUUID uuid.UUID) (*domain.RunningTransfer, error) {
	var rt *domain.RunningTransfer
	err := metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		var err error
		rt, err = tx.RunningTransfers().Get(ctx, debtorID, transferUUID, true)
		if err != nil {
			return err
		}
		if rt == nil {
			return domain.ErrTransferDoesNotExist
		}

		if err := rt.Cancel(s.Now()); err != nil {
			return err
		}
		return tx.RunningTransfers().Update(ctx, rt)
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// Delete removes a running transfer and releases its slot in the
// debtor's running transfers count
func (s *TransferService) Delete(ctx context.Context, debtorID int64, transferUUID uuid.UUID) error {
	return metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		deleted, err := tx.RunningTransfers().Delete(ctx, debtorID, transferUUID)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrTransferDoesNotExist
		}
		return releaseSlots(ctx, tx, debtorID, 1)
	})
}

// FlushFinalized removes the transfers finalized before cutoff and returns
// how many were removed
func (s *TransferService) FlushFinalized(ctx context.Context, cutoff time.Time) (int, error) {
	var total int
	err := metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		deleted, err := tx.RunningTransfers().DeleteFinalizedBefore(ctx, cutoff)
		if err != nil {
			return err
		}

		total = 0
		for debtorID, n := range deleted {
			if err := releaseSlots(ctx, tx, debtorID, n); err != nil {
				return err
			}
			total += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.Log.WithFields(logrus.Fields{
		"cutoff":  cutoff,
		"deleted": total,
	}).Info("flushed finalized transfers")
	return total, nil
}

// ProcessPrepared claims or dismisses a prepared transfer. A FinalizeTransfer
// signal is recorded in both cases, so that the locked amount is never
// left held.
func (s *TransferService) ProcessPrepared(ctx context.Context, p *domain.PreparedTransfer) error {
	return metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		rt, err := tx.RunningTransfers().FindByCoordinatorRequest(ctx, p.CoordinatorID, p.CoordinatorRequestID, true)
		if err != nil {
			return err
		}

		now := s.Now()
		wasSettled := rt != nil && rt.IsSettled()
		signal := domain.ResolvePreparedTransfer(rt, p, now)
		if signal.IsDismissal() {
			s.discard(ctx, p, metrics.ReasonNoMatch)
		}
		if err := outbox.Emit(ctx, tx, signal, now); err != nil {
			return err
		}

		if rt != nil && !wasSettled && rt.IsSettled() {
			return tx.RunningTransfers().Update(ctx, rt)
		}
		return nil
	})
}

// ProcessRejected finalizes the transfer that the accounting service
// refused to prepare
func (s *TransferService) ProcessRejected(ctx context.Context, r *domain.RejectedTransfer) error {
	return metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		rt, err := tx.RunningTransfers().FindByCoordinatorRequest(ctx, r.CoordinatorID, r.CoordinatorRequestID, true)
		if err != nil {
			return err
		}

		if !domain.ResolveRejectedTransfer(rt, r, s.Now()) {
			s.discard(ctx, r, metrics.ReasonNoMatch)
			return nil
		}
		return tx.RunningTransfers().Update(ctx, rt)
	})
}

// ProcessFinalized records the final outcome of a settled transfer.
// Repeated deliveries are ignored.
func (s *TransferService) ProcessFinalized(ctx context.Context, f *domain.FinalizedTransfer) error {
	return metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		rt, err := tx.RunningTransfers().FindByCoordinatorRequest(ctx, f.CoordinatorID, f.CoordinatorRequestID, true)
		if err != nil {
			return err
		}

		if !domain.ResolveFinalizedTransfer(rt, f, s.Now()) {
			s.discard(ctx, f, metrics.ReasonNoMatch)
			return nil
		}
		return tx.RunningTransfers().Update(ctx, rt)
	})
}

func (s *TransferService) discard(ctx context.Context, signal domain.InboundSignal, reason string) {
	metrics.CountDiscarded(ctx, signal.Kind(), reason)
	s.Log.WithFields(logrus.Fields{
		"kind":   signal.Kind(),
		"reason": reason,
	}).Debug("signal discarded")
}

func releaseSlots(ctx context.Context, tx domain.Tx, debtorID int64, n int32) error {
	d, err := tx.Debtors().Get(ctx, debtorID, true)
	if err != nil {
		return err
	}
	if d == nil {
		return nil
	}

	d.RunningTransfersCount = max(0, d.RunningTransfersCount-n)
	return tx.Debtors().Update(ctx, d)
}
