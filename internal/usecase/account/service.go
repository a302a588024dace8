package account

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/epandurski/swpt-debtors/internal/domain"
	"github.com/epandurski/swpt-debtors/internal/metrics"
	"github.com/epandurski/swpt-debtors/internal/usecase/outbox"
)

// AccountService mirrors the state of accounts reported by the accounting
// service
type AccountService struct {
	Store  domain.Store
	Limits domain.Limits
	Log    *logrus.Logger
	Now    func() time.Time
}

// NewAccountService creates a new AccountService instance
func NewAccountService(store domain.Store, limits domain.Limits, log *logrus.Logger) *AccountService {
	return &AccountService{
		Store:  store,
		Limits: limits,
		Log:    log,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// ProcessAccountUpdate applies an account update
// Logic:
//  1. Discard the update if it outlived its TTL
//  2. Root account: mirror it into the debtor, or schedule it for deletion
//     when the debtor does not exist or was never activated
//  3. Other accounts: update the replica and request an interest rate
//     change when the rate is not established
func (s *AccountService) ProcessAccountUpdate(ctx context.Context, u *domain.AccountUpdate) error {
	now := s.Now()

	// 1. TTL
	if u.IsExpired(now) {
		s.discard(ctx, u, u.DebtorID, u.CreditorID, metrics.ReasonExpired)
		return nil
	}

	return metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		// 2. Root account
		if u.CreditorID == domain.RootCreditorID {
			return s.processRootAccountUpdate(ctx, tx, u, now)
		}

		// 3. Other accounts
		return s.processAccountUpdate(ctx, tx, u, now)
	})
}

func (s *AccountService) processRootAccountUpdate(ctx context.Context, tx domain.Tx, u *domain.AccountUpdate, now time.Time) error {
	debtor, err := tx.Debtors().Get(ctx, u.DebtorID, true)
	if err != nil {
		return err
	}

	if debtor == nil || !debtor.IsActivated() {
		s.discard(ctx, u, u.DebtorID, u.CreditorID, metrics.ReasonOrphan)
		if u.IsDeletionConfigEcho() {
			return nil
		}
		return outbox.Emit(ctx, tx, domain.NewAccountDeletionSignal(u.DebtorID, u.CreditorID, now), now)
	}

	if !debtor.ApplyRootAccountUpdate(u) {
		s.discard(ctx, u, u.DebtorID, u.CreditorID, metrics.ReasonStale)
	}
	return tx.Debtors().Update(ctx, debtor)
}

func (s *AccountService) processAccountUpdate(ctx context.Context, tx domain.Tx, u *domain.AccountUpdate, now time.Time) error {
	account, err := tx.Accounts().Get(ctx, u.DebtorID, u.CreditorID, true)
	if err != nil {
		return err
	}

	if account == nil {
		account = domain.NewAccount(u)
		if err := s.maintainInterestRate(ctx, tx, account, now); err != nil {
			return err
		}
		return tx.Accounts().Create(ctx, account)
	}

	if account.Apply(u) {
		if err := s.maintainInterestRate(ctx, tx, account, now); err != nil {
			return err
		}
	} else {
		s.discard(ctx, u, u.DebtorID, u.CreditorID, metrics.ReasonStale)
	}
	return tx.Accounts().Update(ctx, account)
}

// maintainInterestRate asks the accounting service to apply the debtor's
// current interest rate to an account whose rate is not established.
func (s *AccountService) maintainInterestRate(ctx context.Context, tx domain.Tx, account *domain.Account, now time.Time) error {
	if !account.NeedsInterestRateChange(now, s.Limits.InterestRateMinDelay) {
		return nil
	}

	debtor, err := tx.Debtors().Get(ctx, account.DebtorID, false)
	if err != nil {
		return err
	}
	if debtor == nil || !debtor.IsActive() {
		return nil
	}

	signal := account.RequestInterestRateChange(debtor.CalcInterestRate(now), now)
	return outbox.Emit(ctx, tx, signal, now)
}

// ProcessAccountPurge forgets a removed account. The purge applies only
// when its creation date matches the mirrored one.
func (s *AccountService) ProcessAccountPurge(ctx context.Context, p *domain.AccountPurge) error {
	return metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		creationDate := domain.DateOf(p.CreationDate.Time)

		if p.CreditorID == domain.RootCreditorID {
			debtor, err := tx.Debtors().Get(ctx, p.DebtorID, true)
			if err != nil {
				return err
			}
			if debtor == nil || !debtor.HasServerAccount || !debtor.AccountCreationDate.Equal(creationDate) {
				s.discard(ctx, p, p.DebtorID, p.CreditorID, metrics.ReasonNoMatch)
				return nil
			}
			debtor.HasServerAccount = false
			return tx.Debtors().Update(ctx, debtor)
		}

		account, err := tx.Accounts().Get(ctx, p.DebtorID, p.CreditorID, true)
		if err != nil {
			return err
		}
		if account == nil || !account.CreationDate.Equal(creationDate) {
			s.discard(ctx, p, p.DebtorID, p.CreditorID, metrics.ReasonNoMatch)
			return nil
		}
		return tx.Accounts().Delete(ctx, p.DebtorID, p.CreditorID)
	})
}

// ProcessRejectedConfig records the rejection of the last configuration
// sent for a debtor's root account
func (s *AccountService) ProcessRejectedConfig(ctx context.Context, r *domain.RejectedConfig) error {
	return metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		if r.CreditorID != domain.RootCreditorID {
			s.discard(ctx, r, r.DebtorID, r.CreditorID, metrics.ReasonNoMatch)
			return nil
		}

		debtor, err := tx.Debtors().Get(ctx, r.DebtorID, true)
		if err != nil {
			return err
		}
		if debtor == nil || !debtor.IsLastConfig(r.ConfigTs, r.ConfigSeqnum, r.ConfigFlags, r.ConfigData, r.NegligibleAmount) {
			s.discard(ctx, r, r.DebtorID, r.CreditorID, metrics.ReasonStale)
			return nil
		}

		code := r.RejectionCode
		debtor.ConfigError = &code
		s.Log.WithFields(logrus.Fields{
			"debtor_id":      r.DebtorID,
			"rejection_code": code,
		}).Warn("account configuration rejected")
		return tx.Debtors().Update(ctx, debtor)
	})
}

// ProcessAccountMaintenance unmutes an account once the accounting
// service confirms the last maintenance request
func (s *AccountService) ProcessAccountMaintenance(ctx context.Context, m *domain.AccountMaintenanceRequest) error {
	return metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		account, err := tx.Accounts().Get(ctx, m.DebtorID, m.CreditorID, true)
		if err != nil {
			return err
		}
		if account == nil || !account.Unmute(m.RequestTs) {
			s.discard(ctx, m, m.DebtorID, m.CreditorID, metrics.ReasonNoMatch)
			return nil
		}
		return tx.Accounts().Update(ctx, account)
	})
}

func (s *AccountService) discard(ctx context.Context, signal domain.InboundSignal, debtorID, creditorID int64, reason string) {
	metrics.CountDiscarded(ctx, signal.Kind(), reason)
	s.Log.WithFields(logrus.Fields{
		"kind":        signal.Kind(),
		"debtor_id":   debtorID,
		"creditor_id": creditorID,
		"reason":      reason,
	}).Debug("signal discarded")
}
