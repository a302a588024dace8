package debtor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/epandurski/swpt-debtors/internal/domain"
	"github.com/epandurski/swpt-debtors/internal/metrics"
	"github.com/epandurski/swpt-debtors/internal/usecase/outbox"
)

// UpdatePolicyInput represents the input for changing a debtor's policy
type UpdatePolicyInput struct {
	DebtorID int64
	domain.PolicyUpdate
}

// UpdateConfigInput represents the input for changing a debtor's account configuration
type UpdateConfigInput struct {
	DebtorID           int64
	ConfigData         string
	LatestUpdateID     int64
	MaxActionsPerMonth int // zero means the configured default
}

// DebtorService handles the debtor lifecycle and the node configuration
type DebtorService struct {
	Store  domain.Store
	Limits domain.Limits
	Log    *logrus.Logger
	Now    func() time.Time
}

// NewDebtorService creates a new DebtorService instance
func NewDebtorService(store domain.Store, limits domain.Limits, log *logrus.Logger) *DebtorService {
	return &DebtorService{
		Store:  store,
		Limits: limits,
		Log:    log,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// ConfigureNode sets the range of debtor IDs the node is responsible for
func (s *DebtorService) ConfigureNode(ctx context.Context, minDebtorID, maxDebtorID int64) error {
	config := &domain.NodeConfig{MinDebtorID: minDebtorID, MaxDebtorID: maxDebtorID}
	if err := config.Validate(); err != nil {
		return err
	}

	return metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.NodeConfigs().Get(ctx, true); err != nil {
			return err
		}
		return tx.NodeConfigs().Save(ctx, config)
	})
}

// GenerateDebtorID returns a random debtor ID from the node's range
func (s *DebtorService) GenerateDebtorID(ctx context.Context) (int64, error) {
	var debtorID int64
	err := metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		config, err := nodeConfig(ctx, tx)
		if err != nil {
			return err
		}
		debtorID = config.RandomDebtorID()
		return nil
	})
	return debtorID, err
}

// ListDebtorIDs returns up to count activated debtor IDs starting from
// startFrom, and the ID to continue the listing from. The next ID is nil
// when the listing is complete.
func (s *DebtorService) ListDebtorIDs(ctx context.Context, startFrom int64, count int) ([]int64, *int64, error) {
	if count <= 0 {
		return nil, nil, fmt.Errorf("%w: count must be positive", domain.ErrInvalidInput)
	}

	var ids []int64
	var next *int64
	err := metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		var err error
		ids, err = tx.Debtors().ListActivatedIDs(ctx, startFrom, count)
		if err != nil {
			return err
		}

		var last int64
		if len(ids) > 0 {
			last = ids[len(ids)-1]
		} else {
			config, err := nodeConfig(ctx, tx)
			if err != nil {
				return err
			}
			last = config.MaxDebtorID
		}

		next = nil
		if last < math.MaxInt64 && last+1 > startFrom {
			n := last + 1
			next = &n
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return ids, next, nil
}

// Reserve creates a debtor that is not activated yet
// Logic:
//  1. Check that the node is responsible for the debtor ID
//  2. Insert the debtor with a fresh reservation ID
//  3. A taken debtor ID fails with ErrDebtorExists
func (s *DebtorService) Reserve(ctx context.Context, debtorID int64) (*domain.Debtor, error) {
	var debtor *domain.Debtor
	err := metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		// 1. Check the node's range
		config, err := nodeConfig(ctx, tx)
		if err != nil {
			return err
		}
		if !config.IsResponsibleFor(debtorID) {
			return domain.ErrInvalidDebtor
		}

		// 2. Insert
		debtor = domain.NewDebtor(debtorID, rand.Int64(), s.Now())
		err = tx.Debtors().Create(ctx, debtor)
		if errors.Is(err, domain.ErrRecordExists) {
			// 3. Lost the race
			return domain.ErrDebtorExists
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return debtor, nil
}

// Activate activates a reserved debtor. Activating an already activated
// debtor is a no-op.
func (s *DebtorService) Activate(ctx context.Context, debtorID, reservationID int64) (*domain.Debtor, error) {
	var debtor *domain.Debtor
	err := metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		var err error
		debtor, err = tx.Debtors().Get(ctx, debtorID, true)
		if err != nil {
			return err
		}
		if debtor == nil {
			return domain.ErrInvalidReservationID
		}

		now := s.Now()
		signal, err := debtor.Activate(reservationID, now)
		if err != nil || signal == nil {
			return err
		}
		if err := outbox.Emit(ctx, tx, signal, now); err != nil {
			return err
		}
		return tx.Debtors().Update(ctx, debtor)
	})
	if err != nil {
		return nil, err
	}
	return debtor, nil
}

// Deactivate deactivates an active debtor and removes its running
// transfers. The root account is configured for deletion. Deactivating a
// debtor that is not active is a no-op.
func (s *DebtorService) Deactivate(ctx context.Context, debtorID int64) error {
	return metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		debtor, err := tx.Debtors().Get(ctx, debtorID, true)
		if err != nil {
			return err
		}
		if debtor == nil || !debtor.IsActive() {
			return nil
		}

		now := s.Now()
		signal := debtor.Deactivate(now)
		deleted, err := tx.RunningTransfers().DeleteAllForDebtor(ctx, debtorID)
		if err != nil {
			return err
		}
		if err := outbox.Emit(ctx, tx, signal, now); err != nil {
			return err
		}
		if err := tx.Debtors().Update(ctx, debtor); err != nil {
			return err
		}

		s.Log.WithFields(logrus.Fields{
			"debtor_id":         debtorID,
			"deleted_transfers": deleted,
		}).Info("debtor deactivated")
		return nil
	})
}

// Get returns a debtor in any state
func (s *DebtorService) Get(ctx context.Context, debtorID int64) (*domain.Debtor, error) {
	var debtor *domain.Debtor
	err := metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		var err error
		debtor, err = tx.Debtors().Get(ctx, debtorID, false)
		if err != nil {
			return err
		}
		if debtor == nil {
			return domain.ErrDebtorDoesNotExist
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return debtor, nil
}

// UpdatePolicy changes the interest rate target and adds lower limits
// Logic:
//  1. Validate the input
//  2. Lock the active debtor and count the management action
//  3. Merge the new limits into the pruned sequences
//  4. Reconfigure the root account if the minimum balance changed
func (s *DebtorService) UpdatePolicy(ctx context.Context, input UpdatePolicyInput) (*domain.Debtor, error) {
	// 1. Validate
	if err := input.PolicyUpdate.Validate(); err != nil {
		return nil, err
	}

	var debtor *domain.Debtor
	err := metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		// 2. Throttle
		now := s.Now()
		var err error
		debtor, err = ThrottledDebtor(ctx, tx, input.DebtorID, now, s.Limits.MaxActionsPerMonth)
		if err != nil {
			return err
		}

		// 3. Merge
		signal, err := debtor.UpdatePolicy(input.PolicyUpdate, now, s.Limits.MaxLimitsCount)
		if err != nil {
			return err
		}

		// 4. Reconfigure
		if signal != nil {
			if err := outbox.Emit(ctx, tx, signal, now); err != nil {
				return err
			}
		}
		return tx.Debtors().Update(ctx, debtor)
	})
	if err != nil {
		return nil, err
	}
	return debtor, nil
}

// UpdateConfig replaces the configuration data of the debtor's root
// account. LatestUpdateID must be the next update ID; resending the last
// update fails with ErrAlreadyUpToDate.
func (s *DebtorService) UpdateConfig(ctx context.Context, input UpdateConfigInput) (*domain.Debtor, error) {
	maxActions := input.MaxActionsPerMonth
	if maxActions <= 0 {
		maxActions = s.Limits.MaxActionsPerMonth
	}

	var debtor *domain.Debtor
	err := metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		now := s.Now()
		var err error
		debtor, err = ThrottledDebtor(ctx, tx, input.DebtorID, now, maxActions)
		if err != nil {
			return err
		}

		signal, err := debtor.UpdateConfig(input.ConfigData, input.LatestUpdateID, now)
		if err != nil {
			return err
		}
		if err := outbox.Emit(ctx, tx, signal, now); err != nil {
			return err
		}
		return tx.Debtors().Update(ctx, debtor)
	})
	if err != nil {
		return nil, err
	}
	return debtor, nil
}

// ThrottleDocumentSaves counts one saved document against the debtor's
// yearly cap
func (s *DebtorService) ThrottleDocumentSaves(ctx context.Context, debtorID int64) error {
	return metrics.Atomic(ctx, s.Store, func(ctx context.Context, tx domain.Tx) error {
		debtor, err := ActiveDebtor(ctx, tx, debtorID, true)
		if err != nil {
			return err
		}
		if err := debtor.ThrottleDocuments(s.Now(), s.Limits.MaxDocumentsPerYear); err != nil {
			return err
		}
		return tx.Debtors().Update(ctx, debtor)
	})
}

func nodeConfig(ctx context.Context, tx domain.Tx) (*domain.NodeConfig, error) {
	config, err := tx.NodeConfigs().Get(ctx, false)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, domain.ErrMisconfiguredNode
	}
	return config, nil
}

// ActiveDebtor loads an activated, not deactivated debtor within tx.
// Returns ErrDebtorDoesNotExist otherwise.
func ActiveDebtor(ctx context.Context, tx domain.Tx, debtorID int64, lock bool) (*domain.Debtor, error) {
	debtor, err := tx.Debtors().Get(ctx, debtorID, lock)
	if err != nil {
		return nil, err
	}
	if debtor == nil || !debtor.IsActive() {
		return nil, domain.ErrDebtorDoesNotExist
	}
	return debtor, nil
}

// ThrottledDebtor locks the active debtor and counts one management action.
func ThrottledDebtor(ctx context.Context, tx domain.Tx, debtorID int64, now time.Time, maxActions int) (*domain.Debtor, error) {
	debtor, err := ActiveDebtor(ctx, tx, debtorID, true)
	if err != nil {
		return nil, err
	}
	if err := debtor.ThrottleActions(now, maxActions); err != nil {
		return nil, err
	}
	return debtor, nil
}
