package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

type runningTransferRepository struct {
	state *state
}

func copyTransfer(rt *domain.RunningTransfer) *domain.RunningTransfer {
	c := *rt
	return &c
}

func (r *runningTransferRepository) Get(ctx context.Context, debtorID int64, transferUUID uuid.UUID, lock bool) (*domain.RunningTransfer, error) {
	rt, ok := r.state.transfers[transferKey{debtorID, transferUUID}]
	if !ok {
		return nil, nil
	}
	return copyTransfer(rt), nil
}

func (r *runningTransferRepository) FindByCoordinatorRequest(ctx context.Context, coordinatorID, coordinatorRequestID int64, lock bool) (*domain.RunningTransfer, error) {
	for _, rt := range r.state.transfers {
		if rt.DebtorID == coordinatorID && rt.CoordinatorRequestID == coordinatorRequestID {
			return copyTransfer(rt), nil
		}
	}
	return nil, nil
}

func (r *runningTransferRepository) NextCoordinatorRequestID(ctx context.Context) (int64, error) {
	r.state.lastCoordinatorReqID++
	return r.state.lastCoordinatorReqID, nil
}

func (r *runningTransferRepository) Create(ctx context.Context, rt *domain.RunningTransfer) error {
	key := transferKey{rt.DebtorID, rt.TransferUUID}
	if _, ok := r.state.transfers[key]; ok {
		return domain.ErrRecordExists
	}
	r.state.transfers[key] = copyTransfer(rt)
	return nil
}

func (r *runningTransferRepository) Update(ctx context.Context, rt *domain.RunningTransfer) error {
	r.state.transfers[transferKey{rt.DebtorID, rt.TransferUUID}] = copyTransfer(rt)
	return nil
}

func (r *runningTransferRepository) Delete(ctx context.Context, debtorID int64, transferUUID uuid.UUID) (bool, error) {
	key := transferKey{debtorID, transferUUID}
	if _, ok := r.state.transfers[key]; !ok {
		return false, nil
	}
	delete(r.state.transfers, key)
	return true, nil
}

func (r *runningTransferRepository) DeleteAllForDebtor(ctx context.Context, debtorID int64) (int64, error) {
	var deleted int64
	for key := range r.state.transfers {
		if key.debtorID == debtorID {
			delete(r.state.transfers, key)
			deleted++
		}
	}
	return deleted, nil
}

func (r *runningTransferRepository) DeleteFinalizedBefore(ctx context.Context, cutoff time.Time) (map[int64]int32, error) {
	deleted := make(map[int64]int32)
	for key, rt := range r.state.transfers {
		if rt.FinalizedAt != nil && rt.FinalizedAt.Before(cutoff) {
			delete(r.state.transfers, key)
			deleted[key.debtorID]++
		}
	}
	return deleted, nil
}

func (r *runningTransferRepository) ListUUIDs(ctx context.Context, debtorID int64) ([]uuid.UUID, error) {
	uuids := make([]uuid.UUID, 0)
	for key := range r.state.transfers {
		if key.debtorID == debtorID {
			uuids = append(uuids, key.uuid)
		}
	}
	slices.SortFunc(uuids, func(a, b uuid.UUID) int {
		return slices.Compare(a[:], b[:])
	})
	return uuids, nil
}
