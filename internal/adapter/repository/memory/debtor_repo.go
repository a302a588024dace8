package memory

import (
	"context"
	"slices"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

type debtorRepository struct {
	state *state
}

func copyDebtor(d *domain.Debtor) *domain.Debtor {
	c := *d
	c.InterestRateLowerLimits = slices.Clone(d.InterestRateLowerLimits)
	c.BalanceLowerLimits = slices.Clone(d.BalanceLowerLimits)
	return &c
}

func (r *debtorRepository) Get(ctx context.Context, debtorID int64, lock bool) (*domain.Debtor, error) {
	d, ok := r.state.debtors[debtorID]
	if !ok {
		return nil, nil
	}
	return copyDebtor(d), nil
}

func (r *debtorRepository) Create(ctx context.Context, debtor *domain.Debtor) error {
	if _, ok := r.state.debtors[debtor.DebtorID]; ok {
		return domain.ErrRecordExists
	}
	r.state.debtors[debtor.DebtorID] = copyDebtor(debtor)
	return nil
}

func (r *debtorRepository) Update(ctx context.Context, debtor *domain.Debtor) error {
	r.state.debtors[debtor.DebtorID] = copyDebtor(debtor)
	return nil
}

func (r *debtorRepository) ListActivatedIDs(ctx context.Context, startFrom int64, count int) ([]int64, error) {
	ids := make([]int64, 0)
	for id, d := range r.state.debtors {
		if id >= startFrom && d.IsActivated() {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	if len(ids) > count {
		ids = ids[:count]
	}
	return ids, nil
}
