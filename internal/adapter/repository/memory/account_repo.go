package memory

import (
	"context"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

type accountRepository struct {
	state *state
}

func (r *accountRepository) Get(ctx context.Context, debtorID, creditorID int64, lock bool) (*domain.Account, error) {
	a, ok := r.state.accounts[accountKey{debtorID, creditorID}]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	key := accountKey{account.DebtorID, account.CreditorID}
	if _, ok := r.state.accounts[key]; ok {
		return domain.ErrRecordExists
	}
	c := *account
	r.state.accounts[key] = &c
	return nil
}

func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	c := *account
	r.state.accounts[accountKey{account.DebtorID, account.CreditorID}] = &c
	return nil
}

func (r *accountRepository) Delete(ctx context.Context, debtorID, creditorID int64) error {
	delete(r.state.accounts, accountKey{debtorID, creditorID})
	return nil
}

type nodeConfigRepository struct {
	state *state
}

func (r *nodeConfigRepository) Get(ctx context.Context, lock bool) (*domain.NodeConfig, error) {
	if r.state.nodeConfig == nil {
		return nil, nil
	}
	c := *r.state.nodeConfig
	return &c, nil
}

func (r *nodeConfigRepository) Save(ctx context.Context, config *domain.NodeConfig) error {
	c := *config
	r.state.nodeConfig = &c
	return nil
}
