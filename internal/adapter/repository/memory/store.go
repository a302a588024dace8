package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

const maxAttempts = 3

type transferKey struct {
	debtorID int64
	uuid     uuid.UUID
}

type accountKey struct {
	debtorID   int64
	creditorID int64
}

// state is the whole data set. Units of work run against a copy of it.
type state struct {
	debtors              map[int64]*domain.Debtor
	transfers            map[transferKey]*domain.RunningTransfer
	accounts             map[accountKey]*domain.Account
	nodeConfig           *domain.NodeConfig
	outbox               []*domain.OutboxMessage
	lastOutboxID         int64
	lastCoordinatorReqID int64
}

func newState() *state {
	return &state{
		debtors:   make(map[int64]*domain.Debtor),
		transfers: make(map[transferKey]*domain.RunningTransfer),
		accounts:  make(map[accountKey]*domain.Account),
	}
}

// clone copies the maps and the outbox. Stored records are never mutated
// in place, so the records themselves can be shared.
func (s *state) clone() *state {
	return &state{
		debtors:              maps.Clone(s.debtors),
		transfers:            maps.Clone(s.transfers),
		accounts:             maps.Clone(s.accounts),
		nodeConfig:           s.nodeConfig,
		outbox:               slices.Clone(s.outbox),
		lastOutboxID:         s.lastOutboxID,
		lastCoordinatorReqID: s.lastCoordinatorReqID,
	}
}

// Store is an in-memory domain.Store. Units of work are serialized, which
// gives them the isolation of row locks, and are rolled back by discarding
// the working copy.
type Store struct {
	mu      sync.Mutex
	current *state
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{current: newState()}
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}

		work := s.current.clone()
		err = fn(ctx, &tx{state: work})
		if err == nil {
			s.current = work
			return nil
		}
		if !errors.Is(err, domain.ErrRecordExists) {
			return err
		}
	}
	return err
}

// OutboxLen returns the number of undelivered outbox messages
func (s *Store) OutboxLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.current.outbox)
}

type tx struct {
	state *state
}

func (t *tx) Debtors() domain.DebtorRepository                   { return &debtorRepository{t.state} }
func (t *tx) RunningTransfers() domain.RunningTransferRepository { return &runningTransferRepository{t.state} }
func (t *tx) Accounts() domain.AccountRepository                 { return &accountRepository{t.state} }
func (t *tx) NodeConfigs() domain.NodeConfigRepository           { return &nodeConfigRepository{t.state} }
func (t *tx) Outbox() domain.OutboxRepository                    { return &outboxRepository{t.state} }
