package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store runs units of work against the persistent state
type Store interface {
	// Atomic runs fn in one transaction, committing when fn returns nil and
	// rolling back otherwise. The transaction is retried a bounded number of
	// times when fn fails with ErrRecordExists or a serialization failure.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx gives access to the repositories within one unit of work
type Tx interface {
	Debtors() DebtorRepository
	RunningTransfers() RunningTransferRepository
	Accounts() AccountRepository
	NodeConfigs() NodeConfigRepository
	Outbox() OutboxRepository
}

// DebtorRepository defines the interface for debtor persistence operations
type DebtorRepository interface {
	// Get retrieves a debtor by its ID, or nil if it does not exist.
	// When lock is true the row stays locked until the unit of work ends.
	Get(ctx context.Context, debtorID int64, lock bool) (*Debtor, error)

	// Create inserts a new debtor
	// Returns ErrRecordExists if the debtor ID is taken
	Create(ctx context.Context, debtor *Debtor) error

	// Update saves all fields of an existing debtor
	Update(ctx context.Context, debtor *Debtor) error

	// ListActivatedIDs returns up to count activated debtor IDs that are
	// greater than or equal to startFrom, in ascending order
	ListActivatedIDs(ctx context.Context, startFrom int64, count int) ([]int64, error)
}

// RunningTransferRepository defines the interface for running transfer persistence operations
type RunningTransferRepository interface {
	// Get retrieves a running transfer by its key, or nil if it does not exist
	Get(ctx context.Context, debtorID int64, transferUUID uuid.UUID, lock bool) (*RunningTransfer, error)

	// FindByCoordinatorRequest retrieves the running transfer correlated
	// with a coordinator request, or nil if there is none
	FindByCoordinatorRequest(ctx context.Context, coordinatorID, coordinatorRequestID int64, lock bool) (*RunningTransfer, error)

	// NextCoordinatorRequestID allocates a new, unique correlation ID
	NextCoordinatorRequestID(ctx context.Context) (int64, error)

	// Create inserts a new running transfer
	// Returns ErrRecordExists if the key is taken
	Create(ctx context.Context, rt *RunningTransfer) error

	// Update saves the mutable fields of a running transfer
	Update(ctx context.Context, rt *RunningTransfer) error

	// Delete removes a running transfer and reports whether it existed
	Delete(ctx context.Context, debtorID int64, transferUUID uuid.UUID) (bool, error)

	// DeleteAllForDebtor removes all running transfers of a debtor
	DeleteAllForDebtor(ctx context.Context, debtorID int64) (int64, error)

	// DeleteFinalizedBefore removes the transfers finalized before cutoff
	// and returns the number of removed transfers per debtor
	DeleteFinalizedBefore(ctx context.Context, cutoff time.Time) (map[int64]int32, error)

	// ListUUIDs returns the transfer UUIDs of a debtor
	ListUUIDs(ctx context.Context, debtorID int64) ([]uuid.UUID, error)
}

// AccountRepository defines the interface for account replica persistence operations
type AccountRepository interface {
	// Get retrieves an account replica, or nil if it does not exist
	Get(ctx context.Context, debtorID, creditorID int64, lock bool) (*Account, error)

	// Create inserts a new account replica
	// Returns ErrRecordExists if the account already exists
	Create(ctx context.Context, account *Account) error

	// Update saves all fields of an account replica
	Update(ctx context.Context, account *Account) error

	// Delete removes an account replica
	Delete(ctx context.Context, debtorID, creditorID int64) error
}

// NodeConfigRepository defines the interface for the node configuration singleton
type NodeConfigRepository interface {
	// Get retrieves the node configuration, or nil if the node is not configured
	Get(ctx context.Context, lock bool) (*NodeConfig, error)

	// Save creates or replaces the node configuration
	Save(ctx context.Context, config *NodeConfig) error
}

// OutboxRepository defines the interface for the outbound signal outbox
type OutboxRepository interface {
	// Append records a message to be published after the unit of work commits
	Append(ctx context.Context, msg *OutboxMessage) error

	// Pending returns up to limit messages in insertion order, locking them
	// so that concurrent relays skip them
	Pending(ctx context.Context, limit int) ([]*OutboxMessage, error)

	// Delete removes published messages
	Delete(ctx context.Context, ids []int64) error
}
