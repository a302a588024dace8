package domain

import "errors"

// Not found.
var (
	ErrDebtorDoesNotExist   = errors.New("the debtor does not exist")
	ErrTransferDoesNotExist = errors.New("the transfer does not exist")
)

// Conflicts and idempotency outcomes.
var (
	ErrDebtorExists      = errors.New("the same debtor record already exists")
	ErrTransferExists    = errors.New("the same initiated transfer record already exists")
	ErrTransfersConflict = errors.New("a different transfer with conflicting UUID already exists")
	ErrUpdateConflict    = errors.New("the update conflicts with another update")
	ErrAlreadyUpToDate   = errors.New("the record is already up to date")
	ErrConflictingPolicy = errors.New("the new debtor policy conflicts with the old one")
)

// Rate limiting.
var (
	ErrTooManyManagementActions = errors.New("too many management actions per month by a debtor")
	ErrTooManyRunningTransfers  = errors.New("too many running transfers")
	ErrTooManySavedDocuments    = errors.New("too many saved documents per year by a debtor")
)

// Protocol violations.
var (
	ErrForbiddenTransferCancellation = errors.New("the transfer can not be canceled")
	ErrInvalidReservationID          = errors.New("invalid debtor reservation ID")
	ErrInvalidDebtor                 = errors.New("the node is not responsible for this debtor")
)

// ErrMisconfiguredNode is returned when the node configuration is missing.
var ErrMisconfiguredNode = errors.New("the node is misconfigured")

// ErrInvalidInput wraps validation failures of caller supplied data.
var ErrInvalidInput = errors.New("invalid input")

// ErrRecordExists is returned by repositories when an insert hits a
// uniqueness constraint. Store implementations retry the transaction.
var ErrRecordExists = errors.New("record already exists")
