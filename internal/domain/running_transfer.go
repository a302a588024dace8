package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status codes of finalized transfers.
const (
	SCOK                  = "OK"
	SCUnexpectedError     = "UNEXPECTED_ERROR"
	SCCanceledByTheSender = "CANCELED_BY_THE_SENDER"
)

// CoordinatorTypeIssuing is the coordinator type of debtor-initiated transfers.
const CoordinatorTypeIssuing = "issuing"

// TransferState is the protocol state of a running transfer
type TransferState string

const (
	TransferStateCreated        TransferState = "CREATED"
	TransferStatePreparing      TransferState = "PREPARING"
	TransferStateSettled        TransferState = "SETTLED"
	TransferStateFinalizedOK    TransferState = "FINALIZED_OK"
	TransferStateFinalizedError TransferState = "FINALIZED_ERROR"
)

// TransferRequest holds the immutable fields of a transfer as requested by
// the debtor.
type TransferRequest struct {
	Recipient          string
	Amount             int64
	TransferNoteFormat string
	TransferNote       string
}

// Validate ensures the transfer request adheres to domain rules
func (r TransferRequest) Validate() error {
	if r.Recipient == "" {
		return fmt.Errorf("%w: recipient cannot be empty", ErrInvalidInput)
	}
	if r.Amount <= 0 {
		return fmt.Errorf("%w: transfer amount must be positive", ErrInvalidInput)
	}
	return nil
}

// RunningTransfer represents one debtor-initiated transfer, tracked from
// creation through settlement to finalization.
// Once FinalizedAt is set the record never changes.
type RunningTransfer struct {
	DebtorID             int64
	TransferUUID         uuid.UUID
	CoordinatorRequestID int64
	TransferRequest
	InitiatedAt       time.Time
	TransferID        *int64 // set once prepared
	FinalizedAt       *time.Time
	ErrorCode         *string
	TotalLockedAmount *int64
}

// IsSettled reports whether a prepared transfer has been claimed.
func (rt *RunningTransfer) IsSettled() bool {
	return rt.TransferID != nil
}

// IsFinalized reports whether the transfer has reached its terminal state.
func (rt *RunningTransfer) IsFinalized() bool {
	return rt.FinalizedAt != nil
}

// State derives the protocol state from the record.
func (rt *RunningTransfer) State() TransferState {
	switch {
	case rt.IsFinalized() && rt.ErrorCode == nil:
		return TransferStateFinalizedOK
	case rt.IsFinalized():
		return TransferStateFinalizedError
	case rt.IsSettled():
		return TransferStateSettled
	case rt.CoordinatorRequestID != 0:
		return TransferStatePreparing
	default:
		return TransferStateCreated
	}
}

// Matches reports whether req has the same fields as the running transfer.
func (rt *RunningTransfer) Matches(req TransferRequest) bool {
	return rt.TransferRequest == req
}

// Finalize latches the transfer into its terminal state. A nil errorCode
// means success. Returns false if the transfer was already finalized.
func (rt *RunningTransfer) Finalize(now time.Time, errorCode *string, totalLockedAmount *int64) bool {
	if rt.IsFinalized() {
		return false
	}

	rt.FinalizedAt = &now
	rt.ErrorCode = errorCode
	rt.TotalLockedAmount = totalLockedAmount
	return true
}

// Cancel finalizes a transfer that has not been settled yet.
func (rt *RunningTransfer) Cancel(now time.Time) error {
	if rt.IsSettled() {
		return ErrForbiddenTransferCancellation
	}

	code := SCCanceledByTheSender
	rt.Finalize(now, &code, nil)
	return nil
}

// PrepareSignal builds the prepare request sent for a new transfer.
func (rt *RunningTransfer) PrepareSignal(minAccountBalance int64, now time.Time) *PrepareTransferSignal {
	return &PrepareTransferSignal{
		DebtorID:             rt.DebtorID,
		CreditorID:           RootCreditorID,
		CoordinatorType:      CoordinatorTypeIssuing,
		CoordinatorID:        rt.DebtorID,
		CoordinatorRequestID: rt.CoordinatorRequestID,
		Amount:               rt.Amount,
		Recipient:            rt.Recipient,
		MinAccountBalance:    minAccountBalance,
		Ts:                   now,
	}
}

// ResolvePreparedTransfer claims a prepared transfer for rt (first claim
// wins) and returns the signal that commits it. When the prepared transfer
// does not match rt, or rt is nil, finalized or claimed by another transfer
// ID, the returned signal dismisses it with a zero committed amount.
func ResolvePreparedTransfer(rt *RunningTransfer, p *PreparedTransfer, now time.Time) *FinalizeTransferSignal {
	matches := rt != nil &&
		rt.DebtorID == p.DebtorID &&
		p.CreditorID == RootCreditorID &&
		rt.Recipient == p.Recipient &&
		rt.Amount <= p.LockedAmount

	if matches {
		if !rt.IsFinalized() && rt.TransferID == nil {
			transferID := p.TransferID
			rt.TransferID = &transferID
		}
		if rt.TransferID != nil && *rt.TransferID == p.TransferID {
			return &FinalizeTransferSignal{
				DebtorID:             rt.DebtorID,
				CreditorID:           RootCreditorID,
				TransferID:           p.TransferID,
				CoordinatorType:      CoordinatorTypeIssuing,
				CoordinatorID:        p.CoordinatorID,
				CoordinatorRequestID: p.CoordinatorRequestID,
				CommittedAmount:      rt.Amount,
				TransferNoteFormat:   rt.TransferNoteFormat,
				TransferNote:         rt.TransferNote,
				Ts:                   now,
			}
		}
	}

	return &FinalizeTransferSignal{
		DebtorID:             p.DebtorID,
		CreditorID:           p.CreditorID,
		TransferID:           p.TransferID,
		CoordinatorType:      CoordinatorTypeIssuing,
		CoordinatorID:        p.CoordinatorID,
		CoordinatorRequestID: p.CoordinatorRequestID,
		CommittedAmount:      0,
		Ts:                   now,
	}
}

// ResolveRejectedTransfer finalizes rt with the rejection's status code, or
// with SCUnexpectedError when the rejection does not match rt. Returns
// whether rt changed.
func ResolveRejectedTransfer(rt *RunningTransfer, r *RejectedTransfer, now time.Time) bool {
	if rt == nil || rt.IsFinalized() {
		return false
	}

	if r.StatusCode != SCOK && rt.DebtorID == r.DebtorID && r.CreditorID == RootCreditorID {
		code, locked := r.StatusCode, r.TotalLockedAmount
		return rt.Finalize(now, &code, &locked)
	}

	code := SCUnexpectedError
	return rt.Finalize(now, &code, nil)
}

// ResolveFinalizedTransfer finalizes rt from the accounting service's final
// verdict. Success requires the full amount to be committed, failure
// requires nothing to be committed; anything else is an unexpected error.
// Returns whether rt changed.
func ResolveFinalizedTransfer(rt *RunningTransfer, f *FinalizedTransfer, now time.Time) bool {
	matches := rt != nil &&
		rt.DebtorID == f.DebtorID &&
		f.CreditorID == RootCreditorID &&
		rt.TransferID != nil && *rt.TransferID == f.TransferID
	if !matches || rt.IsFinalized() {
		return false
	}

	switch {
	case f.StatusCode == SCOK && f.CommittedAmount == rt.Amount:
		return rt.Finalize(now, nil, nil)
	case f.StatusCode != SCOK && f.CommittedAmount == 0:
		code, locked := f.StatusCode, f.TotalLockedAmount
		return rt.Finalize(now, &code, &locked)
	default:
		code := SCUnexpectedError
		return rt.Finalize(now, &code, nil)
	}
}
