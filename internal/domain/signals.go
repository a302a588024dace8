package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SignalKind names a message type exchanged with the accounting service
type SignalKind string

// Outbound signal kinds.
const (
	KindConfigureAccount   SignalKind = "ConfigureAccount"
	KindPrepareTransfer    SignalKind = "PrepareTransfer"
	KindFinalizeTransfer   SignalKind = "FinalizeTransfer"
	KindChangeInterestRate SignalKind = "ChangeInterestRate"
)

// OutboundSignal is an immutable fact recorded in the outbox in the same
// transaction as the state change that caused it.
type OutboundSignal interface {
	Kind() SignalKind
	OwnerID() int64
}

// ConfigureAccountSignal configures the debtor's root account.
type ConfigureAccountSignal struct {
	DebtorID         int64     `json:"debtor_id,string"`
	CreditorID       int64     `json:"creditor_id,string"`
	Ts               time.Time `json:"ts"`
	Seqnum           Seqnum    `json:"seqnum"`
	NegligibleAmount float64   `json:"negligible_amount"`
	ConfigData       string    `json:"config_data"`
	ConfigFlags      int32     `json:"config_flags"`
}

func (s *ConfigureAccountSignal) Kind() SignalKind { return KindConfigureAccount }
func (s *ConfigureAccountSignal) OwnerID() int64   { return s.DebtorID }

// NewAccountDeletionSignal configures an orphan account for deletion.
func NewAccountDeletionSignal(debtorID, creditorID int64, now time.Time) *ConfigureAccountSignal {
	return &ConfigureAccountSignal{
		DebtorID:         debtorID,
		CreditorID:       creditorID,
		Ts:               now,
		Seqnum:           0,
		NegligibleAmount: HugeNegligibleAmount,
		ConfigFlags:      ConfigScheduledForDeletionFlag,
	}
}

// PrepareTransferSignal asks the accounting service to lock the amount of a
// new transfer from the root account.
type PrepareTransferSignal struct {
	DebtorID             int64     `json:"debtor_id,string"`
	CreditorID           int64     `json:"creditor_id,string"`
	CoordinatorType      string    `json:"coordinator_type"`
	CoordinatorID        int64     `json:"coordinator_id,string"`
	CoordinatorRequestID int64     `json:"coordinator_request_id,string"`
	Amount               int64     `json:"amount,string"`
	Recipient            string    `json:"recipient"`
	MinAccountBalance    int64     `json:"min_account_balance,string"`
	Ts                   time.Time `json:"ts"`
}

func (s *PrepareTransferSignal) Kind() SignalKind { return KindPrepareTransfer }
func (s *PrepareTransferSignal) OwnerID() int64   { return s.DebtorID }

// FinalizeTransferSignal commits or dismisses a prepared transfer.
type FinalizeTransferSignal struct {
	DebtorID             int64     `json:"debtor_id,string"`
	CreditorID           int64     `json:"creditor_id,string"`
	TransferID           int64     `json:"transfer_id,string"`
	CoordinatorType      string    `json:"coordinator_type"`
	CoordinatorID        int64     `json:"coordinator_id,string"`
	CoordinatorRequestID int64     `json:"coordinator_request_id,string"`
	CommittedAmount      int64     `json:"committed_amount,string"`
	TransferNoteFormat   string    `json:"transfer_note_format"`
	TransferNote         string    `json:"transfer_note"`
	Ts                   time.Time `json:"ts"`
}

func (s *FinalizeTransferSignal) Kind() SignalKind { return KindFinalizeTransfer }
func (s *FinalizeTransferSignal) OwnerID() int64   { return s.DebtorID }

// IsDismissal reports whether the signal releases the prepared transfer
// without committing anything.
func (s *FinalizeTransferSignal) IsDismissal() bool {
	return s.CommittedAmount == 0
}

// ChangeInterestRateSignal asks the accounting service to change the
// interest rate of a creditor account.
type ChangeInterestRateSignal struct {
	DebtorID     int64     `json:"debtor_id,string"`
	CreditorID   int64     `json:"creditor_id,string"`
	InterestRate float64   `json:"interest_rate"`
	RequestTs    time.Time `json:"request_ts"`
}

func (s *ChangeInterestRateSignal) Kind() SignalKind { return KindChangeInterestRate }
func (s *ChangeInterestRateSignal) OwnerID() int64   { return s.DebtorID }

// OutboxMessage is a recorded outbound signal waiting to be published
type OutboxMessage struct {
	ID         int64
	Kind       SignalKind
	DebtorID   int64
	Payload    []byte
	InsertedAt time.Time
}

// NewOutboxMessage encodes signal for the outbox.
func NewOutboxMessage(signal OutboundSignal, now time.Time) (*OutboxMessage, error) {
	payload, err := json.Marshal(signal)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s signal: %w", signal.Kind(), err)
	}

	return &OutboxMessage{
		Kind:       signal.Kind(),
		DebtorID:   signal.OwnerID(),
		Payload:    payload,
		InsertedAt: now,
	}, nil
}
