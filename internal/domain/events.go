package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound signal kinds.
const (
	KindAccountUpdate             SignalKind = "AccountUpdate"
	KindAccountPurge              SignalKind = "AccountPurge"
	KindRejectedConfig            SignalKind = "RejectedConfig"
	KindPreparedTransfer          SignalKind = "PreparedTransfer"
	KindRejectedTransfer          SignalKind = "RejectedTransfer"
	KindFinalizedTransfer         SignalKind = "FinalizedTransfer"
	KindAccountMaintenanceRequest SignalKind = "AccountMaintenanceRequest"
)

// InboundSignal is a message delivered by the accounting service. Delivery
// is at-least-once and unordered. The set of implementations is closed.
type InboundSignal interface {
	Kind() SignalKind
	inbound()
}

// Date is a calendar day, encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the day of t in UTC.
func NewDate(t time.Time) Date {
	return Date{DateOf(t)}
}

const dateLayout = "2006-01-02"

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// AccountUpdate reports the current state of an account.
type AccountUpdate struct {
	DebtorID                 int64     `json:"debtor_id,string"`
	CreditorID               int64     `json:"creditor_id,string"`
	CreationDate             Date      `json:"creation_date"`
	LastChangeTs             time.Time `json:"last_change_ts"`
	LastChangeSeqnum         Seqnum    `json:"last_change_seqnum"`
	Principal                int64     `json:"principal,string"`
	Interest                 float64   `json:"interest"`
	InterestRate             float64   `json:"interest_rate"`
	LastInterestRateChangeTs time.Time `json:"last_interest_rate_change_ts"`
	LastConfigTs             time.Time `json:"last_config_ts"`
	LastConfigSeqnum         Seqnum    `json:"last_config_seqnum"`
	NegligibleAmount         float64   `json:"negligible_amount"`
	ConfigData               string    `json:"config_data"`
	ConfigFlags              int32     `json:"config_flags"`
	StatusFlags              int32     `json:"status_flags"`
	AccountID                string    `json:"account_id"`
	TransferNoteMaxBytes     int32     `json:"transfer_note_max_bytes"`
	Ts                       time.Time `json:"ts"`
	TTL                      int32     `json:"ttl"`
}

// IsExpired reports whether the message is older than its time-to-live. A
// timestamp in the future counts as now.
func (u *AccountUpdate) IsExpired(now time.Time) bool {
	ts := u.Ts
	if ts.After(now) {
		ts = now
	}
	return now.Sub(ts) > time.Duration(u.TTL)*time.Second
}

// IsDeletionConfigEcho reports whether the account already runs with the
// configuration that schedules it for deletion.
func (u *AccountUpdate) IsDeletionConfigEcho() bool {
	return u.ConfigFlags&ConfigScheduledForDeletionFlag != 0 &&
		u.NegligibleAmount >= HugeNegligibleAmount*(1-NegligibleAmountTolerance)
}

// AccountPurge reports that an account has been removed.
type AccountPurge struct {
	DebtorID     int64 `json:"debtor_id,string"`
	CreditorID   int64 `json:"creditor_id,string"`
	CreationDate Date  `json:"creation_date"`
}

// RejectedConfig reports that an account configuration was not applied.
type RejectedConfig struct {
	DebtorID         int64     `json:"debtor_id,string"`
	CreditorID       int64     `json:"creditor_id,string"`
	ConfigTs         time.Time `json:"config_ts"`
	ConfigSeqnum     Seqnum    `json:"config_seqnum"`
	NegligibleAmount float64   `json:"negligible_amount"`
	ConfigData       string    `json:"config_data"`
	ConfigFlags      int32     `json:"config_flags"`
	RejectionCode    string    `json:"rejection_code"`
}

// PreparedTransfer reports that the amount of a transfer has been locked.
type PreparedTransfer struct {
	DebtorID             int64  `json:"debtor_id,string"`
	CreditorID           int64  `json:"creditor_id,string"`
	TransferID           int64  `json:"transfer_id,string"`
	CoordinatorID        int64  `json:"coordinator_id,string"`
	CoordinatorRequestID int64  `json:"coordinator_request_id,string"`
	LockedAmount         int64  `json:"locked_amount,string"`
	Recipient            string `json:"recipient"`
}

// RejectedTransfer reports that a transfer could not be prepared.
type RejectedTransfer struct {
	CoordinatorID        int64  `json:"coordinator_id,string"`
	CoordinatorRequestID int64  `json:"coordinator_request_id,string"`
	StatusCode           string `json:"status_code"`
	TotalLockedAmount    int64  `json:"total_locked_amount,string"`
	DebtorID             int64  `json:"debtor_id,string"`
	CreditorID           int64  `json:"creditor_id,string"`
}

// FinalizedTransfer reports the final outcome of a prepared transfer.
type FinalizedTransfer struct {
	DebtorID             int64  `json:"debtor_id,string"`
	CreditorID           int64  `json:"creditor_id,string"`
	TransferID           int64  `json:"transfer_id,string"`
	CoordinatorID        int64  `json:"coordinator_id,string"`
	CoordinatorRequestID int64  `json:"coordinator_request_id,string"`
	CommittedAmount      int64  `json:"committed_amount,string"`
	StatusCode           string `json:"status_code"`
	TotalLockedAmount    int64  `json:"total_locked_amount,string"`
}

// AccountMaintenanceRequest confirms that a maintenance request has been
// processed by the accounting service.
type AccountMaintenanceRequest struct {
	DebtorID   int64     `json:"debtor_id,string"`
	CreditorID int64     `json:"creditor_id,string"`
	RequestTs  time.Time `json:"request_ts"`
}

func (*AccountUpdate) Kind() SignalKind             { return KindAccountUpdate }
func (*AccountPurge) Kind() SignalKind              { return KindAccountPurge }
func (*RejectedConfig) Kind() SignalKind            { return KindRejectedConfig }
func (*PreparedTransfer) Kind() SignalKind          { return KindPreparedTransfer }
func (*RejectedTransfer) Kind() SignalKind          { return KindRejectedTransfer }
func (*FinalizedTransfer) Kind() SignalKind         { return KindFinalizedTransfer }
func (*AccountMaintenanceRequest) Kind() SignalKind { return KindAccountMaintenanceRequest }

func (*AccountUpdate) inbound()             {}
func (*AccountPurge) inbound()              {}
func (*RejectedConfig) inbound()            {}
func (*PreparedTransfer) inbound()          {}
func (*RejectedTransfer) inbound()          {}
func (*FinalizedTransfer) inbound()         {}
func (*AccountMaintenanceRequest) inbound() {}

// DecodeInboundSignal decodes the JSON payload of an inbound signal of the
// given kind.
func DecodeInboundSignal(kind SignalKind, payload []byte) (InboundSignal, error) {
	var signal InboundSignal
	switch kind {
	case KindAccountUpdate:
		signal = &AccountUpdate{}
	case KindAccountPurge:
		signal = &AccountPurge{}
	case KindRejectedConfig:
		signal = &RejectedConfig{}
	case KindPreparedTransfer:
		signal = &PreparedTransfer{}
	case KindRejectedTransfer:
		signal = &RejectedTransfer{}
	case KindFinalizedTransfer:
		signal = &FinalizedTransfer{}
	case KindAccountMaintenanceRequest:
		signal = &AccountMaintenanceRequest{}
	default:
		return nil, fmt.Errorf("%w: unknown signal kind %q", ErrInvalidInput, kind)
	}

	if err := json.Unmarshal(payload, signal); err != nil {
		return nil, fmt.Errorf("%w: malformed %s signal: %v", ErrInvalidInput, kind, err)
	}
	return signal, nil
}
