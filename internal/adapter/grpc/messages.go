package grpc

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

type deliverRequest struct {
	Kind    domain.SignalKind `json:"kind"`
	Payload json.RawMessage   `json:"payload"`
}

type reserveDebtorRequest struct {
	// A random ID from the node's range is generated when omitted
	DebtorID *int64 `json:"debtor_id,string,omitempty"`
}

type debtorRequest struct {
	DebtorID int64 `json:"debtor_id,string"`
}

type activateDebtorRequest struct {
	DebtorID      int64 `json:"debtor_id,string"`
	ReservationID int64 `json:"reservation_id,string"`
}

type lowerLimitMessage struct {
	Value  decimal.Decimal `json:"value"`
	Cutoff domain.Date     `json:"cutoff"`
}

type updatePolicyRequest struct {
	DebtorID                int64               `json:"debtor_id,string"`
	InterestRateTarget      float64             `json:"interest_rate_target"`
	InterestRateLowerLimits []lowerLimitMessage `json:"interest_rate_lower_limits"`
	BalanceLowerLimits      []lowerLimitMessage `json:"balance_lower_limits"`
}

type updateConfigRequest struct {
	DebtorID           int64  `json:"debtor_id,string"`
	ConfigData         string `json:"config_data"`
	LatestUpdateID     int64  `json:"latest_update_id,string"`
	MaxActionsPerMonth int    `json:"max_actions_per_month,omitempty"`
}

type listDebtorIDsRequest struct {
	StartFrom int64 `json:"start_from,string"`
	Count     int   `json:"count"`
}

type listDebtorIDsResponse struct {
	Items []string `json:"items"`
	Next  *int64   `json:"next,string,omitempty"`
}

type transferRequest struct {
	DebtorID     int64     `json:"debtor_id,string"`
	TransferUUID uuid.UUID `json:"transfer_uuid"`
}

type initiateTransferRequest struct {
	DebtorID           int64     `json:"debtor_id,string"`
	TransferUUID       uuid.UUID `json:"transfer_uuid"`
	Recipient          string    `json:"recipient"`
	Amount             int64     `json:"amount,string"`
	TransferNoteFormat string    `json:"transfer_note_format"`
	TransferNote       string    `json:"transfer_note"`
}

type listTransfersResponse struct {
	TransferUUIDs []uuid.UUID `json:"transfer_uuids"`
}

type debtorResponse struct {
	DebtorID                int64               `json:"debtor_id,string"`
	ReservationID           int64               `json:"reservation_id,string"`
	IsActive                bool                `json:"is_active"`
	IsDeactivated           bool                `json:"is_deactivated"`
	CreatedAt               time.Time           `json:"created_at"`
	DeactivatedAt           *time.Time          `json:"deactivated_at,omitempty"`
	InterestRateTarget      float64             `json:"interest_rate_target"`
	InterestRateLowerLimits []lowerLimitMessage `json:"interest_rate_lower_limits"`
	BalanceLowerLimits      []lowerLimitMessage `json:"balance_lower_limits"`
	MinBalance              int64               `json:"min_balance,string"`
	Balance                 int64               `json:"balance,string"`
	AccountID               string              `json:"account_id"`
	TransferNoteMaxBytes    int32               `json:"transfer_note_max_bytes"`
	HasServerAccount        bool                `json:"has_server_account"`
	AccountCreationDate     domain.Date         `json:"account_creation_date"`
	AccountLastChangeTs     time.Time           `json:"account_last_change_ts"`
	AccountLastChangeSeqnum domain.Seqnum       `json:"account_last_change_seqnum"`
	IsConfigEffectual       bool                `json:"is_config_effectual"`
	ConfigError             *string             `json:"config_error,omitempty"`
	DebtorInfoIRI           *string             `json:"debtor_info_iri,omitempty"`
	ConfigData              string              `json:"config_data"`
	ConfigLatestUpdateID    int64               `json:"config_latest_update_id,string"`
	RunningTransfersCount   int32               `json:"running_transfers_count"`
}

type transferResponse struct {
	DebtorID           int64                `json:"debtor_id,string"`
	TransferUUID       uuid.UUID            `json:"transfer_uuid"`
	Recipient          string               `json:"recipient"`
	Amount             int64                `json:"amount,string"`
	TransferNoteFormat string               `json:"transfer_note_format"`
	TransferNote       string               `json:"transfer_note"`
	InitiatedAt        time.Time            `json:"initiated_at"`
	State              domain.TransferState `json:"state"`
	FinalizedAt        *time.Time           `json:"finalized_at,omitempty"`
	ErrorCode          *string              `json:"error_code,omitempty"`
	TotalLockedAmount  *int64               `json:"total_locked_amount,string,omitempty"`
}

func lowerLimitsToMessages(s domain.LowerLimitSequence) []lowerLimitMessage {
	messages := make([]lowerLimitMessage, 0, len(s))
	for _, limit := range s {
		messages = append(messages, lowerLimitMessage{Value: limit.Value, Cutoff: domain.NewDate(limit.Cutoff)})
	}
	return messages
}

func messagesToLowerLimits(messages []lowerLimitMessage) []domain.LowerLimit {
	limits := make([]domain.LowerLimit, 0, len(messages))
	for _, m := range messages {
		limits = append(limits, domain.LowerLimit{Value: m.Value, Cutoff: m.Cutoff.Time})
	}
	return limits
}

// debtorToResponse converts a domain Debtor to its response message
func debtorToResponse(d *domain.Debtor) *debtorResponse {
	return &debtorResponse{
		DebtorID:                d.DebtorID,
		ReservationID:           d.ReservationID,
		IsActive:                d.IsActive(),
		IsDeactivated:           d.IsDeactivated(),
		CreatedAt:               d.CreatedAt,
		DeactivatedAt:           d.DeactivatedAt,
		InterestRateTarget:      d.InterestRateTarget,
		InterestRateLowerLimits: lowerLimitsToMessages(d.InterestRateLowerLimits),
		BalanceLowerLimits:      lowerLimitsToMessages(d.BalanceLowerLimits),
		MinBalance:              d.MinBalance,
		Balance:                 d.Balance,
		AccountID:               d.AccountID,
		TransferNoteMaxBytes:    d.TransferNoteMaxBytes,
		HasServerAccount:        d.HasServerAccount,
		AccountCreationDate:     domain.NewDate(d.AccountCreationDate),
		AccountLastChangeTs:     d.AccountLastChangeTs,
		AccountLastChangeSeqnum: d.AccountLastChangeSeqnum,
		IsConfigEffectual:       d.IsConfigEffectual,
		ConfigError:             d.ConfigError,
		DebtorInfoIRI:           d.DebtorInfoIRI,
		ConfigData:              d.ConfigData,
		ConfigLatestUpdateID:    d.ConfigLatestUpdateID,
		RunningTransfersCount:   d.RunningTransfersCount,
	}
}

// transferToResponse converts a domain RunningTransfer to its response message
func transferToResponse(rt *domain.RunningTransfer) *transferResponse {
	return &transferResponse{
		DebtorID:           rt.DebtorID,
		TransferUUID:       rt.TransferUUID,
		Recipient:          rt.Recipient,
		Amount:             rt.Amount,
		TransferNoteFormat: rt.TransferNoteFormat,
		TransferNote:       rt.TransferNote,
		InitiatedAt:        rt.InitiatedAt,
		State:              rt.State(),
		FinalizedAt:        rt.FinalizedAt,
		ErrorCode:          rt.ErrorCode,
		TotalLockedAmount:  rt.TotalLockedAmount,
	}
}

func formatIDs(ids []int64) []string {
	items := make([]string, 0, len(ids))
	for _, id := range ids {
		items = append(items, strconv.FormatInt(id, 10))
	}
	return items
}
