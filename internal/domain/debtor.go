package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	InterestRateFloor = -50.0
	InterestRateCeil  = 100.0

	// RootCreditorID identifies the debtor's own account on the accounting
	// service. Its balance is the total issued amount with a negative sign.
	RootCreditorID int64 = 0

	// HugeNegligibleAmount is sent with configurations that schedule an
	// account for deletion.
	HugeNegligibleAmount = 1e30

	// NegligibleAmountTolerance is the relative tolerance used when comparing
	// echoed negligible amounts, which travel as floats.
	NegligibleAmountTolerance = 1e-5

	// PolicyLimitsGracePeriod is how long expired lower limits are kept
	// before being pruned on policy updates.
	PolicyLimitsGracePeriod = 7 * 24 * time.Hour
)

// Debtor status flags.
const (
	DebtorStatusActivatedFlag   int32 = 1
	DebtorStatusDeactivatedFlag int32 = 2
)

// ConfigScheduledForDeletionFlag is set in the config flags of accounts that
// should be removed by the accounting service.
const ConfigScheduledForDeletionFlag int32 = 1

// Debtor represents a debtor entity in the domain layer. A debtor is
// reserved first, then activated, and finally deactivated. Deactivation is
// terminal.
type Debtor struct {
	DebtorID      int64
	StatusFlags   int32
	CreatedAt     time.Time
	ReservationID int64
	DeactivatedAt *time.Time

	// Policy
	InterestRateTarget      float64
	InterestRateLowerLimits LowerLimitSequence
	BalanceLowerLimits      LowerLimitSequence
	MinBalance              int64

	// Mirror of the root account on the accounting service
	Balance                 int64
	AccountID               string
	TransferNoteMaxBytes    int32
	HasServerAccount        bool
	AccountCreationDate     time.Time
	AccountLastChangeTs     time.Time
	AccountLastChangeSeqnum Seqnum
	AccountLastHeartbeatTs  time.Time
	IsConfigEffectual       bool
	ConfigError             *string
	DebtorInfoIRI           *string

	// Last sent account configuration
	LastConfigTs         time.Time
	LastConfigSeqnum     Seqnum
	ConfigData           string
	ConfigFlags          int32
	ConfigLatestUpdateID int64

	// Counters
	ActionsCount            int32
	ActionsCountResetDate   time.Time
	DocumentsCount          int32
	DocumentsCountResetDate time.Time
	RunningTransfersCount   int32
}

// NewDebtor creates a reserved, not yet activated debtor.
func NewDebtor(debtorID, reservationID int64, now time.Time) *Debtor {
	today := DateOf(now)
	return &Debtor{
		DebtorID:                debtorID,
		CreatedAt:               now,
		ReservationID:           reservationID,
		MinBalance:              math.MinInt64,
		LastConfigTs:            now,
		ConfigLatestUpdateID:    1,
		ActionsCountResetDate:   today,
		DocumentsCountResetDate: today,
	}
}

// IsActivated reports whether the debtor has ever been activated.
func (d *Debtor) IsActivated() bool {
	return d.StatusFlags&DebtorStatusActivatedFlag != 0
}

// IsDeactivated reports whether the debtor has been deactivated.
func (d *Debtor) IsDeactivated() bool {
	return d.StatusFlags&DebtorStatusDeactivatedFlag != 0
}

// IsActive reports whether the debtor accepts management operations.
func (d *Debtor) IsActive() bool {
	return d.IsActivated() && !d.IsDeactivated()
}

// Activate marks the debtor as activated and returns the first account
// configuration to send. It returns nil if the debtor is already activated.
func (d *Debtor) Activate(reservationID int64, now time.Time) (*ConfigureAccountSignal, error) {
	if d.IsActivated() {
		return nil, nil
	}
	if reservationID != d.ReservationID || d.IsDeactivated() {
		return nil, ErrInvalidReservationID
	}

	d.StatusFlags |= DebtorStatusActivatedFlag
	return d.nextConfigureAccount(now), nil
}

// Deactivate marks the debtor as deactivated, zeroes the running transfers
// counter and schedules the root account for deletion. It returns nil if the
// debtor is already deactivated.
func (d *Debtor) Deactivate(now time.Time) *ConfigureAccountSignal {
	if d.IsDeactivated() {
		return nil
	}

	d.StatusFlags |= DebtorStatusActivatedFlag | DebtorStatusDeactivatedFlag
	d.DeactivatedAt = &now
	d.RunningTransfersCount = 0
	d.ConfigFlags |= ConfigScheduledForDeletionFlag
	return d.nextConfigureAccount(now)
}

// PolicyUpdate holds the new policy of a debtor
type PolicyUpdate struct {
	InterestRateTarget      float64
	InterestRateLowerLimits []LowerLimit
	BalanceLowerLimits      []LowerLimit
}

// Validate ensures the policy update adheres to domain rules
func (p PolicyUpdate) Validate() error {
	if math.IsNaN(p.InterestRateTarget) || p.InterestRateTarget < InterestRateFloor || p.InterestRateTarget > InterestRateCeil {
		return fmt.Errorf("%w: interest rate target must be between %v and %v", ErrInvalidInput, InterestRateFloor, InterestRateCeil)
	}
	for _, l := range p.BalanceLowerLimits {
		if !l.Value.Equal(l.Value.Truncate(0)) {
			return fmt.Errorf("%w: balance limits must be integers", ErrInvalidInput)
		}
	}
	return nil
}

// UpdatePolicy prunes the limits that expired more than a week ago, merges
// the new limits and sets the interest rate target. When the minimal balance
// changes, a new account configuration is returned.
func (d *Debtor) UpdatePolicy(p PolicyUpdate, now time.Time, maxLimitsCount int) (*ConfigureAccountSignal, error) {
	weekAgo := now.Add(-PolicyLimitsGracePeriod)

	interestRateLimits := d.InterestRateLowerLimits.CurrentLimits(weekAgo)
	if err := interestRateLimits.AddLimits(p.InterestRateLowerLimits, maxLimitsCount); err != nil {
		if errors.Is(err, ErrTooLongLimitSequence) {
			return nil, fmt.Errorf("%w: there are too many interest rate limits", ErrConflictingPolicy)
		}
		return nil, err
	}

	balanceLimits := d.BalanceLowerLimits.CurrentLimits(weekAgo)
	if err := balanceLimits.AddLimits(p.BalanceLowerLimits, maxLimitsCount); err != nil {
		if errors.Is(err, ErrTooLongLimitSequence) {
			return nil, fmt.Errorf("%w: there are too many balance limits", ErrConflictingPolicy)
		}
		return nil, err
	}

	d.InterestRateTarget = p.InterestRateTarget
	d.InterestRateLowerLimits = interestRateLimits
	d.BalanceLowerLimits = balanceLimits

	minBalance := d.CalcMinBalance(now)
	if minBalance == d.MinBalance {
		return nil, nil
	}
	d.MinBalance = minBalance
	return d.nextConfigureAccount(now), nil
}

// UpdateConfig replaces the account configuration data. latestUpdateID must
// be the next update ID. Repeating the last update yields ErrAlreadyUpToDate.
func (d *Debtor) UpdateConfig(configData string, latestUpdateID int64, now time.Time) (*ConfigureAccountSignal, error) {
	switch {
	case latestUpdateID == d.ConfigLatestUpdateID+1:
	case latestUpdateID == d.ConfigLatestUpdateID && configData == d.ConfigData:
		return nil, ErrAlreadyUpToDate
	default:
		return nil, ErrUpdateConflict
	}

	d.ConfigLatestUpdateID = latestUpdateID
	d.ConfigData = configData
	return d.nextConfigureAccount(now), nil
}

// CalcInterestRate returns the interest rate target raised by the interest
// rate limits enforced on day, clamped to the absolute bounds.
func (d *Debtor) CalcInterestRate(day time.Time) float64 {
	target := decimal.NewFromFloat(d.InterestRateTarget)
	rate := d.InterestRateLowerLimits.CurrentLimits(day).ApplyToValue(target).InexactFloat64()

	if rate < InterestRateFloor {
		rate = InterestRateFloor
	}
	if rate > InterestRateCeil {
		rate = InterestRateCeil
	}
	return rate
}

// CalcMinBalance returns the lowest balance allowed by the balance limits
// enforced on day.
func (d *Debtor) CalcMinBalance(day time.Time) int64 {
	minBalance := d.BalanceLowerLimits.CurrentLimits(day).ApplyToValue(decimal.NewFromInt(math.MinInt64))
	return minBalance.IntPart()
}

// ConfigNegligibleAmount is the negligible amount sent with the account
// configuration.
func (d *Debtor) ConfigNegligibleAmount() float64 {
	if d.ConfigFlags&ConfigScheduledForDeletionFlag != 0 {
		return HugeNegligibleAmount
	}
	return math.Max(0, -float64(d.MinBalance))
}

// AccountChangeKey returns the ordering key of the mirrored root account state.
func (d *Debtor) AccountChangeKey() ChangeKey {
	return ChangeKey{
		CreationDate: d.AccountCreationDate,
		Ts:           d.AccountLastChangeTs,
		Seqnum:       d.AccountLastChangeSeqnum,
	}
}

// ApplyRootAccountUpdate mirrors the state of the root account. The
// heartbeat always advances; the rest is applied only when the update is
// strictly after the mirrored state. Returns whether the update was applied.
func (d *Debtor) ApplyRootAccountUpdate(u *AccountUpdate) bool {
	if u.Ts.After(d.AccountLastHeartbeatTs) {
		d.AccountLastHeartbeatTs = u.Ts
	}

	key := ChangeKey{CreationDate: u.CreationDate.Time, Ts: u.LastChangeTs, Seqnum: u.LastChangeSeqnum}
	if !key.After(d.AccountChangeKey()) {
		return false
	}

	d.AccountCreationDate = DateOf(u.CreationDate.Time)
	d.AccountLastChangeTs = u.LastChangeTs
	d.AccountLastChangeSeqnum = u.LastChangeSeqnum
	d.HasServerAccount = true
	d.AccountID = u.AccountID
	d.TransferNoteMaxBytes = u.TransferNoteMaxBytes
	if u.StatusFlags&AccountStatusOverflownFlag != 0 {
		d.Balance = math.MinInt64
	} else {
		d.Balance = u.Principal
	}

	d.IsConfigEffectual = d.IsLastConfig(u.LastConfigTs, u.LastConfigSeqnum, u.ConfigFlags, u.ConfigData, u.NegligibleAmount)
	if d.IsConfigEffectual {
		d.ConfigError = nil
		d.DebtorInfoIRI = ParseDebtorInfoIRI(d.ConfigData)
	}

	return true
}

// IsLastConfig reports whether the given configuration is the one last sent
// for the root account.
func (d *Debtor) IsLastConfig(ts time.Time, seqnum Seqnum, flags int32, data string, negligibleAmount float64) bool {
	return ts.Equal(d.LastConfigTs) &&
		seqnum == d.LastConfigSeqnum &&
		flags == d.ConfigFlags &&
		data == d.ConfigData &&
		NegligibleAmountsMatch(negligibleAmount, d.ConfigNegligibleAmount())
}

func (d *Debtor) nextConfigureAccount(now time.Time) *ConfigureAccountSignal {
	if now.After(d.LastConfigTs) {
		d.LastConfigTs = now
	}
	d.LastConfigSeqnum = d.LastConfigSeqnum.Next()
	d.IsConfigEffectual = false

	return &ConfigureAccountSignal{
		DebtorID:         d.DebtorID,
		CreditorID:       RootCreditorID,
		Ts:               d.LastConfigTs,
		Seqnum:           d.LastConfigSeqnum,
		NegligibleAmount: d.ConfigNegligibleAmount(),
		ConfigData:       d.ConfigData,
		ConfigFlags:      d.ConfigFlags,
	}
}

// NegligibleAmountsMatch compares two negligible amounts within
// NegligibleAmountTolerance.
func NegligibleAmountsMatch(a, b float64) bool {
	return math.Abs(a-b) <= NegligibleAmountTolerance*math.Max(math.Abs(a), math.Abs(b))
}

// ParseDebtorInfoIRI extracts info.iri from account configuration data.
// Returns nil when the data is not a JSON object or has no such string.
func ParseDebtorInfoIRI(configData string) *string {
	var data struct {
		Info struct {
			IRI *string `json:"iri"`
		} `json:"info"`
	}
	if err := json.Unmarshal([]byte(configData), &data); err != nil {
		return nil
	}
	return data.Info.IRI
}
