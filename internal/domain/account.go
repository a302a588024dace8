package domain

import "time"

// Account status flags, as reported by the accounting service.
const (
	AccountStatusDeletedFlag                 int32 = 1
	AccountStatusEstablishedInterestRateFlag int32 = 2
	AccountStatusOverflownFlag               int32 = 4
	AccountStatusScheduledForDeletionFlag    int32 = 8
)

// Account is the debtor's replica of a creditor account on the accounting
// service. It is used for maintenance routines like changing interest rates.
type Account struct {
	DebtorID                 int64
	CreditorID               int64
	CreationDate             time.Time
	LastChangeTs             time.Time
	LastChangeSeqnum         Seqnum
	Principal                int64
	Interest                 float64
	InterestRate             float64
	LastInterestRateChangeTs time.Time
	NegligibleAmount         float64
	ConfigFlags              int32
	StatusFlags              int32
	LastHeartbeatTs          time.Time
	IsMuted                  bool
	LastMaintenanceRequestTs *time.Time
}

// NewAccount creates the replica of an account from its first update.
func NewAccount(u *AccountUpdate) *Account {
	a := &Account{
		DebtorID:        u.DebtorID,
		CreditorID:      u.CreditorID,
		LastHeartbeatTs: u.Ts,
	}
	a.copyState(u)
	return a
}

// Apply updates the replica. The heartbeat always advances; the state is
// replaced only when the (creation date, change timestamp, sequence number)
// key of u is strictly after the stored one. Returns whether the state was
// replaced.
func (a *Account) Apply(u *AccountUpdate) bool {
	if u.Ts.After(a.LastHeartbeatTs) {
		a.LastHeartbeatTs = u.Ts
	}

	key := ChangeKey{CreationDate: DateOf(u.CreationDate.Time), Ts: u.LastChangeTs, Seqnum: u.LastChangeSeqnum}
	prev := ChangeKey{CreationDate: a.CreationDate, Ts: a.LastChangeTs, Seqnum: a.LastChangeSeqnum}
	if !key.After(prev) {
		return false
	}

	a.copyState(u)
	return true
}

// HasEstablishedInterestRate reports whether the accounting service has
// confirmed the account's interest rate.
func (a *Account) HasEstablishedInterestRate() bool {
	return a.StatusFlags&AccountStatusEstablishedInterestRateFlag != 0
}

// NeedsInterestRateChange reports whether a new interest rate should be
// requested: the rate is not established, the account is not waiting for a
// previous request, and the last change is older than minInterval.
func (a *Account) NeedsInterestRateChange(now time.Time, minInterval time.Duration) bool {
	return !a.HasEstablishedInterestRate() &&
		!a.IsMuted &&
		a.LastInterestRateChangeTs.Before(now.Add(-minInterval))
}

// RequestInterestRateChange mutes the account until the accounting service
// confirms the maintenance request, and returns the request.
func (a *Account) RequestInterestRateChange(interestRate float64, now time.Time) *ChangeInterestRateSignal {
	a.IsMuted = true
	a.LastMaintenanceRequestTs = &now

	return &ChangeInterestRateSignal{
		DebtorID:     a.DebtorID,
		CreditorID:   a.CreditorID,
		InterestRate: interestRate,
		RequestTs:    now,
	}
}

// Unmute ends the muted period when the confirmed request is not older than
// the last one sent (within ClockSkewTolerance). Returns whether the account
// was unmuted.
func (a *Account) Unmute(requestTs time.Time) bool {
	if !a.IsMuted || a.LastMaintenanceRequestTs == nil {
		return false
	}
	if a.LastMaintenanceRequestTs.After(requestTs.Add(ClockSkewTolerance)) {
		return false
	}

	a.IsMuted = false
	return true
}

func (a *Account) copyState(u *AccountUpdate) {
	a.CreationDate = DateOf(u.CreationDate.Time)
	a.LastChangeTs = u.LastChangeTs
	a.LastChangeSeqnum = u.LastChangeSeqnum
	a.Principal = u.Principal
	a.Interest = u.Interest
	a.InterestRate = u.InterestRate
	a.LastInterestRateChangeTs = u.LastInterestRateChangeTs
	a.NegligibleAmount = u.NegligibleAmount
	a.ConfigFlags = u.ConfigFlags
	a.StatusFlags = u.StatusFlags
}
