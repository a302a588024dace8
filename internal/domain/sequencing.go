package domain

import (
	"math"
	"time"
)

// ClockSkewTolerance is the grace window within which two timestamps are
// considered simultaneous, so that the sequence number decides their order.
const ClockSkewTolerance = time.Second

// Seqnum is a 32-bit sequence number that wraps around from MaxInt32 to
// MinInt32. Comparisons are wraparound-aware.
type Seqnum int32

// Next returns the sequence number that follows s.
func (s Seqnum) Next() Seqnum {
	if s == math.MaxInt32 {
		return math.MinInt32
	}
	return s + 1
}

// After reports whether s comes after other, treating the difference
// (s - other) mod 2^32 as a signed 32-bit number.
func (s Seqnum) After(other Seqnum) bool {
	diff := uint32(s) - uint32(other)
	return diff > 0 && diff < 1<<31
}

// EventOrder is the (timestamp, sequence number) ordering key of an event.
// A nil Seqnum means the stored state has no sequence number yet.
type EventOrder struct {
	Ts     time.Time
	Seqnum *Seqnum
}

// IsLaterEvent reports whether event should be applied over previously stored
// state ordered by prev.
// Logic:
//  1. No previous state: always apply
//  2. event is more than ClockSkewTolerance older than prev: discard
//  3. event is more than ClockSkewTolerance newer than prev: apply
//  4. Otherwise the wraparound-aware sequence number comparison decides
func IsLaterEvent(event, prev EventOrder) bool {
	if prev.Ts.IsZero() {
		return true
	}

	advance := event.Ts.Sub(prev.Ts)
	if advance < -ClockSkewTolerance {
		return false
	}
	if advance > ClockSkewTolerance || prev.Seqnum == nil || event.Seqnum == nil {
		return true
	}

	return event.Seqnum.After(*prev.Seqnum)
}

// ChangeKey orders successive states of one account. A later creation date
// always dominates, then the change timestamp, then the sequence number.
type ChangeKey struct {
	CreationDate time.Time
	Ts           time.Time
	Seqnum       Seqnum
}

// IsZero reports whether the key describes no recorded change.
func (k ChangeKey) IsZero() bool {
	return k.CreationDate.IsZero() && k.Ts.IsZero() && k.Seqnum == 0
}

// After reports whether k is strictly after prev in lexicographic order.
func (k ChangeKey) After(prev ChangeKey) bool {
	if prev.IsZero() {
		return true
	}

	kDate, prevDate := DateOf(k.CreationDate), DateOf(prev.CreationDate)
	if !kDate.Equal(prevDate) {
		return kDate.After(prevDate)
	}
	if !k.Ts.Equal(prev.Ts) {
		return k.Ts.After(prev.Ts)
	}
	return k.Seqnum.After(prev.Seqnum)
}

// DateOf truncates t to midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
