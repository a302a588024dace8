package domain

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ErrTooLongLimitSequence is returned when a limit sequence would exceed the
// maximum allowed length.
var ErrTooLongLimitSequence = errors.New("too many limits in the sequence")

// LowerLimit is a numerical lower limit that is enforced until (and
// including) its cutoff date.
type LowerLimit struct {
	Value  decimal.Decimal
	Cutoff time.Time
}

// LowerLimitSequence is a sequence of lower limits. After AddLimit the
// sequence is sorted by cutoff date and no limit in it is made redundant by
// another one: values strictly decrease as cutoff dates increase.
type LowerLimitSequence []LowerLimit

// AddLimit adds a limit, eliminates the limits that became redundant and
// sorts the sequence by cutoff date. The length of the result is not checked.
func (s *LowerLimitSequence) AddLimit(limit LowerLimit) {
	eliminator := &limit
	for eliminator != nil {
		s.applyEliminator(*eliminator)
		s.sort()
		eliminator = s.findEliminator()
	}
}

// AddLimits adds several limits at once. The length is checked only at the
// end, since each added limit may eliminate any number of existing ones.
// Returns ErrTooLongLimitSequence if the result has more than maxCount limits.
func (s *LowerLimitSequence) AddLimits(limits []LowerLimit, maxCount int) error {
	// Non-eliminating limits can only grow the sequence.
	if len(limits) > maxCount {
		return ErrTooLongLimitSequence
	}

	for _, limit := range limits {
		s.AddLimit(limit)
	}
	if len(*s) > maxCount {
		return ErrTooLongLimitSequence
	}

	return nil
}

// CurrentLimits returns a new sequence with the limits still enforced on day.
func (s LowerLimitSequence) CurrentLimits(day time.Time) LowerLimitSequence {
	day = DateOf(day)
	current := make(LowerLimitSequence, 0, len(s))
	for _, limit := range s {
		if !DateOf(limit.Cutoff).Before(day) {
			current = append(current, limit)
		}
	}
	return current
}

// ApplyToValue returns value raised to the biggest limit in the sequence.
func (s LowerLimitSequence) ApplyToValue(value decimal.Decimal) decimal.Decimal {
	for _, limit := range s {
		if value.LessThan(limit.Value) {
			value = limit.Value
		}
	}
	return value
}

// Values returns the limit values in sequence order.
func (s LowerLimitSequence) Values() []decimal.Decimal {
	values := make([]decimal.Decimal, len(s))
	for i, limit := range s {
		values[i] = limit.Value
	}
	return values
}

// Cutoffs returns the cutoff dates in sequence order.
func (s LowerLimitSequence) Cutoffs() []time.Time {
	cutoffs := make([]time.Time, len(s))
	for i, limit := range s {
		cutoffs[i] = limit.Cutoff
	}
	return cutoffs
}

// ZipLowerLimits builds a sequence from parallel value and cutoff slices.
// Surplus elements of the longer slice are ignored.
func ZipLowerLimits(values []decimal.Decimal, cutoffs []time.Time) LowerLimitSequence {
	n := min(len(values), len(cutoffs))
	limits := make(LowerLimitSequence, n)
	for i := 0; i < n; i++ {
		limits[i] = LowerLimit{Value: values[i], Cutoff: DateOf(cutoffs[i])}
	}
	return limits
}

func (s *LowerLimitSequence) sort() {
	sort.SliceStable(*s, func(i, j int) bool {
		return (*s)[i].Cutoff.Before((*s)[j].Cutoff)
	})
}

// applyEliminator drops every limit that is not stricter than the eliminator
// at any date, then appends the eliminator.
func (s *LowerLimitSequence) applyEliminator(eliminator LowerLimit) {
	kept := make(LowerLimitSequence, 0, len(*s)+1)
	for _, limit := range *s {
		if limit.Value.GreaterThan(eliminator.Value) || limit.Cutoff.After(eliminator.Cutoff) {
			kept = append(kept, limit)
		}
	}
	*s = append(kept, eliminator)
}

// findEliminator looks for a limit in the sorted sequence that makes at least
// one of the other limits redundant.
func (s LowerLimitSequence) findEliminator() *LowerLimit {
	for i := 1; i < len(s); i++ {
		if s[i].Value.GreaterThanOrEqual(s[i-1].Value) {
			eliminator := s[i]
			return &eliminator
		}
	}
	return nil
}
