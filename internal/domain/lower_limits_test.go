package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2000, 1, d, 0, 0, 0, 0, time.UTC)
}

func limit(value int64, d int) LowerLimit {
	return LowerLimit{Value: decimal.NewFromInt(value), Cutoff: day(d)}
}

func limitValues(s LowerLimitSequence) []int64 {
	values := make([]int64, len(s))
	for i, l := range s {
		values[i] = l.Value.IntPart()
	}
	return values
}

func TestLowerLimitSequence_AddLimit(t *testing.T) {
	var limits LowerLimitSequence

	limits.AddLimit(limit(30, 1))
	limits.AddLimit(limit(20, 2))
	limits.AddLimit(limit(10, 3))
	assert.Equal(t, []int64{30, 20, 10}, limitValues(limits))

	limits.AddLimit(limit(25, 4))
	assert.Equal(t, []int64{30, 25}, limitValues(limits))
	assert.Equal(t, []time.Time{day(1), day(4)}, limits.Cutoffs())

	limits.AddLimit(limit(30, 3))
	assert.Equal(t, []int64{30, 25}, limitValues(limits))
	assert.Equal(t, []time.Time{day(3), day(4)}, limits.Cutoffs())

	// Adding an already existing limit changes nothing.
	limits.AddLimit(limit(30, 3))
	assert.Equal(t, []int64{30, 25}, limitValues(limits))
}

func TestLowerLimitSequence_AddLimitEliminatesChain(t *testing.T) {
	limits := LowerLimitSequence{limit(10, 1), limit(20, 2), limit(30, 3)}

	limits.AddLimit(limit(10, 1))

	assert.Equal(t, []int64{30}, limitValues(limits))
}

func TestLowerLimitSequence_AddLimits(t *testing.T) {
	tests := []struct {
		name     string
		existing LowerLimitSequence
		added    []LowerLimit
		maxCount int
		want     []int64
		wantErr  bool
	}{
		{
			name:     "fits",
			added:    []LowerLimit{limit(30, 1), limit(20, 2)},
			maxCount: 2,
			want:     []int64{30, 20},
		},
		{
			name:     "too many new limits",
			added:    []LowerLimit{limit(30, 1), limit(20, 2), limit(10, 3)},
			maxCount: 2,
			wantErr:  true,
		},
		{
			name:     "too long after merge",
			existing: LowerLimitSequence{limit(30, 1), limit(20, 2)},
			added:    []LowerLimit{limit(10, 3)},
			maxCount: 2,
			wantErr:  true,
		},
		{
			name:     "new limit eliminates old ones",
			existing: LowerLimitSequence{limit(30, 1), limit(20, 2)},
			added:    []LowerLimit{limit(40, 3)},
			maxCount: 2,
			want:     []int64{40},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := append(LowerLimitSequence{}, tt.existing...)
			err := limits.AddLimits(tt.added, tt.maxCount)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTooLongLimitSequence)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, limitValues(limits))
		})
	}
}

func TestLowerLimitSequence_CurrentLimits(t *testing.T) {
	limits := LowerLimitSequence{limit(30, 1), limit(20, 2), limit(10, 3)}

	assert.Equal(t, []int64{30, 20, 10}, limitValues(limits.CurrentLimits(day(1))))
	assert.Equal(t, []int64{20, 10}, limitValues(limits.CurrentLimits(day(2).Add(13*time.Hour))))
	assert.Empty(t, limits.CurrentLimits(day(4)))
}

func TestLowerLimitSequence_ApplyToValue(t *testing.T) {
	limits := LowerLimitSequence{limit(30, 1), limit(20, 2)}

	assert.True(t, decimal.NewFromInt(30).Equal(limits.ApplyToValue(decimal.NewFromInt(5))))
	assert.True(t, decimal.NewFromInt(50).Equal(limits.ApplyToValue(decimal.NewFromInt(50))))
	assert.True(t, decimal.NewFromInt(-7).Equal(LowerLimitSequence{}.ApplyToValue(decimal.NewFromInt(-7))))
}

func TestZipLowerLimits(t *testing.T) {
	values := []decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.NewFromInt(3)}
	cutoffs := []time.Time{day(1), day(2)}

	limits := ZipLowerLimits(values, cutoffs)

	assert.Equal(t, []int64{1, 2}, limitValues(limits))
	assert.Equal(t, values[:2], limits.Values())
}
