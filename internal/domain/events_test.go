package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInboundSignal(t *testing.T) {
	tests := []struct {
		name    string
		kind    SignalKind
		payload string
		check   func(t *testing.T, s InboundSignal)
		wantErr bool
	}{
		{
			name: "Account update",
			kind: KindAccountUpdate,
			payload: `{
				"debtor_id": "-9223372036854775807", "creditor_id": "0",
				"creation_date": "2026-10-01", "last_change_ts": "2026-10-19T12:00:00Z",
				"last_change_seqnum": 2147483647, "principal": "-1000",
				"interest": 1.5, "interest_rate": 0, "last_interest_rate_change_ts": "1970-01-01T00:00:00Z",
				"last_config_ts": "2026-10-19T11:00:00Z", "last_config_seqnum": 3,
				"negligible_amount": 0, "config_data": "", "config_flags": 0, "status_flags": 0,
				"account_id": "acc", "transfer_note_max_bytes": 500,
				"ts": "2026-10-19T12:00:00Z", "ttl": 100000
			}`,
			check: func(t *testing.T, s InboundSignal) {
				u, ok := s.(*AccountUpdate)
				require.True(t, ok)
				assert.Equal(t, int64(-9223372036854775807), u.DebtorID)
				assert.Equal(t, int64(-1000), u.Principal)
				assert.Equal(t, Seqnum(2147483647), u.LastChangeSeqnum)
				assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), u.CreationDate.Time)
				assert.Equal(t, "acc", u.AccountID)
			},
		},
		{
			name:    "Prepared transfer",
			kind:    KindPreparedTransfer,
			payload: `{"debtor_id":"-1","creditor_id":"0","transfer_id":"55","coordinator_id":"-1","coordinator_request_id":"7","locked_amount":"1000","recipient":"1"}`,
			check: func(t *testing.T, s InboundSignal) {
				p, ok := s.(*PreparedTransfer)
				require.True(t, ok)
				assert.Equal(t, int64(55), p.TransferID)
				assert.Equal(t, int64(1000), p.LockedAmount)
			},
		},
		{
			name:    "Maintenance request",
			kind:    KindAccountMaintenanceRequest,
			payload: `{"debtor_id":"-1","creditor_id":"5","request_ts":"2026-10-19T12:00:00Z"}`,
			check: func(t *testing.T, s InboundSignal) {
				assert.Equal(t, KindAccountMaintenanceRequest, s.Kind())
			},
		},
		{name: "Unknown kind", kind: "Bogus", payload: `{}`, wantErr: true},
		{name: "Malformed payload", kind: KindAccountPurge, payload: `{"debtor_id": 1`, wantErr: true},
		{name: "Malformed date", kind: KindAccountPurge, payload: `{"debtor_id":"1","creditor_id":"2","creation_date":"19/10/2026"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := DecodeInboundSignal(tt.kind, []byte(tt.payload))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, s.Kind())
			tt.check(t, s)
		})
	}
}

func TestAccountUpdate_IsExpired(t *testing.T) {
	tests := []struct {
		name string
		ts   time.Time
		ttl  int32
		want bool
	}{
		{name: "Fresh", ts: testNow.Add(-time.Minute), ttl: 3600, want: false},
		{name: "Expired", ts: testNow.Add(-2 * time.Hour), ttl: 3600, want: true},
		{name: "Future timestamp", ts: testNow.Add(time.Hour), ttl: 0, want: false},
		{name: "Zero TTL", ts: testNow.Add(-time.Second), ttl: 0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &AccountUpdate{Ts: tt.ts, TTL: tt.ttl}
			assert.Equal(t, tt.want, u.IsExpired(testNow))
		})
	}
}

func TestAccountUpdate_IsDeletionConfigEcho(t *testing.T) {
	u := &AccountUpdate{ConfigFlags: ConfigScheduledForDeletionFlag, NegligibleAmount: HugeNegligibleAmount}
	assert.True(t, u.IsDeletionConfigEcho())

	u.NegligibleAmount = 1000
	assert.False(t, u.IsDeletionConfigEcho())

	u = &AccountUpdate{NegligibleAmount: HugeNegligibleAmount}
	assert.False(t, u.IsDeletionConfigEcho())
}

func TestDate_JSON(t *testing.T) {
	d := NewDate(time.Date(2026, 10, 19, 23, 59, 0, 0, time.UTC))

	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2026-10-19"`, string(data))

	var parsed Date
	require.NoError(t, parsed.UnmarshalJSON(data))
	assert.True(t, parsed.Equal(d.Time))

	assert.Error(t, parsed.UnmarshalJSON([]byte(`20261019`)))
}
