package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningTransfer() *RunningTransfer {
	return &RunningTransfer{
		DebtorID:             -1,
		TransferUUID:         uuid.MustParse("123e4567-e89b-12d3-a456-426655440000"),
		CoordinatorRequestID: 7,
		TransferRequest: TransferRequest{
			Recipient:          "1",
			Amount:             1000,
			TransferNoteFormat: "json",
			TransferNote:       `{"note":"hi"}`,
		},
		InitiatedAt: testNow,
	}
}

func preparedFor(rt *RunningTransfer, transferID int64) *PreparedTransfer {
	return &PreparedTransfer{
		DebtorID:             rt.DebtorID,
		CreditorID:           RootCreditorID,
		TransferID:           transferID,
		CoordinatorID:        rt.DebtorID,
		CoordinatorRequestID: rt.CoordinatorRequestID,
		LockedAmount:         rt.Amount,
		Recipient:            rt.Recipient,
	}
}

func TestTransferRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     TransferRequest
		wantErr bool
		errMsg  string
	}{
		{name: "Valid", req: TransferRequest{Recipient: "1", Amount: 1}},
		{name: "Empty recipient", req: TransferRequest{Amount: 1}, wantErr: true, errMsg: "recipient cannot be empty"},
		{name: "Zero amount", req: TransferRequest{Recipient: "1"}, wantErr: true, errMsg: "transfer amount must be positive"},
		{name: "Negative amount", req: TransferRequest{Recipient: "1", Amount: -5}, wantErr: true, errMsg: "transfer amount must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunningTransfer_State(t *testing.T) {
	rt := newRunningTransfer()
	assert.Equal(t, TransferStatePreparing, rt.State())

	transferID := int64(55)
	rt.TransferID = &transferID
	assert.Equal(t, TransferStateSettled, rt.State())

	rt.Finalize(testNow, nil, nil)
	assert.Equal(t, TransferStateFinalizedOK, rt.State())

	failed := newRunningTransfer()
	code := "INSUFFICIENT_AVAILABLE_AMOUNT"
	failed.Finalize(testNow, &code, nil)
	assert.Equal(t, TransferStateFinalizedError, failed.State())

	assert.Equal(t, TransferStateCreated, (&RunningTransfer{}).State())
}

func TestRunningTransfer_FinalizeIsALatch(t *testing.T) {
	rt := newRunningTransfer()
	code := "FIRST"

	assert.True(t, rt.Finalize(testNow, &code, nil))
	second := "SECOND"
	assert.False(t, rt.Finalize(testNow.Add(time.Hour), &second, nil))

	assert.Equal(t, "FIRST", *rt.ErrorCode)
	assert.Equal(t, testNow, *rt.FinalizedAt)
}

func TestRunningTransfer_Cancel(t *testing.T) {
	rt := newRunningTransfer()
	require.NoError(t, rt.Cancel(testNow))
	assert.Equal(t, SCCanceledByTheSender, *rt.ErrorCode)

	settled := newRunningTransfer()
	ResolvePreparedTransfer(settled, preparedFor(settled, 55), testNow)
	assert.ErrorIs(t, settled.Cancel(testNow), ErrForbiddenTransferCancellation)
	assert.False(t, settled.IsFinalized())
}

func TestResolvePreparedTransfer(t *testing.T) {
	tests := []struct {
		name          string
		rt            func() *RunningTransfer
		prepared      func(rt *RunningTransfer) *PreparedTransfer
		wantCommitted int64
		wantClaimed   bool
	}{
		{
			name:          "Matching transfer is claimed and committed",
			rt:            newRunningTransfer,
			prepared:      func(rt *RunningTransfer) *PreparedTransfer { return preparedFor(rt, 55) },
			wantCommitted: 1000,
			wantClaimed:   true,
		},
		{
			name: "Unknown transfer is dismissed",
			rt:   func() *RunningTransfer { return nil },
			prepared: func(*RunningTransfer) *PreparedTransfer {
				return preparedFor(newRunningTransfer(), 55)
			},
			wantCommitted: 0,
		},
		{
			name: "Wrong recipient is dismissed",
			rt:   newRunningTransfer,
			prepared: func(rt *RunningTransfer) *PreparedTransfer {
				p := preparedFor(rt, 55)
				p.Recipient = "2"
				return p
			},
			wantCommitted: 0,
		},
		{
			name: "Insufficient locked amount is dismissed",
			rt:   newRunningTransfer,
			prepared: func(rt *RunningTransfer) *PreparedTransfer {
				p := preparedFor(rt, 55)
				p.LockedAmount = 999
				return p
			},
			wantCommitted: 0,
		},
		{
			name: "Finalized transfer is dismissed",
			rt: func() *RunningTransfer {
				rt := newRunningTransfer()
				code := SCCanceledByTheSender
				rt.Finalize(testNow, &code, nil)
				return rt
			},
			prepared:      func(rt *RunningTransfer) *PreparedTransfer { return preparedFor(rt, 55) },
			wantCommitted: 0,
		},
		{
			name: "Transfer claimed by another transfer ID is dismissed",
			rt: func() *RunningTransfer {
				rt := newRunningTransfer()
				other := int64(44)
				rt.TransferID = &other
				return rt
			},
			prepared:      func(rt *RunningTransfer) *PreparedTransfer { return preparedFor(rt, 55) },
			wantCommitted: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := tt.rt()
			p := tt.prepared(rt)

			signal := ResolvePreparedTransfer(rt, p, testNow)

			require.NotNil(t, signal)
			assert.Equal(t, tt.wantCommitted, signal.CommittedAmount)
			assert.Equal(t, p.TransferID, signal.TransferID)
			assert.Equal(t, p.CoordinatorRequestID, signal.CoordinatorRequestID)
			if tt.wantClaimed {
				require.NotNil(t, rt.TransferID)
				assert.Equal(t, p.TransferID, *rt.TransferID)
				assert.Equal(t, rt.TransferNote, signal.TransferNote)
			} else {
				assert.True(t, signal.IsDismissal())
				assert.Empty(t, signal.TransferNote)
			}
		})
	}
}

func TestResolvePreparedTransfer_RedeliveryCommitsAgain(t *testing.T) {
	rt := newRunningTransfer()
	p := preparedFor(rt, 55)

	first := ResolvePreparedTransfer(rt, p, testNow)
	second := ResolvePreparedTransfer(rt, p, testNow)

	assert.Equal(t, int64(1000), first.CommittedAmount)
	assert.Equal(t, int64(1000), second.CommittedAmount)
	assert.Equal(t, int64(55), *rt.TransferID)
}

func TestResolveRejectedTransfer(t *testing.T) {
	tests := []struct {
		name       string
		rejected   RejectedTransfer
		wantCode   string
		wantLocked *int64
	}{
		{
			name: "Rejection finalizes with its status code",
			rejected: RejectedTransfer{
				CoordinatorID: -1, CoordinatorRequestID: 7, DebtorID: -1, CreditorID: RootCreditorID,
				StatusCode: "INSUFFICIENT_AVAILABLE_AMOUNT", TotalLockedAmount: 666,
			},
			wantCode:   "INSUFFICIENT_AVAILABLE_AMOUNT",
			wantLocked: ptr(int64(666)),
		},
		{
			name: "Mismatched debtor is an unexpected error",
			rejected: RejectedTransfer{
				CoordinatorID: -1, CoordinatorRequestID: 7, DebtorID: -2, CreditorID: RootCreditorID,
				StatusCode: "INSUFFICIENT_AVAILABLE_AMOUNT",
			},
			wantCode: SCUnexpectedError,
		},
		{
			name: "OK status is an unexpected error",
			rejected: RejectedTransfer{
				CoordinatorID: -1, CoordinatorRequestID: 7, DebtorID: -1, CreditorID: RootCreditorID,
				StatusCode: SCOK,
			},
			wantCode: SCUnexpectedError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newRunningTransfer()

			assert.True(t, ResolveRejectedTransfer(rt, &tt.rejected, testNow))

			require.NotNil(t, rt.ErrorCode)
			assert.Equal(t, tt.wantCode, *rt.ErrorCode)
			assert.Equal(t, tt.wantLocked, rt.TotalLockedAmount)
			assert.False(t, ResolveRejectedTransfer(rt, &tt.rejected, testNow))
		})
	}

	assert.False(t, ResolveRejectedTransfer(nil, &RejectedTransfer{}, testNow))
}

func TestResolveFinalizedTransfer(t *testing.T) {
	settled := func() *RunningTransfer {
		rt := newRunningTransfer()
		ResolvePreparedTransfer(rt, preparedFor(rt, 55), testNow)
		return rt
	}
	finalized := func(status string, committed int64) *FinalizedTransfer {
		return &FinalizedTransfer{
			DebtorID: -1, CreditorID: RootCreditorID, TransferID: 55,
			CoordinatorID: -1, CoordinatorRequestID: 7,
			CommittedAmount: committed, StatusCode: status, TotalLockedAmount: 0,
		}
	}

	tests := []struct {
		name     string
		signal   *FinalizedTransfer
		wantCode *string
	}{
		{name: "Success", signal: finalized(SCOK, 1000)},
		{name: "Failure", signal: finalized("TIMEOUT", 0), wantCode: ptr("TIMEOUT")},
		{name: "Partial commit", signal: finalized(SCOK, 500), wantCode: ptr(SCUnexpectedError)},
		{name: "Failure with committed amount", signal: finalized("TIMEOUT", 1000), wantCode: ptr(SCUnexpectedError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := settled()

			assert.True(t, ResolveFinalizedTransfer(rt, tt.signal, testNow))
			assert.True(t, rt.IsFinalized())
			assert.Equal(t, tt.wantCode, rt.ErrorCode)

			// A second delivery is a no-op.
			assert.False(t, ResolveFinalizedTransfer(rt, tt.signal, testNow.Add(time.Minute)))
			assert.Equal(t, testNow, *rt.FinalizedAt)
		})
	}

	t.Run("Wrong transfer ID is ignored", func(t *testing.T) {
		rt := settled()
		signal := finalized(SCOK, 1000)
		signal.TransferID = 56

		assert.False(t, ResolveFinalizedTransfer(rt, signal, testNow))
		assert.False(t, rt.IsFinalized())
	})
}
