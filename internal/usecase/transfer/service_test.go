package transfer

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epandurski/swpt-debtors/internal/adapter/repository/memory"
	"github.com/epandurski/swpt-debtors/internal/domain"
	"github.com/epandurski/swpt-debtors/internal/usecase/debtor"
)

const debtorID int64 = -1

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	debtors   *debtor.DebtorService
	transfers *TransferService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := memory.NewStore()
	f := &fixture{
		store:     store,
		debtors:   debtor.NewDebtorService(store, domain.DefaultLimits(), log),
		transfers: NewTransferService(store, domain.DefaultLimits(), log),
	}
	clock := func() time.Time { return now }
	f.debtors.Now = clock
	f.transfers.Now = clock

	require.NoError(t, f.debtors.ConfigureNode(ctx, -100, 100))
	reserved, err := f.debtors.Reserve(ctx, debtorID)
	require.NoError(t, err)
	_, err = f.debtors.Activate(ctx, debtorID, reserved.ReservationID)
	require.NoError(t, err)
	return f
}

func (f *fixture) initiate(t *testing.T, amount int64) *domain.RunningTransfer {
	t.Helper()
	rt, err := f.transfers.Initiate(context.Background(), InitiateTransferInput{
		DebtorID:        debtorID,
		TransferUUID:    uuid.New(),
		TransferRequest: domain.TransferRequest{Recipient: "1", Amount: amount, TransferNoteFormat: "", TransferNote: "test"},
	})
	require.NoError(t, err)
	return rt
}

func (f *fixture) outbox(t *testing.T) []*domain.OutboxMessage {
	t.Helper()
	var msgs []*domain.OutboxMessage
	require.NoError(t, f.store.Atomic(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		var err error
		msgs, err = tx.Outbox().Pending(ctx, 1000)
		return err
	}))
	return msgs
}

func (f *fixture) finalizeSignals(t *testing.T) []domain.FinalizeTransferSignal {
	t.Helper()
	var signals []domain.FinalizeTransferSignal
	for _, msg := range f.outbox(t) {
		if msg.Kind != domain.KindFinalizeTransfer {
			continue
		}
		var s domain.FinalizeTransferSignal
		require.NoError(t, json.Unmarshal(msg.Payload, &s))
		signals = append(signals, s)
	}
	return signals
}

func (f *fixture) runningCount(t *testing.T) int32 {
	t.Helper()
	d, err := f.debtors.Get(context.Background(), debtorID)
	require.NoError(t, err)
	return d.RunningTransfersCount
}

func prepared(rt *domain.RunningTransfer, transferID int64) *domain.PreparedTransfer {
	return &domain.PreparedTransfer{
		DebtorID:             rt.DebtorID,
		CreditorID:           domain.RootCreditorID,
		TransferID:           transferID,
		CoordinatorID:        rt.DebtorID,
		CoordinatorRequestID: rt.CoordinatorRequestID,
		LockedAmount:         rt.Amount,
		Recipient:            rt.Recipient,
	}
}

func finalized(rt *domain.RunningTransfer, transferID int64, status string, committed int64) *domain.FinalizedTransfer {
	return &domain.FinalizedTransfer{
		DebtorID:             rt.DebtorID,
		CreditorID:           domain.RootCreditorID,
		TransferID:           transferID,
		CoordinatorID:        rt.DebtorID,
		CoordinatorRequestID: rt.CoordinatorRequestID,
		CommittedAmount:      committed,
		StatusCode:           status,
	}
}

func TestTransferService_InitiateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	input := InitiateTransferInput{
		DebtorID:        debtorID,
		TransferUUID:    uuid.New(),
		TransferRequest: domain.TransferRequest{Recipient: "1", Amount: 1000, TransferNote: "note"},
	}

	rt, err := f.transfers.Initiate(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatePreparing, rt.State())

	_, err = f.transfers.Initiate(ctx, input)
	assert.ErrorIs(t, err, domain.ErrTransferExists)

	input.Amount = 2000
	_, err = f.transfers.Initiate(ctx, input)
	assert.ErrorIs(t, err, domain.ErrTransfersConflict)

	uuids, err := f.transfers.ListUUIDs(ctx, debtorID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{input.TransferUUID}, uuids)
	assert.Equal(t, int32(1), f.runningCount(t))

	var prepares int
	for _, msg := range f.outbox(t) {
		if msg.Kind == domain.KindPrepareTransfer {
			prepares++
		}
	}
	assert.Equal(t, 1, prepares)
}

func TestTransferService_InitiateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name    string
		input   InitiateTransferInput
		wantErr error
	}{
		{
			name:    "Zero amount",
			input:   InitiateTransferInput{DebtorID: debtorID, TransferUUID: uuid.New(), TransferRequest: domain.TransferRequest{Recipient: "1"}},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "Unknown debtor",
			input:   InitiateTransferInput{DebtorID: 5, TransferUUID: uuid.New(), TransferRequest: domain.TransferRequest{Recipient: "1", Amount: 1}},
			wantErr: domain.ErrDebtorDoesNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.transfers.Initiate(ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTransferService_RunningTransfersCap(t *testing.T) {
	f := newFixture(t)
	f.transfers.Limits.MaxRunningTransfers = 10

	for i := 0; i < 10; i++ {
		f.initiate(t, 100)
	}

	_, err := f.transfers.Initiate(context.Background(), InitiateTransferInput{
		DebtorID:        debtorID,
		TransferUUID:    uuid.New(),
		TransferRequest: domain.TransferRequest{Recipient: "1", Amount: 100},
	})
	assert.ErrorIs(t, err, domain.ErrTooManyRunningTransfers)
	assert.Equal(t, int32(10), f.runningCount(t))
}

func TestTransferService_ActionsCapResets(t *testing.T) {
	f := newFixture(t)
	f.transfers.Limits.MaxActionsPerMonth = 10

	for i := 0; i < 10; i++ {
		f.initiate(t, 100)
	}
	_, err := f.transfers.Initiate(context.Background(), InitiateTransferInput{
		DebtorID:        debtorID,
		TransferUUID:    uuid.New(),
		TransferRequest: domain.TransferRequest{Recipient: "1", Amount: 100},
	})
	assert.ErrorIs(t, err, domain.ErrTooManyManagementActions)

	f.transfers.Now = func() time.Time { return now.AddDate(0, 0, 31) }
	rt := f.initiate(t, 100)
	assert.NotNil(t, rt)

	d, err := f.debtors.Get(context.Background(), debtorID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), d.ActionsCount)
}

func TestTransferService_SuccessfulFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rt := f.initiate(t, 1000)

	require.NoError(t, f.transfers.ProcessPrepared(ctx, prepared(rt, 55)))

	signals := f.finalizeSignals(t)
	require.Len(t, signals, 1)
	assert.Equal(t, int64(1000), signals[0].CommittedAmount)
	assert.Equal(t, "test", signals[0].TransferNote)

	require.NoError(t, f.transfers.ProcessFinalized(ctx, finalized(rt, 55, domain.SCOK, 1000)))
	// Repeated delivery is a no-op.
	f.transfers.Now = func() time.Time { return now.Add(time.Hour) }
	require.NoError(t, f.transfers.ProcessFinalized(ctx, finalized(rt, 55, domain.SCOK, 1000)))

	got, err := f.transfers.Get(ctx, debtorID, rt.TransferUUID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateFinalizedOK, got.State())
	assert.Equal(t, now, *got.FinalizedAt)
	assert.Len(t, f.finalizeSignals(t), 1)

	require.NoError(t, f.transfers.Delete(ctx, debtorID, rt.TransferUUID))
	assert.Zero(t, f.runningCount(t))
	assert.ErrorIs(t, f.transfers.Delete(ctx, debtorID, rt.TransferUUID), domain.ErrTransferDoesNotExist)
}

func TestTransferService_CancellationRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	canceled := f.initiate(t, 1000)
	rt, err := f.transfers.Cancel(ctx, debtorID, canceled.TransferUUID)
	require.NoError(t, err)
	assert.Equal(t, domain.SCCanceledByTheSender, *rt.ErrorCode)

	// The late prepared transfer is dismissed.
	require.NoError(t, f.transfers.ProcessPrepared(ctx, prepared(canceled, 55)))
	signals := f.finalizeSignals(t)
	require.Len(t, signals, 1)
	assert.True(t, signals[0].IsDismissal())

	settled := f.initiate(t, 1000)
	require.NoError(t, f.transfers.ProcessPrepared(ctx, prepared(settled, 56)))
	_, err = f.transfers.Cancel(ctx, debtorID, settled.TransferUUID)
	assert.ErrorIs(t, err, domain.ErrForbiddenTransferCancellation)

	_, err = f.transfers.Cancel(ctx, debtorID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrTransferDoesNotExist)
}

func TestTransferService_ProcessPreparedDismissesSecondClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rt := f.initiate(t, 1000)

	require.NoError(t, f.transfers.ProcessPrepared(ctx, prepared(rt, 55)))
	require.NoError(t, f.transfers.ProcessPrepared(ctx, prepared(rt, 77)))
	require.NoError(t, f.transfers.ProcessPrepared(ctx, prepared(rt, 55)))

	signals := f.finalizeSignals(t)
	require.Len(t, signals, 3)
	assert.Equal(t, int64(1000), signals[0].CommittedAmount)
	assert.Equal(t, int64(77), signals[1].TransferID)
	assert.True(t, signals[1].IsDismissal())
	assert.Equal(t, int64(1000), signals[2].CommittedAmount)

	got, err := f.transfers.Get(ctx, debtorID, rt.TransferUUID)
	require.NoError(t, err)
	assert.Equal(t, int64(55), *got.TransferID)
}

func TestTransferService_ProcessRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rt := f.initiate(t, 1000)
	rejection := &domain.RejectedTransfer{
		CoordinatorID:        debtorID,
		CoordinatorRequestID: rt.CoordinatorRequestID,
		StatusCode:           "INSUFFICIENT_AVAILABLE_AMOUNT",
		TotalLockedAmount:    10,
		DebtorID:             debtorID,
		CreditorID:           domain.RootCreditorID,
	}

	require.NoError(t, f.transfers.ProcessRejected(ctx, rejection))
	require.NoError(t, f.transfers.ProcessRejected(ctx, rejection))
	require.NoError(t, f.transfers.ProcessRejected(ctx, &domain.RejectedTransfer{CoordinatorID: debtorID, CoordinatorRequestID: 9999}))

	got, err := f.transfers.Get(ctx, debtorID, rt.TransferUUID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateFinalizedError, got.State())
	assert.Equal(t, "INSUFFICIENT_AVAILABLE_AMOUNT", *got.ErrorCode)
	assert.Equal(t, int64(10), *got.TotalLockedAmount)
}

func TestTransferService_FlushFinalized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	old := f.initiate(t, 1000)
	_, err := f.transfers.Cancel(ctx, debtorID, old.TransferUUID)
	require.NoError(t, err)
	f.initiate(t, 1000)

	f.transfers.Now = func() time.Time { return now.Add(time.Hour) }
	recent := f.initiate(t, 1000)
	_, err = f.transfers.Cancel(ctx, debtorID, recent.TransferUUID)
	require.NoError(t, err)

	deleted, err := f.transfers.FlushFinalized(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, int32(2), f.runningCount(t))

	_, err = f.transfers.Get(ctx, debtorID, old.TransferUUID)
	assert.ErrorIs(t, err, domain.ErrTransferDoesNotExist)
}

func TestTransferService_DeactivationRemovesTransfers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rt := f.initiate(t, 1000)

	require.NoError(t, f.debtors.Deactivate(ctx, debtorID))

	_, err := f.transfers.Get(ctx, debtorID, rt.TransferUUID)
	assert.ErrorIs(t, err, domain.ErrTransferDoesNotExist)
	_, err = f.transfers.ListUUIDs(ctx, debtorID)
	assert.ErrorIs(t, err, domain.ErrDebtorDoesNotExist)
	assert.Zero(t, f.runningCount(t))
}
