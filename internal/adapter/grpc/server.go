package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/epandurski/swpt-debtors/internal/domain"
	"github.com/epandurski/swpt-debtors/internal/usecase/debtor"
	"github.com/epandurski/swpt-debtors/internal/usecase/transfer"
)

// SignalDeliverer processes inbound signals
type SignalDeliverer interface {
	Deliver(ctx context.Context, kind domain.SignalKind, payload []byte) error
}

// Server implements the DebtorsServer gRPC API
type Server struct {
	Signals         SignalDeliverer
	DebtorService   *debtor.DebtorService
	TransferService *transfer.TransferService
}

// NewServer creates a new gRPC server instance
func NewServer(
	signals SignalDeliverer,
	debtorService *debtor.DebtorService,
	transferService *transfer.TransferService,
) *Server {
	return &Server{
		Signals:         signals,
		DebtorService:   debtorService,
		TransferService: transferService,
	}
}

// Deliver handles the Deliver RPC
func (s *Server) Deliver(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in deliverRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	if in.Kind == "" || len(in.Payload) == 0 {
		return nil, status.Error(codes.InvalidArgument, "kind and payload are required")
	}

	if err := s.Signals.Deliver(ctx, in.Kind, in.Payload); err != nil {
		return nil, mapError(err)
	}
	return &structpb.Struct{}, nil
}

// ReserveDebtor handles the ReserveDebtor RPC
func (s *Server) ReserveDebtor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in reserveDebtorRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	// Generate a debtor ID when none is given
	var debtorID int64
	if in.DebtorID != nil {
		debtorID = *in.DebtorID
	} else {
		id, err := s.DebtorService.GenerateDebtorID(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		debtorID = id
	}

	d, err := s.DebtorService.Reserve(ctx, debtorID)
	if err != nil {
		return nil, mapError(err)
	}
	return encodeResponse(debtorToResponse(d))
}

// ActivateDebtor handles the ActivateDebtor RPC
func (s *Server) ActivateDebtor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in activateDebtorRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	d, err := s.DebtorService.Activate(ctx, in.DebtorID, in.ReservationID)
	if err != nil {
		return nil, mapError(err)
	}
	return encodeResponse(debtorToResponse(d))
}

// DeactivateDebtor handles the DeactivateDebtor RPC
func (s *Server) DeactivateDebtor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in debtorRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	if err := s.DebtorService.Deactivate(ctx, in.DebtorID); err != nil {
		return nil, mapError(err)
	}
	return &structpb.Struct{}, nil
}

// GetDebtor handles the GetDebtor RPC
func (s *Server) GetDebtor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in debtorRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	d, err := s.DebtorService.Get(ctx, in.DebtorID)
	if err != nil {
		return nil, mapError(err)
	}
	return encodeResponse(debtorToResponse(d))
}

// UpdatePolicy handles the UpdatePolicy RPC
func (s *Server) UpdatePolicy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in updatePolicyRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	input := debtor.UpdatePolicyInput{
		DebtorID: in.DebtorID,
		PolicyUpdate: domain.PolicyUpdate{
			InterestRateTarget:      in.InterestRateTarget,
			InterestRateLowerLimits: messagesToLowerLimits(in.InterestRateLowerLimits),
			BalanceLowerLimits:      messagesToLowerLimits(in.BalanceLowerLimits),
		},
	}

	d, err := s.DebtorService.UpdatePolicy(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}
	return encodeResponse(debtorToResponse(d))
}

// UpdateConfig handles the UpdateConfig RPC
func (s *Server) UpdateConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in updateConfigRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	input := debtor.UpdateConfigInput{
		DebtorID:           in.DebtorID,
		ConfigData:         in.ConfigData,
		LatestUpdateID:     in.LatestUpdateID,
		MaxActionsPerMonth: in.MaxActionsPerMonth,
	}

	d, err := s.DebtorService.UpdateConfig(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}
	return encodeResponse(debtorToResponse(d))
}

// ListDebtorIds handles the ListDebtorIds RPC
func (s *Server) ListDebtorIds(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listDebtorIDsRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	ids, next, err := s.DebtorService.ListDebtorIDs(ctx, in.StartFrom, in.Count)
	if err != nil {
		return nil, mapError(err)
	}
	return encodeResponse(&listDebtorIDsResponse{Items: formatIDs(ids), Next: next})
}

// InitiateTransfer handles the InitiateTransfer RPC
func (s *Server) InitiateTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in initiateTransferRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	input := transfer.InitiateTransferInput{
		DebtorID:     in.DebtorID,
		TransferUUID: in.TransferUUID,
		TransferRequest: domain.TransferRequest{
			Recipient:          in.Recipient,
			Amount:             in.Amount,
			TransferNoteFormat: in.TransferNoteFormat,
			TransferNote:       in.TransferNote,
		},
	}

	rt, err := s.TransferService.Initiate(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}
	return encodeResponse(transferToResponse(rt))
}

// GetTransfer handles the GetTransfer RPC
func (s *Server) GetTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in transferRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	rt, err := s.TransferService.Get(ctx, in.DebtorID, in.TransferUUID)
	if err != nil {
		return nil, mapError(err)
	}
	return encodeResponse(transferToResponse(rt))
}

// ListTransfers handles the ListTransfers RPC
func (s *Server) ListTransfers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in debtorRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	uuids, err := s.TransferService.ListUUIDs(ctx, in.DebtorID)
	if err != nil {
		return nil, mapError(err)
	}
	return encodeResponse(&listTransfersResponse{TransferUUIDs: uuids})
}

// CancelTransfer handles the CancelTransfer RPC
func (s *Server) CancelTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in transferRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	rt, err := s.TransferService.Cancel(ctx, in.DebtorID, in.TransferUUID)
	if err != nil {
		return nil, mapError(err)
	}
	return encodeResponse(transferToResponse(rt))
}

// DeleteTransfer handles the DeleteTransfer RPC
func (s *Server) DeleteTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in transferRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	if err := s.TransferService.Delete(ctx, in.DebtorID, in.TransferUUID); err != nil {
		return nil, mapError(err)
	}
	return &structpb.Struct{}, nil
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidReservationID),
		errors.Is(err, domain.ErrInvalidDebtor):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrDebtorDoesNotExist),
		errors.Is(err, domain.ErrTransferDoesNotExist):
		code = codes.NotFound
	case errors.Is(err, domain.ErrDebtorExists),
		errors.Is(err, domain.ErrTransferExists),
		errors.Is(err, domain.ErrAlreadyUpToDate):
		code = codes.AlreadyExists
	case errors.Is(err, domain.ErrTransfersConflict),
		errors.Is(err, domain.ErrConflictingPolicy),
		errors.Is(err, domain.ErrForbiddenTransferCancellation):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrUpdateConflict):
		code = codes.Aborted
	case errors.Is(err, domain.ErrTooManyManagementActions),
		errors.Is(err, domain.ErrTooManyRunningTransfers),
		errors.Is(err, domain.ErrTooManySavedDocuments):
		code = codes.ResourceExhausted
	case errors.Is(err, domain.ErrMisconfiguredNode):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}

	return status.Errorf(code, "%s", err.Error())
}

var _ DebtorsServer = (*Server)(nil)
