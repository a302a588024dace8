package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the debtors service
const ServiceName = "swpt.debtors.v1.Debtors"

// DeliverMethod is the full method name used to deliver signals
const DeliverMethod = "/" + ServiceName + "/Deliver"

// DebtorsServer is the server API of the debtors service. Requests and
// responses are JSON objects carried as google.protobuf.Struct.
type DebtorsServer interface {
	Deliver(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ReserveDebtor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ActivateDebtor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeactivateDebtor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetDebtor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdatePolicy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListDebtorIds(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	InitiateTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListTransfers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeleteTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterDebtorsServer registers srv on s
func RegisterDebtorsServer(s grpc.ServiceRegistrar, srv DebtorsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(srv DebtorsServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DebtorsServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DebtorsServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the debtors service for grpc.Server
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DebtorsServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Deliver", DebtorsServer.Deliver),
		unary("ReserveDebtor", DebtorsServer.ReserveDebtor),
		unary("ActivateDebtor", DebtorsServer.ActivateDebtor),
		unary("DeactivateDebtor", DebtorsServer.DeactivateDebtor),
		unary("GetDebtor", DebtorsServer.GetDebtor),
		unary("UpdatePolicy", DebtorsServer.UpdatePolicy),
		unary("UpdateConfig", DebtorsServer.UpdateConfig),
		unary("ListDebtorIds", DebtorsServer.ListDebtorIds),
		unary("InitiateTransfer", DebtorsServer.InitiateTransfer),
		unary("GetTransfer", DebtorsServer.GetTransfer),
		unary("ListTransfers", DebtorsServer.ListTransfers),
		unary("CancelTransfer", DebtorsServer.CancelTransfer),
		unary("DeleteTransfer", DebtorsServer.DeleteTransfer),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "swpt/debtors/v1/debtors.proto",
}
