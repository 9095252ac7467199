package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "oracle.v1.OracleControl"

// -----------------------------------------------------------------------------
// OracleControlServer is the control surface of a running oracle. Messages are
// protobuf well-known types so no generated code is needed on either side.
// -----------------------------------------------------------------------------

type OracleControlServer interface {
	RegisterPair(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	SubmitPrices(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPrice(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListPairs(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	ListPrices(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	GetSubmission(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetSchedule(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ReloadSchedule(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterOracleControlServer attaches srv to s.
func RegisterOracleControlServer(s grpc.ServiceRegistrar, srv OracleControlServer) {
	s.RegisterService(&OracleControl_ServiceDesc, srv)
}

// -----------------------------------------------------------------------------

// unary builds the method descriptor of one unary RPC.
func unary[Req, Resp any](name string, call func(OracleControlServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(OracleControlServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(OracleControlServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// OracleControl_ServiceDesc describes the service for grpc.Server.
var OracleControl_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OracleControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("RegisterPair", OracleControlServer.RegisterPair),
		unary("SubmitPrices", OracleControlServer.SubmitPrices),
		unary("GetPrice", OracleControlServer.GetPrice),
		unary("ListPairs", OracleControlServer.ListPairs),
		unary("ListPrices", OracleControlServer.ListPrices),
		unary("GetSubmission", OracleControlServer.GetSubmission),
		unary("GetStatus", OracleControlServer.GetStatus),
		unary("GetSchedule", OracleControlServer.GetSchedule),
		unary("ReloadSchedule", OracleControlServer.ReloadSchedule),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "oracle/v1/control.proto",
}
