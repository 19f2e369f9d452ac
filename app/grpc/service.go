package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "taskguard.v1.LockAdmin"

	isAlreadyRunningMethod = "/" + ServiceName + "/IsAlreadyRunning"
	resetLockMethod        = "/" + ServiceName + "/ResetLock"
)

// LockAdminServer is implemented by the lock administration service.
type LockAdminServer interface {
	IsAlreadyRunning(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error)
	ResetLock(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
}

// RegisterLockAdminServer attaches srv to a gRPC server.
func RegisterLockAdminServer(registrar grpc.ServiceRegistrar, srv LockAdminServer) {
	registrar.RegisterService(&LockAdminServiceDesc, srv)
}

// LockAdminServiceDesc describes the service using well-known message types only.
var LockAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LockAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IsAlreadyRunning", Handler: isAlreadyRunningHandler},
		{MethodName: "ResetLock", Handler: resetLockHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "taskguard/v1/lock_admin.proto",
}

func isAlreadyRunningHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LockAdminServer).IsAlreadyRunning(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: isAlreadyRunningMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LockAdminServer).IsAlreadyRunning(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func resetLockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LockAdminServer).ResetLock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: resetLockMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LockAdminServer).ResetLock(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// LockAdminClient calls the lock administration service.
type LockAdminClient struct {
	cc grpc.ClientConnInterface
}

func NewLockAdminClient(cc grpc.ClientConnInterface) *LockAdminClient {
	return &LockAdminClient{cc: cc}
}

func (c *LockAdminClient) IsAlreadyRunning(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, isAlreadyRunningMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LockAdminClient) ResetLock(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, resetLockMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
