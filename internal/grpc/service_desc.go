package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the gateway service.
const ServiceName = "healthgw.v1.HealthGateway"

const (
	HealthGateway_Refresh_FullMethodName            = "/" + ServiceName + "/Refresh"
	HealthGateway_Latest_FullMethodName             = "/" + ServiceName + "/Latest"
	HealthGateway_Write_FullMethodName              = "/" + ServiceName + "/Write"
	HealthGateway_RequestPermissions_FullMethodName = "/" + ServiceName + "/RequestPermissions"
	HealthGateway_History_FullMethodName            = "/" + ServiceName + "/History"
	HealthGateway_Subscribe_FullMethodName          = "/" + ServiceName + "/Subscribe"
)

// HealthGatewayServer is the server API of the gateway service. Requests and
// responses are protobuf well-known types; the field layout of each Struct is
// documented on HealthGatewayService.
type HealthGatewayServer interface {
	Refresh(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Latest(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Write(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestPermissions(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	History(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Subscribe(*emptypb.Empty, HealthGateway_SubscribeServer) error
}

// HealthGateway_SubscribeServer is the server side of the event stream.
type HealthGateway_SubscribeServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type healthGatewaySubscribeServer struct {
	grpc.ServerStream
}

func (x *healthGatewaySubscribeServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterHealthGatewayServer registers srv on s.
func RegisterHealthGatewayServer(s grpc.ServiceRegistrar, srv HealthGatewayServer) {
	s.RegisterService(&HealthGateway_ServiceDesc, srv)
}

// HealthGateway_ServiceDesc describes the gateway service for grpc.Server.
var HealthGateway_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HealthGatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Refresh", Handler: unaryHandler(HealthGateway_Refresh_FullMethodName, HealthGatewayServer.Refresh)},
		{MethodName: "Latest", Handler: unaryHandler(HealthGateway_Latest_FullMethodName, HealthGatewayServer.Latest)},
		{MethodName: "Write", Handler: unaryHandler(HealthGateway_Write_FullMethodName, HealthGatewayServer.Write)},
		{MethodName: "RequestPermissions", Handler: unaryHandler(HealthGateway_RequestPermissions_FullMethodName, HealthGatewayServer.RequestPermissions)},
		{MethodName: "History", Handler: unaryHandler(HealthGateway_History_FullMethodName, HealthGatewayServer.History)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "healthgw/v1/health_gateway.proto",
}

// unaryHandler adapts a server method to grpc's method handler signature.
func unaryHandler[Req any, Resp any](
	fullMethod string,
	call func(HealthGatewayServer, context.Context, *Req) (Resp, error),
) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(HealthGatewayServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(s, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(HealthGatewayServer).Subscribe(m, &healthGatewaySubscribeServer{stream})
}

// HealthGatewayClient is the client API of the gateway service.
type HealthGatewayClient struct {
	cc grpc.ClientConnInterface
}

func NewHealthGatewayClient(cc grpc.ClientConnInterface) *HealthGatewayClient {
	return &HealthGatewayClient{cc: cc}
}

func (c *HealthGatewayClient) Refresh(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, HealthGateway_Refresh_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HealthGatewayClient) Latest(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, HealthGateway_Latest_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HealthGatewayClient) Write(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, HealthGateway_Write_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HealthGatewayClient) RequestPermissions(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, HealthGateway_RequestPermissions_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HealthGatewayClient) History(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, HealthGateway_History_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Subscribe opens the event stream.
func (c *HealthGatewayClient) Subscribe(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (HealthGateway_SubscribeClient, error) {
	stream, err := c.cc.NewStream(ctx, &HealthGateway_ServiceDesc.Streams[0], HealthGateway_Subscribe_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &healthGatewaySubscribeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// HealthGateway_SubscribeClient is the client side of the event stream.
type HealthGateway_SubscribeClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type healthGatewaySubscribeClient struct {
	grpc.ClientStream
}

func (x *healthGatewaySubscribeClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
