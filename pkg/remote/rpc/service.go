package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/cuemby/dialog/pkg/storage"
)

// serviceName is the gRPC service's fully-qualified name, the same role
// proto's package.Service name plays for a generated stub.
const serviceName = "dialog.remote.Storage"

// Wire messages. These are plain CBOR-encodable structs standing in for
// what protoc would otherwise generate from a .proto file; field names
// are exported so cbor.Marshal can see them; storage's own exported
// types (Edition, Entry, Page) are nested directly rather than
// re-declared.

type getRequest struct{ Key string }
type getResponse struct {
	Value   []byte
	Edition storage.Edition
	Err     wireErr
}

type setRequest struct {
	Key   string
	Value []byte
}
type setResponse struct{ Edition storage.Edition }

type deleteRequest struct{ Key string }
type deleteResponse struct{}

type listRequest struct{ Prefix, Cursor string }
type listResponse struct{ Page storage.Page }

type resolveRequest struct{ Key string }
type resolveResponse struct {
	Edition storage.Edition
	Err     wireErr
}

type replaceRequest struct {
	Key   string
	When  storage.Edition
	Value []byte
}
type replaceResponse struct {
	Edition storage.Edition
	Err     wireErr
}

type readRequest struct{ Prefix string }
type readResponse struct{ Entry storage.Entry }

type writeRequest struct{ Entry storage.Entry }
type writeResponse struct{}

// backendServer is the handler interface Server implements and the
// generated-stub equivalent the ServiceDesc's method/stream handlers
// dispatch to.
type backendServer interface {
	Get(context.Context, *getRequest) (*getResponse, error)
	Set(context.Context, *setRequest) (*setResponse, error)
	Delete(context.Context, *deleteRequest) (*deleteResponse, error)
	List(context.Context, *listRequest) (*listResponse, error)
	Resolve(context.Context, *resolveRequest) (*resolveResponse, error)
	Replace(context.Context, *replaceRequest) (*replaceResponse, error)
	Read(*readRequest, grpc.ServerStream) error
	Write(grpc.ServerStream) error
}

func unaryHandler[Req, Resp any](method func(backendServer, context.Context, *Req) (*Resp, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		s := srv.(backendServer)
		if interceptor == nil {
			return method(s, ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return method(s, ctx, req.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

// serviceDesc is the hand-written stand-in for a protoc-generated
// ServiceDesc: one MethodDesc per unary RPC, one StreamDesc per
// client/server-streaming RPC, all dispatching through the backendServer
// interface instead of generated request/response wrapper types.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*backendServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: unaryHandler((backendServer).Get)},
		{MethodName: "Set", Handler: unaryHandler((backendServer).Set)},
		{MethodName: "Delete", Handler: unaryHandler((backendServer).Delete)},
		{MethodName: "List", Handler: unaryHandler((backendServer).List)},
		{MethodName: "Resolve", Handler: unaryHandler((backendServer).Resolve)},
		{MethodName: "Replace", Handler: unaryHandler((backendServer).Replace)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "Read",
			Handler: func(srv interface{}, stream grpc.ServerStream) error {
				req := new(readRequest)
				if err := stream.RecvMsg(req); err != nil {
					return err
				}
				return srv.(backendServer).Read(req, stream)
			},
			ServerStreams: true,
		},
		{
			StreamName: "Write",
			Handler: func(srv interface{}, stream grpc.ServerStream) error {
				return srv.(backendServer).Write(stream)
			},
			ClientStreams: true,
		},
	},
	Metadata: "dialog/remote/rpc",
}
