package connect

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// UnaryFunc serves one unary method.
type UnaryFunc func(ctx context.Context, req *dynamicpb.Message) (proto.Message, error)

// StreamFunc serves one server-streaming method. Responses go out through
// stream.SendMsg.
type StreamFunc func(req *dynamicpb.Message, stream grpc.ServerStream) error

// Handlers binds method names to their implementation.
type Handlers struct {
	Unary  map[string]UnaryFunc
	Stream map[string]StreamFunc
}

// FullMethod is the gRPC path of a Connect method.
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

func service() protoreflect.ServiceDescriptor {
	return File.Services().ByName("Connect")
}

// ServiceDesc builds the grpc.ServiceDesc of Connect. Every method of the
// schema needs a handler of the matching kind.
func ServiceDesc(h Handlers) (*grpc.ServiceDesc, error) {
	sd := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Metadata:    FileName,
	}

	methods := service().Methods()
	for i := 0; i < methods.Len(); i++ {
		md := methods.Get(i)
		name := string(md.Name())

		if md.IsStreamingServer() {
			fn, ok := h.Stream[name]
			if !ok {
				return nil, fmt.Errorf("no stream handler for %s", name)
			}
			sd.Streams = append(sd.Streams, grpc.StreamDesc{
				StreamName:    name,
				Handler:       streamHandler(md, fn),
				ServerStreams: true,
			})
			continue
		}

		fn, ok := h.Unary[name]
		if !ok {
			return nil, fmt.Errorf("no unary handler for %s", name)
		}
		sd.Methods = append(sd.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    unaryHandler(md, fn),
		})
	}
	return sd, nil
}

func unaryHandler(md protoreflect.MethodDescriptor, fn UnaryFunc) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	full := FullMethod(string(md.Name()))
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := dynamicpb.NewMessage(md.Input())
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return fn(ctx, req.(*dynamicpb.Message))
		})
	}
}

func streamHandler(md protoreflect.MethodDescriptor, fn StreamFunc) grpc.StreamHandler {
	return func(_ any, stream grpc.ServerStream) error {
		in := dynamicpb.NewMessage(md.Input())
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return fn(in, stream)
	}
}

// Client calls Connect methods with dynamic messages.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) method(name string) (protoreflect.MethodDescriptor, error) {
	md := service().Methods().ByName(protoreflect.Name(name))
	if md == nil {
		return nil, fmt.Errorf("unknown method %s", name)
	}
	return md, nil
}

// Call invokes a unary method. A nil req sends the empty input message.
func (c *Client) Call(ctx context.Context, name string, req proto.Message, opts ...grpc.CallOption) (*dynamicpb.Message, error) {
	md, err := c.method(name)
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = dynamicpb.NewMessage(md.Input())
	}
	out := dynamicpb.NewMessage(md.Output())
	if err := c.cc.Invoke(ctx, FullMethod(name), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch opens a server-streaming method.
func (c *Client) Watch(ctx context.Context, name string, req proto.Message, opts ...grpc.CallOption) (*Watch, error) {
	md, err := c.method(name)
	if err != nil {
		return nil, err
	}
	desc := &grpc.StreamDesc{StreamName: name, ServerStreams: true}
	cs, err := c.cc.NewStream(ctx, desc, FullMethod(name), opts...)
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(req); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &Watch{stream: cs, output: md.Output()}, nil
}

// Watch is the receiving side of a server stream.
type Watch struct {
	stream grpc.ClientStream
	output protoreflect.MessageDescriptor
}

// Recv blocks for the next event; io.EOF ends a clean stream.
func (w *Watch) Recv() (*dynamicpb.Message, error) {
	out := dynamicpb.NewMessage(w.output)
	if err := w.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}
