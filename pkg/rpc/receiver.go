// Package rpc hand-builds the grpc.ServiceDesc for the span ingestion
// service described in the design, rather than generating it from a
// .proto file — no .proto/.pb.go exists anywhere in this repo's
// reference material for this domain, and fabricating one was out of
// scope. The wire codec (pkg/wire) lets ordinary Go structs cross grpc
// without protoc-generated message types.
package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/beaconhq/pulse/pkg/span"
	"github.com/beaconhq/pulse/pkg/wire"
)

// ReceiverServer is implemented by pkg/receiver's unary/streaming server.
type ReceiverServer interface {
	// PushSpan accepts one span over the unary RPC.
	PushSpan(ctx context.Context, s *span.Span) (*wire.Ack, error)
	// PushSpans accepts a stream of spans, periodically acknowledging.
	PushSpans(stream Receiver_PushSpansServer) error
}

// Receiver_PushSpansServer is the server-side streaming handle, the
// hand-written equivalent of what protoc would otherwise generate.
type Receiver_PushSpansServer interface {
	Send(*wire.Ack) error
	Recv() (*span.Span, error)
	grpc.ServerStream
}

type pushSpansServer struct {
	grpc.ServerStream
}

func (x *pushSpansServer) Send(ack *wire.Ack) error {
	return x.ServerStream.SendMsg(ack)
}

func (x *pushSpansServer) Recv() (*span.Span, error) {
	m := new(span.Span)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func receiverPushSpanHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(span.Span)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReceiverServer).PushSpan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pulse.Receiver/PushSpan"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReceiverServer).PushSpan(ctx, req.(*span.Span))
	}
	return interceptor(ctx, in, info, handler)
}

func receiverPushSpansHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ReceiverServer).PushSpans(&pushSpansServer{stream})
}

// ServiceDesc is registered against a *grpc.Server via
// (*grpc.Server).RegisterService(&ServiceDesc, impl).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "pulse.Receiver",
	HandlerType: (*ReceiverServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PushSpan", Handler: receiverPushSpanHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "PushSpans", Handler: receiverPushSpansHandler, ServerStreams: true, ClientStreams: true},
	},
	Metadata: "pulse/receiver",
}
