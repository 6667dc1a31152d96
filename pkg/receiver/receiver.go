// Package receiver implements C1, the ingress surfaces: a
// unary gRPC method, a bidi-streaming gRPC method, and a UDP datagram
// listener, all funneling into a single bounded Sink. A full sink
// returns pulseerr.Overloaded to the caller rather than blocking —
// receivers never buffer beyond the sink's own queue.
package receiver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"

	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/pulseerr"
	"github.com/beaconhq/pulse/pkg/rpc"
	"github.com/beaconhq/pulse/pkg/span"
	"github.com/beaconhq/pulse/pkg/wire"
)

// Sink is the controller's span intake. Implementations must return
// promptly — pulseerr.Overloaded when full — never block indefinitely.
type Sink interface {
	Accept(ctx context.Context, s *span.Span) error
}

// Counters tracks accepted/rejected/dropped spans per transport, the
// observable surface named in the design ("accepted/rejected per
// transport"). All three receiver types share one set so the controller
// can expose them on one health/metrics endpoint.
type Counters struct {
	UnaryAccepted    atomic.Int64
	UnaryRejected    atomic.Int64
	StreamAccepted   atomic.Int64
	StreamRejected   atomic.Int64
	DatagramAccepted atomic.Int64
	DatagramRejected atomic.Int64
	DatagramOversize atomic.Int64
}

// Server implements rpc.ReceiverServer over gRPC (unary + streaming) and
// separately runs the UDP datagram listener. One Server owns all three
// ingress surfaces for a process.
type Server struct {
	sink     Sink
	counters *Counters
	pushTO   time.Duration

	grpcServer *grpc.Server
	udpConn    *net.UDPConn
}

// New constructs a receiver Server. pushTimeout bounds how long a single
// Accept call is given before the receiver gives up on it (the design:
// "receiver push (1s default)").
func New(sink Sink, counters *Counters, pushTimeout time.Duration) *Server {
	return &Server{sink: sink, counters: counters, pushTO: pushTimeout}
}

// ServeGRPC starts a grpc.Server bound to addr and blocks until it stops.
// Call from its own goroutine; stop it via Shutdown.
func (s *Server) ServeGRPC(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.grpcServer = grpc.NewServer()
	s.grpcServer.RegisterService(&rpc.ServiceDesc, s)
	return s.grpcServer.Serve(lis)
}

// ServeDatagram starts the UDP datagram listener bound to addr and blocks
// reading frames until ctx is cancelled.
func (s *Server) ServeDatagram(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.udpConn = conn
	defer conn.Close() //nolint:errcheck

	go func() {
		<-ctx.Done()
		conn.Close() //nolint:errcheck
	}()

	buf := make([]byte, wire.MaxDatagramBytes+1)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("receiver: datagram read failed", "error", err)
			continue
		}
		s.handleDatagram(ctx, buf[:n])
	}
}

func (s *Server) handleDatagram(ctx context.Context, payload []byte) {
	if len(payload) > wire.MaxDatagramBytes {
		s.counters.DatagramOversize.Add(1)
		return
	}
	sp, err := wire.UnmarshalSpan(payload)
	if err != nil {
		s.counters.DatagramRejected.Add(1)
		slog.Debug("receiver: dropping malformed datagram", "error", err)
		return
	}
	sp.Transport = config.TransportDatagram

	cctx, cancel := context.WithTimeout(ctx, s.pushTO)
	defer cancel()
	if err := s.sink.Accept(cctx, sp); err != nil {
		s.counters.DatagramRejected.Add(1)
		return
	}
	s.counters.DatagramAccepted.Add(1)
}

// Shutdown stops accepting new connections on every ingress surface.
// Graceful drain of in-flight work is the controller's responsibility
// (this design's shutdown sequencing), not the receiver's.
func (s *Server) Shutdown() {
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if s.udpConn != nil {
		s.udpConn.Close() //nolint:errcheck
	}
}

// PushSpan implements rpc.ReceiverServer (the unary RPC).
func (s *Server) PushSpan(ctx context.Context, sp *span.Span) (*wire.Ack, error) {
	sp.Transport = config.TransportUnary
	cctx, cancel := context.WithTimeout(ctx, s.pushTO)
	defer cancel()

	ack := &wire.Ack{Reasons: map[string]uint32{}}
	if err := s.sink.Accept(cctx, sp); err != nil {
		s.counters.UnaryRejected.Add(1)
		ack.Rejected = 1
		ack.Reasons[reasonFor(err)] = 1
		return ack, nil
	}
	s.counters.UnaryAccepted.Add(1)
	ack.Accepted = 1
	return ack, nil
}

// PushSpans implements rpc.ReceiverServer (the streaming RPC). It reads
// spans until the client half-closes or errors, sending one
// acknowledgement frame per ackBatch spans received.
const ackBatch = 100

func (s *Server) PushSpans(stream rpc.Receiver_PushSpansServer) error {
	var accepted, rejected uint32
	reasons := map[string]uint32{}
	count := 0

	flush := func() error {
		if accepted == 0 && rejected == 0 {
			return nil
		}
		err := stream.Send(&wire.Ack{Accepted: accepted, Rejected: rejected, Reasons: reasons})
		accepted, rejected = 0, 0
		reasons = map[string]uint32{}
		return err
	}

	for {
		sp, err := stream.Recv()
		if err != nil {
			_ = flush()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		sp.Transport = config.TransportStreaming

		cctx, cancel := context.WithTimeout(stream.Context(), s.pushTO)
		acceptErr := s.sink.Accept(cctx, sp)
		cancel()

		if acceptErr != nil {
			rejected++
			reasons[reasonFor(acceptErr)]++
			s.counters.StreamRejected.Add(1)
		} else {
			accepted++
			s.counters.StreamAccepted.Add(1)
		}

		count++
		if count%ackBatch == 0 {
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

func reasonFor(err error) string {
	var pe *pulseerr.Error
	e := err
	for e != nil {
		if p, ok := e.(*pulseerr.Error); ok {
			pe = p
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	if pe != nil {
		return string(pe.Kind)
	}
	return "unknown"
}
