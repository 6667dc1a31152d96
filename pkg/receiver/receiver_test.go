package receiver_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/beaconhq/pulse/pkg/pulseerr"
	"github.com/beaconhq/pulse/pkg/receiver"
	"github.com/beaconhq/pulse/pkg/span"
	"github.com/beaconhq/pulse/pkg/wire"
)

type fakeSink struct {
	reject bool
}

func (f *fakeSink) Accept(ctx context.Context, s *span.Span) error {
	if f.reject {
		return pulseerr.New(pulseerr.Overloaded, "test", nil)
	}
	return nil
}

func TestPushSpanAcceptsAndCounts(t *testing.T) {
	counters := &receiver.Counters{}
	srv := receiver.New(&fakeSink{}, counters, time.Second)

	ack, err := srv.PushSpan(context.Background(), &span.Span{SpanID: span.NewID()})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), ack.Accepted)
	assert.Equal(t, int64(1), counters.UnaryAccepted.Load())
}

func TestPushSpanRejectsAndCounts(t *testing.T) {
	counters := &receiver.Counters{}
	srv := receiver.New(&fakeSink{reject: true}, counters, time.Second)

	ack, err := srv.PushSpan(context.Background(), &span.Span{SpanID: span.NewID()})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), ack.Rejected)
	assert.Equal(t, int64(1), counters.UnaryRejected.Load())
	assert.Equal(t, uint32(1), ack.Reasons[string(pulseerr.Overloaded)])
}

// fakeStream is a minimal rpc.Receiver_PushSpansServer double driving a
// scripted sequence of spans through PushSpans without a real grpc
// transport underneath.
type fakeStream struct {
	ctx   context.Context
	in    []*span.Span
	pos   int
	sent  []*wire.Ack
}

func (f *fakeStream) Send(ack *wire.Ack) error {
	f.sent = append(f.sent, ack)
	return nil
}

func (f *fakeStream) Recv() (*span.Span, error) {
	if f.pos >= len(f.in) {
		return nil, io.EOF
	}
	s := f.in[f.pos]
	f.pos++
	return s, nil
}

func (f *fakeStream) Context() context.Context { return f.ctx }

// The remaining grpc.ServerStream methods are unused by PushSpans.
func (f *fakeStream) SetHeader(_ metadata.MD) error  { return nil }
func (f *fakeStream) SendHeader(_ metadata.MD) error { return nil }
func (f *fakeStream) SetTrailer(_ metadata.MD)       {}
func (f *fakeStream) SendMsg(m any) error            { return nil }
func (f *fakeStream) RecvMsg(m any) error            { return nil }

func TestPushSpansAcksInBatches(t *testing.T) {
	spans := make([]*span.Span, 3)
	for i := range spans {
		spans[i] = &span.Span{SpanID: span.NewID()}
	}
	stream := &fakeStream{ctx: context.Background(), in: spans}

	counters := &receiver.Counters{}
	srv := receiver.New(&fakeSink{}, counters, time.Second)

	err := srv.PushSpans(stream)
	require.NoError(t, err)
	require.Len(t, stream.sent, 1, "a short stream flushes once on EOF")
	assert.Equal(t, uint32(3), stream.sent[0].Accepted)
	assert.Equal(t, int64(3), counters.StreamAccepted.Load())
}
