package controller_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/controller"
	"github.com/beaconhq/pulse/pkg/span"
	"github.com/beaconhq/pulse/pkg/store"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Receiver.GRPCAddr = "127.0.0.1:0"
	cfg.Receiver.DatagramAddr = "127.0.0.1:0"
	cfg.Persister.BatchSize = 2
	cfg.Persister.BatchTimeoutMS = 20
	cfg.Pipeline.QueueDepthReceiver = 16
	cfg.Pipeline.QueueDepthPersister = 16
	cfg.Pipeline.CostWorkers = 2
	return cfg
}

func validSpan() *span.Span {
	start := time.Now().UTC()
	end := start.Add(time.Second)
	return &span.Span{
		SpanID:    span.NewID(),
		TraceID:   span.NewID(),
		Service:   "agent-api",
		Name:      "plan_task",
		Kind:      config.SpanKindAgentStep,
		Status:    config.SpanStatusOK,
		StartTime: start,
		EndTime:   &end,
	}
}

func TestAcceptedSpanReachesStoreAndAggregator(t *testing.T) {
	mem := store.NewMemStore()
	c := controller.New(testConfig(), mem)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Shutdown(context.Background())

	s := validSpan()
	require.NoError(t, c.Accept(ctx, s))

	require.Eventually(t, func() bool {
		_, ok := mem.Get(s.SpanID)
		return ok
	}, 2*time.Second, 10*time.Millisecond, "span should reach the store via the persister")

	health := c.Health()
	assert.False(t, health.Degraded)
}

func TestInvalidSpanIsCountedAndDropped(t *testing.T) {
	mem := store.NewMemStore()
	c := controller.New(testConfig(), mem)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Shutdown(context.Background())

	bad := validSpan()
	bad.Kind = "not_a_real_kind"
	require.NoError(t, c.Accept(ctx, bad))

	require.Eventually(t, func() bool {
		return c.Health().RejectionCounts["UnknownKind"] > 0
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := mem.Get(bad.SpanID)
	assert.False(t, ok, "a rejected span must never reach the store")
}

func TestOverloadedQueueReturnsOverloadedError(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.QueueDepthReceiver = 1
	mem := store.NewMemStore()
	c := controller.New(cfg, mem)

	// Fill the ingest queue without starting workers to drain it.
	ctx := context.Background()
	require.NoError(t, c.Accept(ctx, validSpan()))
	err := c.Accept(ctx, validSpan())
	require.Error(t, err)
}

func TestShutdownDrainsBufferedSpansBeforeReturning(t *testing.T) {
	mem := store.NewMemStore()
	c := controller.New(testConfig(), mem)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	var wg sync.WaitGroup
	spans := make([]*span.Span, 5)
	for i := range spans {
		spans[i] = validSpan()
		wg.Add(1)
		go func(s *span.Span) {
			defer wg.Done()
			_ = c.Accept(ctx, s)
		}(spans[i])
	}
	wg.Wait()

	c.Shutdown(context.Background())

	for _, s := range spans {
		_, ok := mem.Get(s.SpanID)
		assert.True(t, ok, "every accepted span should be flushed before shutdown returns")
	}
}
