package bus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconhq/pulse/pkg/bus"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := bus.NewInProc()
	ch, cancel := b.Subscribe("trace:abc")
	defer cancel()

	b.Publish("trace:abc", []byte("payload"))

	select {
	case got := <-ch:
		assert.Equal(t, []byte("payload"), got)
	case <-time.After(time.Second):
		t.Fatal("expected delivery")
	}
}

func TestPublishIsolatesSubjects(t *testing.T) {
	b := bus.NewInProc()
	spans, cancelSpans := b.Subscribe("channel:spans")
	defer cancelSpans()
	llm, cancelLLM := b.Subscribe("channel:llm")
	defer cancelLLM()

	b.Publish("channel:spans", []byte("a-span"))

	select {
	case got := <-spans:
		assert.Equal(t, []byte("a-span"), got)
	case <-time.After(time.Second):
		t.Fatal("expected delivery on subscribed subject")
	}

	select {
	case <-llm:
		t.Fatal("unexpected delivery on a different subject")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	b := bus.NewInProc()
	assert.NotPanics(t, func() {
		b.Publish("trace:nobody-listening", []byte("x"))
	})
}

func TestPublishDropsWhenSubscriberInboxFull(t *testing.T) {
	b := bus.NewInProc()
	ch, cancel := b.Subscribe("trace:lagging")
	defer cancel()

	// Flood well past the inbox capacity without ever draining ch; none of
	// this may block Publish, and the subscriber keeps the oldest messages
	// delivered rather than stalling the publisher.
	for i := 0; i < 1000; i++ {
		b.Publish("trace:lagging", []byte("x"))
	}

	assert.True(t, len(ch) > 0, "subscriber should retain what fit in its inbox")
}

func TestCancelUnregistersSubscriber(t *testing.T) {
	b := bus.NewInProc()
	ch, cancel := b.Subscribe("trace:abc")
	cancel()

	b.Publish("trace:abc", []byte("after-cancel"))

	_, open := <-ch
	assert.False(t, open, "channel should be closed once cancelled")
}

func TestMultipleSubscribersOnSameSubjectBothReceive(t *testing.T) {
	b := bus.NewInProc()
	chA, cancelA := b.Subscribe("trace:fanout")
	defer cancelA()
	chB, cancelB := b.Subscribe("trace:fanout")
	defer cancelB()

	b.Publish("trace:fanout", []byte("broadcast"))

	for _, ch := range []<-chan []byte{chA, chB} {
		select {
		case got := <-ch:
			assert.Equal(t, []byte("broadcast"), got)
		case <-time.After(time.Second):
			t.Fatal("expected both subscribers to receive")
		}
	}
}

func TestUnsubscribeOneLeavesOtherIntact(t *testing.T) {
	b := bus.NewInProc()
	chA, cancelA := b.Subscribe("trace:shared")
	chB, cancelB := b.Subscribe("trace:shared")
	defer cancelB()

	cancelA()
	_, open := <-chA
	require.False(t, open)

	b.Publish("trace:shared", []byte("still-here"))
	select {
	case got := <-chB:
		assert.Equal(t, []byte("still-here"), got)
	case <-time.After(time.Second):
		t.Fatal("remaining subscriber should still receive")
	}
}
