package handlers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/bus"
	"sentinel/internal/events"
)

func TestHarness_SkipsDuplicateFirstAttempt(t *testing.T) {
	b := bus.New(bus.Config{QueueDepth: 8, PublishBackpressureDeadline: time.Second}, nil, nil)
	h := NewHarness(b, time.Second, 100, time.Minute)

	var calls atomic.Int32
	fn := func(ctx context.Context, evt events.Event) ([]events.Event, error) {
		calls.Add(1)
		return nil, nil
	}

	msg := events.LogLine{SourceComponent: "x", Body: "no pii here"}
	evt, err := events.New(events.TopicLogLine, "c-1", "test", msg)
	require.NoError(t, err)

	wrapped := h.Wrap("test_handler", fn)
	require.NoError(t, wrapped(context.Background(), evt))
	require.NoError(t, wrapped(context.Background(), evt))

	assert.Equal(t, int32(1), calls.Load())
}

func TestHarness_PublishesEmittedEvents(t *testing.T) {
	b := bus.New(bus.Config{QueueDepth: 8, PublishBackpressureDeadline: time.Second}, nil, nil)
	h := NewHarness(b, time.Second, 100, time.Minute)

	received := make(chan events.Event, 1)
	_, err := b.Subscribe(events.TopicOpsAction, "downstream", func(ctx context.Context, evt events.Event) error {
		received <- evt
		return nil
	})
	require.NoError(t, err)

	fn := func(ctx context.Context, evt events.Event) ([]events.Event, error) {
		out, err := events.New(events.TopicOpsAction, evt.CorrelationID, "test", events.OpsAction{TransactionID: "t-1", Intent: "noop"})
		return []events.Event{out}, err
	}

	msg := events.LogLine{SourceComponent: "x", Body: "no pii here"}
	evt, err := events.New(events.TopicLogLine, "c-2", "test", msg)
	require.NoError(t, err)

	wrapped := h.Wrap("emitter", fn)
	require.NoError(t, wrapped(context.Background(), evt))

	select {
	case got := <-received:
		assert.Equal(t, "c-2", got.CorrelationID)
	case <-time.After(2 * time.Second):
		t.Fatal("downstream never received emitted event")
	}
}

func TestHarness_ReturnsErrorOnHandlerFailure(t *testing.T) {
	b := bus.New(bus.Config{QueueDepth: 8, PublishBackpressureDeadline: time.Second}, nil, nil)
	h := NewHarness(b, time.Second, 100, time.Minute)

	fn := func(ctx context.Context, evt events.Event) ([]events.Event, error) {
		return nil, errors.New("boom")
	}

	msg := events.LogLine{SourceComponent: "x", Body: "no pii here"}
	evt, err := events.New(events.TopicLogLine, "c-3", "test", msg)
	require.NoError(t, err)

	wrapped := h.Wrap("failing", fn)
	err = wrapped(context.Background(), evt)
	assert.Error(t, err)
}
