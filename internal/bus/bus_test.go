package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/events"
)

func mustEvent(t *testing.T, topic events.Topic, correlationID string) events.Event {
	t.Helper()
	var payload events.Payload
	if topic == events.TopicTransactionCreated {
		payload = events.TransactionCreated{TransactionID: "t-1", Amount: decimal.NewFromInt(100), Currency: "AUD"}
	}
	evt, err := events.New(topic, correlationID, "test", payload)
	require.NoError(t, err)
	return evt
}

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	b := New(Config{QueueDepth: 8, PublishBackpressureDeadline: time.Second}, nil, nil)

	var received atomic.Int32
	done := make(chan struct{})
	_, err := b.Subscribe(events.TopicTransactionCreated, "counter", func(ctx context.Context, evt events.Event) error {
		received.Add(1)
		close(done)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), mustEvent(t, events.TopicTransactionCreated, "c-1")))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}
	assert.Equal(t, int32(1), received.Load())
}

func TestBus_PublishRejectsUnknownTopic(t *testing.T) {
	b := New(Config{}, nil, nil)
	err := b.Publish(context.Background(), events.Event{EventType: events.Topic("bogus")})
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "unknown_type", rejected.Reason)
}

func TestBus_RetriesThenDeadLetters(t *testing.T) {
	b := New(Config{QueueDepth: 8, PublishBackpressureDeadline: time.Second}, nil, nil)
	// Swap in 10ms retry delays (restored on exit) so the three attempts and
	// the dead-letter complete quickly.
	orig := retryDelays
	retryDelays = []time.Duration{10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond}
	defer func() { retryDelays = orig }()

	var calls atomic.Int32
	_, err := b.Subscribe(events.TopicTransactionCreated, "always-fails", func(ctx context.Context, evt events.Event) error {
		calls.Add(1)
		return errors.New("boom")
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), mustEvent(t, events.TopicTransactionCreated, "c-2")))

	require.Eventually(t, func() bool {
		return len(b.DeadLetter().List(events.TopicTransactionCreated)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(3), calls.Load())
	entries := b.DeadLetter().List(events.TopicTransactionCreated)
	assert.GreaterOrEqual(t, entries[0].Event.Attempt, 3)
}

func TestBus_FanOutToMultipleSubscribers(t *testing.T) {
	b := New(Config{QueueDepth: 8, PublishBackpressureDeadline: time.Second}, nil, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		_, err := b.Subscribe(events.TopicTransactionCreated, "sub", func(ctx context.Context, evt events.Event) error {
			wg.Done()
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, b.Publish(context.Background(), mustEvent(t, events.TopicTransactionCreated, "c-3")))

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("not all subscribers received the event")
	}
}

func TestBus_Replay(t *testing.T) {
	b := New(Config{QueueDepth: 8, PublishBackpressureDeadline: time.Second}, nil, nil)
	require.NoError(t, b.Publish(context.Background(), mustEvent(t, events.TopicTransactionCreated, "c-4")))

	var received atomic.Int32
	done := make(chan struct{})
	_, err := b.Subscribe(events.TopicTransactionCreated, "late-subscriber", func(ctx context.Context, evt events.Event) error {
		received.Add(1)
		close(done)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Replay(context.Background(), events.TopicTransactionCreated, 0))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("replay never delivered")
	}
	assert.Equal(t, int32(1), received.Load())
}
