// Package bus implements the Event Bus (C3): topic-addressed pub/sub with
// per-subscriber bounded queues, backpressure, retry and dead-lettering, a
// remote transport (Kafka) attempted on every publish with a Redis fallback,
// and replay for tests.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel/internal/events"
	"sentinel/internal/observability"
)

// Handler processes one delivered event. A non-nil error triggers the bus's
// retry/dead-letter policy.
type Handler func(ctx context.Context, evt events.Event) error

// Subscription is the handle returned by Subscribe; Unsubscribe is
// idempotent.
type Subscription struct {
	id      uint64
	topic   events.Topic
	name    string
	handler Handler
}

// RemoteTransport is the minimal interface the bus needs from a managed
// event bus: publish a batch, report per-event success/failure.
type RemoteTransport interface {
	PutEvents(ctx context.Context, evts []events.Event) error
}

// FallbackTransport is attempted when RemoteTransport exhausts its own retry
// budget. Idempotence of delivery is the receiver's responsibility.
type FallbackTransport interface {
	Publish(ctx context.Context, topic events.Topic, payloadJSON []byte) error
}

// retryDelays is the fixed backoff schedule between redelivery attempts; the
// event dead-letters after the third attempt.
var retryDelays = []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second}

const maxAttempts = 3

// Bus is the handle C4 handlers and C5 construct subscriptions against.
type Bus struct {
	queueDepth           int
	backpressureDeadline time.Duration

	remote   RemoteTransport
	fallback FallbackTransport

	mu          sync.RWMutex
	subsByTopic map[events.Topic][]*subscriberWorker
	nextID      uint64
	accepting   bool

	history   *history
	deadLetter *DeadLetterStore

	wg sync.WaitGroup
}

// Config carries the resource limits from the single config record.
type Config struct {
	QueueDepth                int
	PublishBackpressureDeadline time.Duration
	DeadLetterCapacity        int
}

// New constructs a Bus. remote/fallback may be nil, in which case publish
// only delivers to local subscribers (used in tests).
func New(cfg Config, remote RemoteTransport, fallback FallbackTransport) *Bus {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 1024
	}
	if cfg.PublishBackpressureDeadline <= 0 {
		cfg.PublishBackpressureDeadline = 2 * time.Second
	}
	return &Bus{
		queueDepth:           cfg.QueueDepth,
		backpressureDeadline: cfg.PublishBackpressureDeadline,
		remote:               remote,
		fallback:             fallback,
		subsByTopic:          make(map[events.Topic][]*subscriberWorker),
		history:              newHistory(),
		deadLetter:           NewDeadLetterStore(cfg.DeadLetterCapacity),
		accepting:            true,
	}
}

// Subscribe registers handler under name for topic. Applies only to events
// published after this call returns: the worker attaches before Subscribe
// unlocks the subscriber table.
func (b *Bus) Subscribe(topic events.Topic, name string, handler Handler) (*Subscription, error) {
	if !topic.Valid() {
		return nil, events.ErrUnknownTopic
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{id: b.nextID, topic: topic, name: name, handler: handler}
	worker := newSubscriberWorker(b, sub)
	b.subsByTopic[topic] = append(b.subsByTopic[topic], worker)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		worker.run()
	}()

	return sub, nil
}

// Unsubscribe stops delivery to sub's worker. Idempotent.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	workers := b.subsByTopic[sub.topic]
	for i, w := range workers {
		if w.sub.id == sub.id {
			w.stop()
			b.subsByTopic[sub.topic] = append(workers[:i], workers[i+1:]...)
			return
		}
	}
}

// RejectedError distinguishes Publish failures the caller must decide how to
// handle from ordinary errors.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return "rejected: " + e.Reason }

// Publish validates evt, enqueues it to every local subscriber of its topic,
// then attempts remote transport with fallback to the secondary transport
// per the transport-selection order. Local delivery is never blocked by
// remote/fallback failures.
func (b *Bus) Publish(ctx context.Context, evt events.Event) error {
	if !evt.EventType.Valid() {
		return &RejectedError{Reason: "unknown_type"}
	}

	b.mu.RLock()
	accepting := b.accepting
	workers := append([]*subscriberWorker(nil), b.subsByTopic[evt.EventType]...)
	b.mu.RUnlock()

	if !accepting {
		return &RejectedError{Reason: "shutting_down"}
	}

	b.history.record(evt)

	deadline := time.Now().Add(b.backpressureDeadline)
	for _, w := range workers {
		if err := w.enqueue(ctx, evt, deadline); err != nil {
			return err
		}
	}

	b.publishRemoteWithFallback(ctx, evt)
	return nil
}

func (b *Bus) publishRemoteWithFallback(ctx context.Context, evt events.Event) {
	log := observability.WithTrace(ctx)
	if b.remote != nil {
		if err := b.remote.PutEvents(ctx, []events.Event{evt}); err == nil {
			return
		} else {
			log.Warn().Err(err).Str("event_type", string(evt.EventType)).Msg("bus_remote_publish_failed")
		}
	}
	if b.fallback != nil {
		raw, err := evt.MarshalJSON()
		if err != nil {
			log.Error().Err(err).Msg("bus_fallback_marshal_failed")
			return
		}
		if err := b.fallback.Publish(ctx, evt.EventType, raw); err != nil {
			log.Error().Err(err).Str("event_type", string(evt.EventType)).Msg("bus_fallback_publish_failed")
		}
	}
}

// Replay re-emits events published to topic since sinceTimestamp (Unix
// millis) to every current subscriber of topic. Handler idempotence makes
// this safe to call repeatedly.
func (b *Bus) Replay(ctx context.Context, topic events.Topic, sinceUnixMilli int64) error {
	past := b.history.since(topic, sinceUnixMilli)

	b.mu.RLock()
	workers := append([]*subscriberWorker(nil), b.subsByTopic[topic]...)
	b.mu.RUnlock()

	for _, evt := range past {
		deadline := time.Now().Add(b.backpressureDeadline)
		for _, w := range workers {
			if err := w.enqueue(ctx, evt, deadline); err != nil {
				return fmt.Errorf("bus: replay enqueue failed: %w", err)
			}
		}
	}
	return nil
}

// DeadLetter returns the dead-letter store for inspection (tests, operators).
func (b *Bus) DeadLetter() *DeadLetterStore { return b.deadLetter }

// Shutdown stops accepting publishes, drains each subscriber queue up to
// grace, persists the dead-letter contents if path is non-empty, then
// returns. In-flight handler calls are given their own deadline; anything
// still running at grace-end is logged as orphaned.
func (b *Bus) Shutdown(ctx context.Context, grace time.Duration, deadLetterFilePath string) error {
	b.mu.Lock()
	b.accepting = false
	workers := make([]*subscriberWorker, 0)
	for _, ws := range b.subsByTopic {
		workers = append(workers, ws...)
	}
	b.mu.Unlock()

	for _, w := range workers {
		w.drain()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		observability.WithTrace(ctx).Warn().Msg("bus_shutdown_grace_exceeded_orphaned_workers")
	}

	if deadLetterFilePath != "" {
		if err := b.deadLetter.PersistToFile(deadLetterFilePath); err != nil {
			return fmt.Errorf("bus: persist dead letter: %w", err)
		}
	}
	return nil
}
