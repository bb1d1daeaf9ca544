package bus

import (
	"context"
	"time"

	"sentinel/internal/events"
	"sentinel/internal/observability"
)

// subscriberWorker owns the single logical worker for one (topic,
// subscriber) pair: a bounded queue, dequeued and invoked sequentially so
// delivery is FIFO within the pair while different pairs run concurrently.
type subscriberWorker struct {
	bus   *Bus
	sub   *Subscription
	queue chan queuedEvent
	stopC chan struct{}
	doneC chan struct{}
}

type queuedEvent struct {
	evt     events.Event
	enqAt   time.Time
}

func newSubscriberWorker(b *Bus, sub *Subscription) *subscriberWorker {
	return &subscriberWorker{
		bus:   b,
		sub:   sub,
		queue: make(chan queuedEvent, b.queueDepth),
		stopC: make(chan struct{}),
		doneC: make(chan struct{}),
	}
}

// enqueue blocks up to deadline when the queue is full, per the
// configurable backpressure policy. Exceeding the deadline fails the
// publish with Rejected(backpressure); the caller decides what to do next.
func (w *subscriberWorker) enqueue(ctx context.Context, evt events.Event, deadline time.Time) error {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case w.queue <- queuedEvent{evt: evt, enqAt: time.Now()}:
		return nil
	case <-timer.C:
		return &RejectedError{Reason: "backpressure"}
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stopC:
		return &RejectedError{Reason: "subscriber_stopped"}
	}
}

func (w *subscriberWorker) stop() {
	close(w.stopC)
}

// drain lets the worker finish whatever is currently queued, then exits;
// called from Bus.Shutdown before waiting on the grace window.
func (w *subscriberWorker) drain() {
	close(w.queue)
}

func (w *subscriberWorker) run() {
	defer close(w.doneC)
	for q := range w.queue {
		w.deliver(q.evt, 1)
	}
}

func (w *subscriberWorker) deliver(evt events.Event, attempt int) {
	ctx := context.Background()
	err := w.invokeWithHarness(ctx, evt.WithAttempt(attempt))
	if err == nil {
		return
	}

	observability.WithTrace(ctx).
		Warn().
		Err(err).
		Str("event_type", string(evt.EventType)).
		Str("subscriber", w.sub.name).
		Int("attempt", attempt).
		Msg("bus_delivery_failed")

	if attempt >= maxAttempts {
		w.bus.deadLetter.Add(evt.EventType, evt.WithAttempt(attempt), w.sub.name, err.Error())
		return
	}

	delay := retryDelays[attempt-1]
	select {
	case <-time.After(delay):
	case <-w.stopC:
		return
	}
	w.deliver(evt, attempt+1)
}

// invokeWithHarness calls the subscriber's handler. The bus is responsible
// for the retry/dead-letter contract; the per-handler timeout, dedup, timing,
// and error capture come from the internal/handlers harness that wraps it.
func (w *subscriberWorker) invokeWithHarness(ctx context.Context, evt events.Event) error {
	return w.sub.handler(ctx, evt)
}
