// Package handlers implements the Agent Handlers (C4): seven pure functions
// over events, sharing one harness that performs event-id deduplication,
// timing, error capture, and publish of emitted events back through the bus.
package handlers

import (
	"context"
	"fmt"
	"time"

	"sentinel/internal/bus"
	"sentinel/internal/events"
	"sentinel/internal/observability"
)

// Func is the shape every handler implements: given one delivered event,
// return the events it wants published (possibly none) or an error. A
// returned error is the handler's way of signaling HandlerRaised; the bus
// applies its own retry/dead-letter policy on top.
type Func func(ctx context.Context, evt events.Event) ([]events.Event, error)

// Harness wraps Func values into bus.Handler values, applying the
// cross-cutting concerns spec.md §4.4 assigns to "the harness" rather than to
// any individual handler: dedup, a per-invocation deadline, timing, and
// publishing whatever the handler emitted.
type Harness struct {
	bus     *bus.Bus
	dedup   *dedupWindow
	timeout time.Duration
}

// NewHarness constructs a Harness. timeout is the per-handler-invocation
// deadline (spec.md §6 handler_timeout_ms, default 30s); dedupCapacity and
// dedupTTL bound the idempotence window.
func NewHarness(b *bus.Bus, timeout time.Duration, dedupCapacity int, dedupTTL time.Duration) *Harness {
	return &Harness{
		bus:     b,
		dedup:   newDedupWindow(dedupCapacity, dedupTTL),
		timeout: timeout,
	}
}

// Wrap adapts fn into a bus.Handler: first-attempt duplicate deliveries of
// the same event id are skipped (Scenario F), the call is bounded by the
// harness deadline, and on success every emitted event is published back
// through the bus under the same correlation id.
func (h *Harness) Wrap(handlerName string, fn Func) bus.Handler {
	return func(ctx context.Context, evt events.Event) error {
		if evt.Attempt <= 1 && !h.dedup.markIfNew(handlerName+"/"+evt.EventID) {
			observability.WithCorrelation(ctx, evt.CorrelationID).
				Debug().
				Str("handler", handlerName).
				Str("event_id", evt.EventID).
				Msg("handler_dedup_skip")
			return nil
		}

		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()

		out, err := fn(callCtx, evt)

		log := observability.WithCorrelation(ctx, evt.CorrelationID).With().
			Str("handler", handlerName).
			Dur("duration", time.Since(start)).
			Logger()

		if err != nil {
			log.Error().Err(err).Msg("handler_failed")
			return fmt.Errorf("handler %s: %w", handlerName, err)
		}

		for _, emitted := range out {
			if emitted.CorrelationID == "" {
				emitted.CorrelationID = evt.CorrelationID
			}
			if pubErr := h.bus.Publish(ctx, emitted); pubErr != nil {
				log.Error().Err(pubErr).Str("emitted_type", string(emitted.EventType)).Msg("handler_publish_failed")
				return fmt.Errorf("handler %s: publish %s: %w", handlerName, emitted.EventType, pubErr)
			}
		}

		log.Debug().Int("emitted", len(out)).Msg("handler_completed")
		return nil
	}
}
