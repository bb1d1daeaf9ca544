package handlers

import (
	"context"
	"fmt"

	"sentinel/internal/events"
)

// intentByAction maps a compliance action to the operational intent the
// resilience handler describes. The core never executes these against a
// banking system; it only publishes the intent (spec.md §4.4.3).
var intentByAction = map[events.ComplianceActionKind]string{
	events.ActionMonitor: "increase_monitoring",
	events.ActionHold:    "place_hold",
	events.ActionBlock:   "block_transaction",
	events.ActionReport:  "enqueue_regulator_report",
}

// ResilienceHandler translates one compliance.action into exactly one
// ops.action describing the operational step to take.
type ResilienceHandler struct{}

// NewResilienceHandler constructs a ResilienceHandler.
func NewResilienceHandler() *ResilienceHandler { return &ResilienceHandler{} }

// Handle implements Func.
func (h *ResilienceHandler) Handle(ctx context.Context, evt events.Event) ([]events.Event, error) {
	action, ok := evt.Payload.(events.ComplianceAction)
	if !ok {
		return nil, fmt.Errorf("resilience handler: unexpected payload type %T", evt.Payload)
	}

	intent, known := intentByAction[action.Action]
	if !known {
		intent = "unknown_action"
	}

	payload := events.OpsAction{
		TransactionID: action.TransactionID,
		Intent:        intent,
		Parameters: map[string]string{
			"source_action": string(action.Action),
		},
	}
	out, err := events.New(events.TopicOpsAction, evt.CorrelationID, "resilience_handler", payload)
	if err != nil {
		return nil, err
	}
	return []events.Event{out}, nil
}
