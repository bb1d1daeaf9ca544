package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/events"
)

func TestResilienceHandler_OneOpsActionPerInput(t *testing.T) {
	h := NewResilienceHandler()

	action := events.ComplianceAction{TransactionID: "t-1", Action: events.ActionBlock}
	evt, err := events.New(events.TopicComplianceAction, "c-1", "test", action)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)
	require.Len(t, out, 1)

	opsAction := out[0].Payload.(events.OpsAction)
	assert.Equal(t, "block_transaction", opsAction.Intent)
	assert.Equal(t, "c-1", out[0].CorrelationID)
}

func TestResilienceHandler_EveryActionMapsToAnIntent(t *testing.T) {
	h := NewResilienceHandler()

	for _, kind := range []events.ComplianceActionKind{events.ActionMonitor, events.ActionHold, events.ActionBlock, events.ActionReport} {
		evt, err := events.New(events.TopicComplianceAction, "c-2", "test", events.ComplianceAction{TransactionID: "t-2", Action: kind})
		require.NoError(t, err)

		out, err := h.Handle(context.Background(), evt)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.NotEqual(t, "unknown_action", out[0].Payload.(events.OpsAction).Intent)
	}
}
