package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/config"
	"sentinel/internal/events"
	"sentinel/internal/modeladapter"
	"sentinel/internal/retrieval"
)

func complianceHandler(t *testing.T, adapter *stubAdapter) *ComplianceHandler {
	t.Helper()
	idx := retrieval.NewIndex(adapter, retrieval.NewMemoryStore(), 4, config.ReingestOverwrite)
	return NewComplianceHandler(idx, adapter, config.Config{
		ComplianceBlockThreshold: 0.95,
		ComplianceHoldThreshold:  0.90,
	})
}

func TestComplianceHandler_RuleFallback_Block(t *testing.T) {
	adapter := &stubAdapter{completeErr: modeladapter.ErrModelUnavailable}
	h := complianceHandler(t, adapter)

	risk := events.RiskFlagged{TransactionID: "t-1", Score: 0.97, Indicators: []string{"amount_very_high"}}
	evt, err := events.New(events.TopicRiskFlagged, "c-1", "test", risk)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, events.ActionBlock, out[0].Payload.(events.ComplianceAction).Action)
}

func TestComplianceHandler_RuleFallback_HoldAndReport(t *testing.T) {
	adapter := &stubAdapter{completeErr: modeladapter.ErrModelUnavailable}
	h := complianceHandler(t, adapter)

	risk := events.RiskFlagged{TransactionID: "t-2", Score: 0.92}
	evt, err := events.New(events.TopicRiskFlagged, "c-2", "test", risk)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)
	require.Len(t, out, 2)

	actions := []events.ComplianceActionKind{out[0].Payload.(events.ComplianceAction).Action, out[1].Payload.(events.ComplianceAction).Action}
	assert.Contains(t, actions, events.ActionHold)
	assert.Contains(t, actions, events.ActionReport)
	assert.NotContains(t, actions, events.ActionBlock)
}

func TestComplianceHandler_RuleFallback_Monitor(t *testing.T) {
	adapter := &stubAdapter{completeErr: modeladapter.ErrModelUnavailable}
	h := complianceHandler(t, adapter)

	risk := events.RiskFlagged{TransactionID: "t-3", Score: 0.81}
	evt, err := events.New(events.TopicRiskFlagged, "c-3", "test", risk)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, events.ActionMonitor, out[0].Payload.(events.ComplianceAction).Action)
}

func TestComplianceHandler_ModelOutsideSetFallsBackToRule(t *testing.T) {
	adapter := &stubAdapter{completeText: "escalate immediately"}
	h := complianceHandler(t, adapter)

	risk := events.RiskFlagged{TransactionID: "t-4", Score: 0.96}
	evt, err := events.New(events.TopicRiskFlagged, "c-4", "test", risk)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, events.ActionBlock, out[0].Payload.(events.ComplianceAction).Action)
}

func TestComplianceHandler_ModelWithinSetIsUsed(t *testing.T) {
	adapter := &stubAdapter{completeText: "monitor"}
	h := complianceHandler(t, adapter)

	risk := events.RiskFlagged{TransactionID: "t-5", Score: 0.97}
	evt, err := events.New(events.TopicRiskFlagged, "c-5", "test", risk)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, events.ActionMonitor, out[0].Payload.(events.ComplianceAction).Action)
}
