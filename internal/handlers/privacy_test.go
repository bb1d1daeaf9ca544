package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/events"
)

func TestPrivacyHandler_ScenarioD_EmailFoundAndRedacted(t *testing.T) {
	h := NewPrivacyHandler()

	line := events.LogLine{SourceComponent: "ledger", Body: "user jane@example.com transferred $100"}
	evt, err := events.New(events.TopicLogLine, "c-1", "test", line)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)
	require.Len(t, out, 1)

	violation := out[0].Payload.(events.PrivacyViolation)
	assert.Contains(t, violation.SanitizedLine, "<EMAIL>")
	assert.NotContains(t, violation.SanitizedLine, "jane@example.com")
	assert.NotEmpty(t, violation.Findings)
}

func TestPrivacyHandler_NoPIINoEmission(t *testing.T) {
	h := NewPrivacyHandler()

	line := events.LogLine{SourceComponent: "ledger", Body: "transaction processed successfully"}
	evt, err := events.New(events.TopicLogLine, "c-2", "test", line)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPrivacyHandler_CardNumberRedacted(t *testing.T) {
	h := NewPrivacyHandler()

	line := events.LogLine{SourceComponent: "payments", Body: "card 4111 1111 1111 1111 declined"}
	evt, err := events.New(events.TopicLogLine, "c-3", "test", line)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)
	require.Len(t, out, 1)

	violation := out[0].Payload.(events.PrivacyViolation)
	assert.True(t, strings.Contains(violation.SanitizedLine, "<CARD_NUMBER>"))
}
