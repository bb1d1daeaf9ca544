package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/bus"
	"sentinel/internal/events"
)

func TestSupervisor_TracksStagesAndTerminatesOnNarrated(t *testing.T) {
	b := bus.New(bus.Config{QueueDepth: 8, PublishBackpressureDeadline: time.Second}, nil, nil)
	s := New(10*time.Minute, time.Minute, 0)
	require.NoError(t, s.Attach(b))

	risk, err := events.New(events.TopicRiskFlagged, "c-1", "test", events.RiskFlagged{TransactionID: "t-1", Score: 0.9})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), risk))

	action, err := events.New(events.TopicComplianceAction, "c-1", "test", events.ComplianceAction{TransactionID: "t-1", Action: events.ActionBlock})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), action))

	narrative, err := events.New(events.TopicOpsAlert, "c-1", "test", events.OpsAlert{Channel: events.AlertChannelNarrative, SummaryText: "done"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), narrative))

	require.Eventually(t, func() bool {
		status, ok := s.Status("c-1")
		return ok && status.Terminal
	}, 2*time.Second, 10*time.Millisecond)

	status, ok := s.Status("c-1")
	require.True(t, ok)
	assert.True(t, status.StagesSeen[StageRiskEvaluated])
	assert.True(t, status.StagesSeen[StageComplianceDecided])
	assert.True(t, status.StagesSeen[StageNarrated])
}

func TestSupervisor_PendingCountsOnlyNonTerminal(t *testing.T) {
	b := bus.New(bus.Config{QueueDepth: 8, PublishBackpressureDeadline: time.Second}, nil, nil)
	s := New(10*time.Minute, time.Minute, 0)
	require.NoError(t, s.Attach(b))

	risk, err := events.New(events.TopicRiskFlagged, "c-2", "test", events.RiskFlagged{TransactionID: "t-2", Score: 0.85})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), risk))

	require.Eventually(t, func() bool {
		_, ok := s.Status("c-2")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, s.Pending())
}

func TestSupervisor_StatusReturnsCopyNotSharedState(t *testing.T) {
	b := bus.New(bus.Config{QueueDepth: 8, PublishBackpressureDeadline: time.Second}, nil, nil)
	s := New(10*time.Minute, time.Minute, 0)
	require.NoError(t, s.Attach(b))

	risk, err := events.New(events.TopicRiskFlagged, "c-3", "test", events.RiskFlagged{TransactionID: "t-3", Score: 0.85})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), risk))

	require.Eventually(t, func() bool {
		_, ok := s.Status("c-3")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	status, _ := s.Status("c-3")
	status.StagesSeen[StageNarrated] = true

	fresh, _ := s.Status("c-3")
	assert.False(t, fresh.StagesSeen[StageNarrated])
}
