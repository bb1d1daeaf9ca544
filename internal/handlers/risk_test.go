package handlers

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/config"
	"sentinel/internal/events"
	"sentinel/internal/modeladapter"
	"sentinel/internal/retrieval"
)

type stubAdapter struct {
	completeErr  error
	completeText string
}

func (s *stubAdapter) Complete(ctx context.Context, req modeladapter.CompletionRequest) (modeladapter.CompletionResult, error) {
	if s.completeErr != nil {
		return modeladapter.CompletionResult{}, s.completeErr
	}
	return modeladapter.CompletionResult{Text: s.completeText}, nil
}

func (s *stubAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, modeladapter.ErrModelInvalid
}

func (s *stubAdapter) Usage() modeladapter.Usage { return modeladapter.Usage{} }

func TestRiskHandler_ScenarioA_HighRiskCrossBorder(t *testing.T) {
	adapter := &stubAdapter{completeText: "elevated risk due to amount and jurisdiction"}
	idx := retrieval.NewIndex(adapter, retrieval.NewMemoryStore(), 4, config.ReingestOverwrite)
	h := NewRiskHandler(idx, adapter, config.Config{RiskScoreFlagThreshold: 0.8})

	tx := events.TransactionCreated{
		TransactionID:           "t-1",
		Amount:                  decimal.NewFromFloat(50000.00),
		Currency:                "AUD",
		DestinationJurisdiction: "KP",
		OriginAccount:           "acct-1",
		InitiatedAt:             "2025-01-15T02:14:00+11:00",
	}
	evt, err := events.New(events.TopicTransactionCreated, "c-1", "test", tx)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)
	require.Len(t, out, 1)

	flagged := out[0].Payload.(events.RiskFlagged)
	assert.GreaterOrEqual(t, flagged.Score, 0.9)
	assert.Equal(t, "c-1", out[0].CorrelationID)
}

func TestRiskHandler_ScenarioB_ModerateRiskDoesNotFlag(t *testing.T) {
	adapter := &stubAdapter{completeText: "low risk"}
	idx := retrieval.NewIndex(adapter, retrieval.NewMemoryStore(), 4, config.ReingestOverwrite)
	h := NewRiskHandler(idx, adapter, config.Config{RiskScoreFlagThreshold: 0.8})

	tx := events.TransactionCreated{
		TransactionID:           "t-2",
		Amount:                  decimal.NewFromFloat(9500.00),
		Currency:                "AUD",
		DestinationJurisdiction: "AU",
		InitiatedAt:             "2025-01-15T14:00:00+11:00",
	}
	evt, err := events.New(events.TopicTransactionCreated, "c-2", "test", tx)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRiskHandler_ScenarioE_ModelOutageStillFlags(t *testing.T) {
	adapter := &stubAdapter{completeErr: modeladapter.ErrModelUnavailable}
	idx := retrieval.NewIndex(adapter, retrieval.NewMemoryStore(), 4, config.ReingestOverwrite)
	h := NewRiskHandler(idx, adapter, config.Config{RiskScoreFlagThreshold: 0.8})

	tx := events.TransactionCreated{
		TransactionID:           "t-3",
		Amount:                  decimal.NewFromFloat(50000.00),
		Currency:                "AUD",
		DestinationJurisdiction: "KP",
		InitiatedAt:             "2025-01-15T02:14:00+11:00",
	}
	evt, err := events.New(events.TopicTransactionCreated, "c-3", "test", tx)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)
	require.Len(t, out, 1)

	flagged := out[0].Payload.(events.RiskFlagged)
	assert.Equal(t, "(model unavailable; numeric features only)", flagged.JustificationText)
	assert.Empty(t, flagged.Citations)
}

func TestRiskHandler_BoundaryScoreExactlyAtThresholdFlags(t *testing.T) {
	score, _ := scoreTransaction(events.TransactionCreated{
		Amount:                  decimal.NewFromFloat(10000),
		DestinationJurisdiction: "KP",
		OriginAccount:           "a",
		InitiatedAt:             "2025-01-15T02:00:00+11:00",
	})
	assert.InDelta(t, 0.8, score, 1e-9)
}
