package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sentinel/internal/config"
	"sentinel/internal/events"
	"sentinel/internal/modeladapter"
	"sentinel/internal/retrieval"
)

// nightWindowStart/End bound the hour-of-day anomaly window (00:00-05:00
// local, per spec.md §4.4.1).
const (
	nightWindowStart = 0
	nightWindowEnd   = 5
)

// RiskHandler scores transaction.created events and flags high-risk ones,
// retrieving regulatory context from C2 and asking C1 for a justification.
type RiskHandler struct {
	Index          *retrieval.Index
	Adapter        modeladapter.Adapter
	FlagThreshold  float64
}

// NewRiskHandler constructs a RiskHandler from the shared config's
// risk_score_flag_threshold.
func NewRiskHandler(index *retrieval.Index, adapter modeladapter.Adapter, cfg config.Config) *RiskHandler {
	return &RiskHandler{Index: index, Adapter: adapter, FlagThreshold: cfg.RiskScoreFlagThreshold}
}

// Handle implements Func.
func (h *RiskHandler) Handle(ctx context.Context, evt events.Event) ([]events.Event, error) {
	tx, ok := evt.Payload.(events.TransactionCreated)
	if !ok {
		return nil, fmt.Errorf("risk handler: unexpected payload type %T", evt.Payload)
	}

	score, indicators := scoreTransaction(tx)
	if score < h.FlagThreshold {
		return nil, nil
	}

	citations := h.retrieveCitations(ctx, tx)
	justification, modelFailed := h.justify(ctx, tx, score, indicators, citations)
	if modelFailed {
		// spec.md §4.4.1: on C1 failure the decision still ships, but without
		// citations, since the citations were never grounded by a completion.
		citations = nil
	}

	payload := events.RiskFlagged{
		TransactionID:     tx.TransactionID,
		Score:             score,
		Indicators:        indicators,
		JustificationText: justification,
		Citations:         citations,
	}
	flagged, err := events.New(events.TopicRiskFlagged, evt.CorrelationID, "risk_handler", payload)
	if err != nil {
		return nil, err
	}
	return []events.Event{flagged}, nil
}

// scoreTransaction computes a risk score in [0,1] from amount, hour-of-day,
// cross-jurisdiction, and velocity indicators per spec.md §4.4.1. The
// weights are additive and capped at 1.0.
func scoreTransaction(tx events.TransactionCreated) (float64, []string) {
	var score float64
	var indicators []string

	amount, _ := tx.Amount.Float64()
	switch {
	case amount >= 50000:
		score += 0.5
		indicators = append(indicators, "amount_very_high")
	case amount >= 10000:
		score += 0.3
		indicators = append(indicators, "amount_high")
	case amount >= 5000:
		score += 0.15
		indicators = append(indicators, "amount_elevated")
	}

	if initiatedAt, err := time.Parse(time.RFC3339, tx.InitiatedAt); err == nil {
		hour := initiatedAt.Hour()
		if hour >= nightWindowStart && hour < nightWindowEnd {
			score += 0.2
			indicators = append(indicators, "night_hour")
		}
	}

	if tx.DestinationJurisdiction != "" && !strings.EqualFold(tx.DestinationJurisdiction, "AU") {
		score += 0.3
		indicators = append(indicators, "cross_jurisdiction")
	}

	if tx.VelocityIndicator > 0 {
		velocityWeight := tx.VelocityIndicator * 0.3
		if velocityWeight > 0.3 {
			velocityWeight = 0.3
		}
		score += velocityWeight
		indicators = append(indicators, "velocity_flagged")
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, indicators
}

func (h *RiskHandler) retrieveCitations(ctx context.Context, tx events.TransactionCreated) []events.Citation {
	filter := map[string]string{"regulator": "AUSTRAC"}
	results, err := h.Index.Search(ctx, "cross-border transaction monitoring "+tx.DestinationJurisdiction, 3, filter)
	if err != nil {
		return nil
	}
	return toCitations(results)
}

func toCitations(results []retrieval.SearchResult) []events.Citation {
	out := make([]events.Citation, 0, len(results))
	for _, r := range results {
		out = append(out, events.Citation{
			DocumentID: r.DocumentID,
			Ordinal:    r.Ordinal,
			Regulator:  r.Metadata["regulator"],
		})
	}
	return out
}

// justify asks C1 for a one-sentence justification. The bool return reports
// whether the model call failed, so the caller can apply the
// citations-must-be-empty fallback rule from spec.md §4.4.1.
func (h *RiskHandler) justify(ctx context.Context, tx events.TransactionCreated, score float64, indicators []string, citations []events.Citation) (string, bool) {
	contextChunks := make([]string, 0, len(citations))
	for _, c := range citations {
		contextChunks = append(contextChunks, fmt.Sprintf("%s#%d", c.DocumentID, c.Ordinal))
	}

	req := modeladapter.CompletionRequest{
		SystemPrompt: "You are a banking risk analyst. Produce one concise sentence justifying a risk score from the given numeric features and regulatory context.",
		Context:      contextChunks,
		UserPrompt: fmt.Sprintf(
			"transaction_id=%s score=%.2f indicators=%s amount=%s currency=%s destination_jurisdiction=%s",
			tx.TransactionID, score, strings.Join(indicators, ","), tx.Amount.String(), tx.Currency, tx.DestinationJurisdiction,
		),
		MaxTokens: 200,
	}

	result, err := h.Adapter.Complete(ctx, req)
	if err != nil {
		return "(model unavailable; numeric features only)", true
	}
	return strings.TrimSpace(result.Text), false
}
