package handlers

import (
	"context"
	"fmt"
	"strings"

	"sentinel/internal/config"
	"sentinel/internal/events"
	"sentinel/internal/modeladapter"
	"sentinel/internal/retrieval"
)

var complianceActionSet = map[events.ComplianceActionKind]bool{
	events.ActionMonitor: true,
	events.ActionHold:    true,
	events.ActionBlock:   true,
	events.ActionReport:  true,
}

// ComplianceHandler maps a flagged transaction to one or more compliance
// actions, preferring C1's constrained choice and falling back to a
// deterministic rule table when the model's output falls outside the
// four-value set or the model is unavailable.
type ComplianceHandler struct {
	Index           *retrieval.Index
	Adapter         modeladapter.Adapter
	BlockThreshold  float64
	HoldThreshold   float64
}

// NewComplianceHandler constructs a ComplianceHandler from the shared
// config's compliance_block_threshold/compliance_hold_threshold.
func NewComplianceHandler(index *retrieval.Index, adapter modeladapter.Adapter, cfg config.Config) *ComplianceHandler {
	return &ComplianceHandler{
		Index:          index,
		Adapter:        adapter,
		BlockThreshold: cfg.ComplianceBlockThreshold,
		HoldThreshold:  cfg.ComplianceHoldThreshold,
	}
}

// Handle implements Func.
func (h *ComplianceHandler) Handle(ctx context.Context, evt events.Event) ([]events.Event, error) {
	risk, ok := evt.Payload.(events.RiskFlagged)
	if !ok {
		return nil, fmt.Errorf("compliance handler: unexpected payload type %T", evt.Payload)
	}

	citations := h.retrieveCitations(ctx, risk)
	actions, rationale := h.chooseActions(ctx, risk, citations)

	out := make([]events.Event, 0, len(actions))
	for _, action := range actions {
		payload := events.ComplianceAction{
			TransactionID: risk.TransactionID,
			Action:        action,
			RationaleText: rationale,
			Citations:     citations,
		}
		evt, err := events.New(events.TopicComplianceAction, evt.CorrelationID, "compliance_handler", payload)
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, nil
}

func (h *ComplianceHandler) retrieveCitations(ctx context.Context, risk events.RiskFlagged) []events.Citation {
	filter := map[string]string{"regulator": "AUSTRAC"}
	query := "AML CTF guidance " + strings.Join(risk.Indicators, " ")
	results, err := h.Index.Search(ctx, query, 3, filter)
	if err != nil {
		return nil
	}
	return toCitations(results)
}

// chooseActions asks C1 to select from the four-value action set; if the
// model is unavailable or returns a value outside the set, applies the
// deterministic rule table from spec.md §4.4.2. Score 0.95+ selects block
// alone; block always supersedes the other actions (spec.md §8 boundary
// case).
func (h *ComplianceHandler) chooseActions(ctx context.Context, risk events.RiskFlagged, citations []events.Citation) ([]events.ComplianceActionKind, string) {
	contextChunks := make([]string, 0, len(citations))
	for _, c := range citations {
		contextChunks = append(contextChunks, fmt.Sprintf("%s#%d", c.DocumentID, c.Ordinal))
	}

	req := modeladapter.CompletionRequest{
		SystemPrompt: "You are a compliance officer. Respond with exactly one word from: monitor, hold, block, report.",
		Context:      contextChunks,
		UserPrompt:   fmt.Sprintf("transaction_id=%s score=%.2f indicators=%s", risk.TransactionID, risk.Score, strings.Join(risk.Indicators, ",")),
		MaxTokens:    16,
	}

	if result, err := h.Adapter.Complete(ctx, req); err == nil {
		if kind := events.ComplianceActionKind(strings.ToLower(strings.TrimSpace(result.Text))); complianceActionSet[kind] {
			return []events.ComplianceActionKind{kind}, strings.TrimSpace(result.Text)
		}
	}

	return h.ruleTableActions(risk.Score), deterministicRationale(risk.Score)
}

func (h *ComplianceHandler) ruleTableActions(score float64) []events.ComplianceActionKind {
	switch {
	case score >= h.BlockThreshold:
		return []events.ComplianceActionKind{events.ActionBlock}
	case score >= h.HoldThreshold:
		return []events.ComplianceActionKind{events.ActionHold, events.ActionReport}
	default:
		return []events.ComplianceActionKind{events.ActionMonitor}
	}
}

func deterministicRationale(score float64) string {
	return fmt.Sprintf("deterministic rule table applied at score %.2f", score)
}
