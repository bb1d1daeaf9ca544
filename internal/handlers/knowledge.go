package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"sentinel/internal/bus"
	"sentinel/internal/events"
	"sentinel/internal/modeladapter"
	"sentinel/internal/observability"
)

// knowledgeAccumulator holds the events gathered for one correlation id, the
// way token_cache.go holds one cache entry: bounded lifetime, evicted by a
// background sweep rather than on every access.
type knowledgeAccumulator struct {
	correlationID string
	accumulated   []events.Event
	lastActivity  time.Time
	timer         *time.Timer
}

// KnowledgeHandler accumulates pipeline events by correlation id and emits a
// plain-language narrative once the pipeline reaches ops.action or goes
// quiet for QuietPeriod. Unlike the other handlers it publishes some of its
// output directly (the quiet-period timer fires outside any harness
// invocation) rather than exclusively through the value the harness
// publishes on return.
type KnowledgeHandler struct {
	Adapter     modeladapter.Adapter
	Bus         *bus.Bus
	QuietPeriod time.Duration
	ContextTTL  time.Duration

	mu    sync.Mutex
	byCID map[string]*knowledgeAccumulator
}

// NewKnowledgeHandler constructs a KnowledgeHandler and starts its
// background TTL sweep.
func NewKnowledgeHandler(adapter modeladapter.Adapter, b *bus.Bus, quietPeriod, contextTTL time.Duration) *KnowledgeHandler {
	h := &KnowledgeHandler{
		Adapter:     adapter,
		Bus:         b,
		QuietPeriod: quietPeriod,
		ContextTTL:  contextTTL,
		byCID:       make(map[string]*knowledgeAccumulator),
	}
	go h.sweepLoop()
	return h
}

// Handle implements Func. It always accumulates evt; on ops.action it
// synchronously produces and returns the narrative (the harness publishes
// it), short-circuiting the quiet-period timer.
func (h *KnowledgeHandler) Handle(ctx context.Context, evt events.Event) ([]events.Event, error) {
	h.mu.Lock()
	acc, ok := h.byCID[evt.CorrelationID]
	if !ok {
		acc = &knowledgeAccumulator{correlationID: evt.CorrelationID, lastActivity: time.Now()}
		h.byCID[evt.CorrelationID] = acc
	}
	acc.accumulated = append(acc.accumulated, evt)
	acc.lastActivity = time.Now()

	if evt.EventType == events.TopicOpsAction {
		if acc.timer != nil {
			acc.timer.Stop()
		}
		snapshot := append([]events.Event(nil), acc.accumulated...)
		delete(h.byCID, evt.CorrelationID)
		h.mu.Unlock()

		narrative, err := h.summarize(ctx, evt.CorrelationID, snapshot)
		if err != nil {
			return nil, nil
		}
		return []events.Event{narrative}, nil
	}

	h.resetQuietTimerLocked(acc)
	h.mu.Unlock()
	return nil, nil
}

func (h *KnowledgeHandler) resetQuietTimerLocked(acc *knowledgeAccumulator) {
	if acc.timer != nil {
		acc.timer.Stop()
	}
	correlationID := acc.correlationID
	acc.timer = time.AfterFunc(h.QuietPeriod, func() {
		h.onQuietPeriodElapsed(correlationID)
	})
}

func (h *KnowledgeHandler) onQuietPeriodElapsed(correlationID string) {
	h.mu.Lock()
	acc, ok := h.byCID[correlationID]
	if !ok {
		h.mu.Unlock()
		return
	}
	snapshot := append([]events.Event(nil), acc.accumulated...)
	delete(h.byCID, correlationID)
	h.mu.Unlock()

	ctx := context.Background()
	narrative, err := h.summarize(ctx, correlationID, snapshot)
	if err != nil {
		observability.WithCorrelation(ctx, correlationID).Warn().Err(err).Msg("knowledge_quiet_summary_failed")
		return
	}
	if err := h.Bus.Publish(ctx, narrative); err != nil {
		observability.WithCorrelation(ctx, correlationID).Error().Err(err).Msg("knowledge_publish_failed")
	}
}

func (h *KnowledgeHandler) summarize(ctx context.Context, correlationID string, accumulated []events.Event) (events.Event, error) {
	lines := make([]string, 0, len(accumulated))
	var citations []events.Citation
	for _, e := range accumulated {
		lines = append(lines, summaryLine(e))
		citations = append(citations, citationsOf(e)...)
	}

	req := modeladapter.CompletionRequest{
		SystemPrompt: "Summarize this banking-security event chain in plain language for an operations reviewer, in two or three sentences.",
		UserPrompt:   strings.Join(lines, "\n"),
		MaxTokens:    300,
	}

	text := "(model unavailable; see accumulated event chain)"
	if result, err := h.Adapter.Complete(ctx, req); err == nil {
		text = strings.TrimSpace(result.Text)
	}

	payload := events.OpsAlert{
		Channel:       events.AlertChannelNarrative,
		CorrelationID: correlationID,
		SummaryText:   text,
		Citations:     dedupeCitations(citations),
	}
	return events.New(events.TopicOpsAlert, correlationID, "knowledge_handler", payload)
}

func summaryLine(e events.Event) string {
	switch p := e.Payload.(type) {
	case events.RiskFlagged:
		return fmt.Sprintf("risk.flagged score=%.2f indicators=%s", p.Score, strings.Join(p.Indicators, ","))
	case events.ComplianceAction:
		return fmt.Sprintf("compliance.action action=%s rationale=%s", p.Action, p.RationaleText)
	case events.OpsAction:
		return fmt.Sprintf("ops.action intent=%s", p.Intent)
	case events.OpsAlert:
		return fmt.Sprintf("ops.alert channel=%s", p.Channel)
	case events.PrivacyViolation:
		return fmt.Sprintf("privacy.violation findings=%d", len(p.Findings))
	default:
		return string(e.EventType)
	}
}

func citationsOf(e events.Event) []events.Citation {
	switch p := e.Payload.(type) {
	case events.RiskFlagged:
		return p.Citations
	case events.ComplianceAction:
		return p.Citations
	default:
		return nil
	}
}

func dedupeCitations(in []events.Citation) []events.Citation {
	seen := make(map[string]bool, len(in))
	out := make([]events.Citation, 0, len(in))
	for _, c := range in {
		key := fmt.Sprintf("%s:%d", c.DocumentID, c.Ordinal)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// sweepLoop evicts accumulators that have been idle past ContextTTL even
// though no ops.action or quiet-period timer fired for them (e.g. the chain
// stalled at risk.flagged). Mirrors the TTL sweep in the reference token
// cache.
func (h *KnowledgeHandler) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		h.sweep()
	}
}

func (h *KnowledgeHandler) sweep() {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	for cid, acc := range h.byCID {
		if now.Sub(acc.lastActivity) >= h.ContextTTL {
			if acc.timer != nil {
				acc.timer.Stop()
			}
			delete(h.byCID, cid)
		}
	}
}
