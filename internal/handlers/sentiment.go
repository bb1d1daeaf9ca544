package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"sentinel/internal/events"
	"sentinel/internal/modeladapter"
)

const sentimentAlertThreshold = -0.5

// SentimentHandler scores customer.message bodies via C1, constrained to a
// real in [-1,1], falling back to a deterministic lexicon when the model is
// unavailable or its output cannot be parsed as a number in range.
type SentimentHandler struct {
	Adapter modeladapter.Adapter
}

// NewSentimentHandler constructs a SentimentHandler.
func NewSentimentHandler(adapter modeladapter.Adapter) *SentimentHandler {
	return &SentimentHandler{Adapter: adapter}
}

// Handle implements Func.
func (h *SentimentHandler) Handle(ctx context.Context, evt events.Event) ([]events.Event, error) {
	msg, ok := evt.Payload.(events.CustomerMessage)
	if !ok {
		return nil, fmt.Errorf("sentiment handler: unexpected payload type %T", evt.Payload)
	}

	score := h.score(ctx, msg.Body)
	if score > sentimentAlertThreshold {
		return nil, nil
	}

	payload := events.OpsAlert{
		Channel:         events.AlertChannelSentiment,
		CorrelationID:   evt.CorrelationID,
		SentimentScore:  score,
		Excerpt:         excerpt(msg.Body, 200),
		SuggestedAction: "route_to_retention_specialist",
	}
	out, err := events.New(events.TopicOpsAlert, evt.CorrelationID, "sentiment_handler", payload)
	if err != nil {
		return nil, err
	}
	return []events.Event{out}, nil
}

func (h *SentimentHandler) score(ctx context.Context, body string) float64 {
	req := modeladapter.CompletionRequest{
		SystemPrompt: "Score the sentiment of the customer message as a single real number between -1.0 (very negative) and 1.0 (very positive). Respond with only the number.",
		UserPrompt:   body,
		MaxTokens:    16,
	}

	result, err := h.Adapter.Complete(ctx, req)
	if err != nil {
		return lexiconSentiment(body)
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(result.Text), 64)
	if err != nil || parsed < -1 || parsed > 1 {
		return lexiconSentiment(body)
	}
	return parsed
}

func excerpt(body string, maxChars int) string {
	if len(body) <= maxChars {
		return body
	}
	return body[:maxChars] + "..."
}
