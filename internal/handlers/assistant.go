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

// AssistantHandler answers user.query with retrieved context and no hard
// filter, a stateless Q&A path over the same retrieval index the risk and
// compliance handlers use.
type AssistantHandler struct {
	Index   *retrieval.Index
	Adapter modeladapter.Adapter
	TopK    int
}

// NewAssistantHandler constructs an AssistantHandler from the shared
// config's retrieval_top_k.
func NewAssistantHandler(index *retrieval.Index, adapter modeladapter.Adapter, cfg config.Config) *AssistantHandler {
	topK := cfg.RetrievalTopK
	if topK <= 0 {
		topK = 5
	}
	return &AssistantHandler{Index: index, Adapter: adapter, TopK: topK}
}

// Handle implements Func.
func (h *AssistantHandler) Handle(ctx context.Context, evt events.Event) ([]events.Event, error) {
	query, ok := evt.Payload.(events.UserQuery)
	if !ok {
		return nil, fmt.Errorf("assistant handler: unexpected payload type %T", evt.Payload)
	}

	results, err := h.Index.Search(ctx, query.Text, h.TopK, nil)
	if err != nil {
		return nil, fmt.Errorf("assistant handler: search: %w", err)
	}

	contextChunks := make([]string, 0, len(results))
	for _, r := range results {
		contextChunks = append(contextChunks, fmt.Sprintf("%s#%d", r.DocumentID, r.Ordinal))
	}

	req := modeladapter.CompletionRequest{
		SystemPrompt: "Answer the question using only the supplied regulatory context. If the context is insufficient, say so.",
		Context:      contextChunks,
		UserPrompt:   query.Text,
		MaxTokens:    500,
	}

	answer := "(model unavailable; cannot answer right now)"
	if result, err := h.Adapter.Complete(ctx, req); err == nil {
		answer = strings.TrimSpace(result.Text)
	}

	payload := events.UserResponse{
		QueryID:    query.QueryID,
		AnswerText: answer,
		Citations:  toCitations(results),
	}
	out, err := events.New(events.TopicUserResponse, evt.CorrelationID, "assistant_handler", payload)
	if err != nil {
		return nil, err
	}
	return []events.Event{out}, nil
}
