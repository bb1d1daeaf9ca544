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

type fakeEmbedCompleteAdapter struct {
	dimension int
	answer    string
}

func (f *fakeEmbedCompleteAdapter) Complete(ctx context.Context, req modeladapter.CompletionRequest) (modeladapter.CompletionResult, error) {
	return modeladapter.CompletionResult{Text: f.answer}, nil
}

func (f *fakeEmbedCompleteAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, f.dimension)
		for j := range vec {
			vec[j] = float32(len(t)+j) / float32(f.dimension)
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedCompleteAdapter) Usage() modeladapter.Usage { return modeladapter.Usage{} }

func TestAssistantHandler_AnswersWithCitations(t *testing.T) {
	adapter := &fakeEmbedCompleteAdapter{dimension: 4, answer: "Transfers over $10,000 must be reported."}
	idx := retrieval.NewIndex(adapter, retrieval.NewMemoryStore(), 4, config.ReingestOverwrite)
	_, err := idx.Ingest(context.Background(), "doc-1", "Transfers over ten thousand dollars must be reported to AUSTRAC within three business days.", map[string]string{"regulator": "AUSTRAC"}, 100, 10)
	require.NoError(t, err)

	h := NewAssistantHandler(idx, adapter, config.Config{RetrievalTopK: 5})

	query := events.UserQuery{QueryID: "q-1", Text: "What is the reporting threshold?"}
	evt, err := events.New(events.TopicUserQuery, "c-1", "test", query)
	require.NoError(t, err)

	out, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)
	require.Len(t, out, 1)

	resp := out[0].Payload.(events.UserResponse)
	assert.Equal(t, "q-1", resp.QueryID)
	assert.NotEmpty(t, resp.AnswerText)
	assert.NotEmpty(t, resp.Citations)
}
