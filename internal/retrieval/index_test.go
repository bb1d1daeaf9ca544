package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/config"
	"sentinel/internal/modeladapter"
)

type fakeAdapter struct {
	dimension int
	embedErr  error
}

func (f *fakeAdapter) Complete(ctx context.Context, req modeladapter.CompletionRequest) (modeladapter.CompletionResult, error) {
	return modeladapter.CompletionResult{Text: "stub"}, nil
}

func (f *fakeAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
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

func (f *fakeAdapter) Usage() modeladapter.Usage { return modeladapter.Usage{} }

func TestIndex_IngestAndSearch(t *testing.T) {
	adapter := &fakeAdapter{dimension: 8}
	idx := NewIndex(adapter, NewMemoryStore(), 8, config.ReingestOverwrite)

	_, err := idx.Ingest(context.Background(), "austrac-aml-1", "Funds transfers above ten thousand dollars must be reported. Cross-border transfers require enhanced checks.", map[string]string{"regulator": "AUSTRAC"}, 80, 10)
	require.NoError(t, err)

	results, err := idx.Search(context.Background(), "cross border reporting", 3, map[string]string{"regulator": "AUSTRAC"})
	require.NoError(t, err)
	assert.NotEmpty(t, results)
	assert.False(t, results[0].FallbackUsed)
}

func TestIndex_ReingestSkipIfUnchanged(t *testing.T) {
	adapter := &fakeAdapter{dimension: 4}
	idx := NewIndex(adapter, NewMemoryStore(), 4, config.ReingestSkipIfUnchanged)

	text := "Reportable transactions must be logged within three business days."
	first, err := idx.Ingest(context.Background(), "doc-1", text, nil, 100, 10)
	require.NoError(t, err)
	assert.False(t, first.Skipped)
	assert.Greater(t, first.ChunksStored, 0)

	second, err := idx.Ingest(context.Background(), "doc-1", text, nil, 100, 10)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
}

func TestIndex_FallsBackToLexicalOnEmbedFailure(t *testing.T) {
	adapter := &fakeAdapter{dimension: 4, embedErr: modeladapter.ErrModelUnavailable}
	idx := NewIndex(adapter, NewMemoryStore(), 4, config.ReingestOverwrite)

	result, err := idx.Ingest(context.Background(), "doc-2", "Suspicious matters must be reported to AUSTRAC promptly.", nil, 100, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Errors)

	results, err := idx.Search(context.Background(), "suspicious matters reported", 3, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.True(t, results[0].FallbackUsed)
}

func TestIndex_EmptyCorpusSearchReturnsEmpty(t *testing.T) {
	adapter := &fakeAdapter{dimension: 4}
	idx := NewIndex(adapter, NewMemoryStore(), 4, config.ReingestOverwrite)

	results, err := idx.Search(context.Background(), "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLexicalIndex_AllStopWordsReturnsEmptyNotError(t *testing.T) {
	lex := NewLexicalIndex()
	lex.Upsert("doc-1", 0, "the fund was reported", nil)

	results, err := lex.Search(context.Background(), "the was", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
