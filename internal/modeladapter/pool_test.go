package modeladapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	completeCalls int
	failTimes     int
	failKind      Kind
	result        CompletionResult
	embedResult   [][]float32
	embedErr      error
}

func (f *fakeBackend) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	f.completeCalls++
	if f.completeCalls <= f.failTimes {
		return CompletionResult{}, newError(f.failKind, nil)
	}
	return f.result, nil
}

func (f *fakeBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embedResult, nil
}

func TestPooledAdapter_RetriesRetryableErrors(t *testing.T) {
	backend := &fakeBackend{failTimes: 2, failKind: KindUnavailable, result: CompletionResult{Text: "ok"}}
	adapter := New(backend, 4, time.Second, time.Second, 5)

	res, err := adapter.Complete(context.Background(), CompletionRequest{UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, 3, backend.completeCalls)
}

func TestPooledAdapter_DoesNotRetryRejected(t *testing.T) {
	backend := &fakeBackend{failTimes: 99, failKind: KindRejected}
	adapter := New(backend, 4, time.Second, time.Second, 5)

	_, err := adapter.Complete(context.Background(), CompletionRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelRejected)
	assert.Equal(t, 1, backend.completeCalls)
}

func TestPooledAdapter_EmbedUsesDistinctBackend(t *testing.T) {
	chat := &fakeBackend{result: CompletionResult{Text: "ignored"}}
	embed := &fakeBackend{embedResult: [][]float32{{0.1, 0.2}}}
	adapter := New(chat, 4, time.Second, time.Second, 5, WithEmbedBackend(embed))

	vecs, err := adapter.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}}, vecs)
}

func TestPooledAdapter_TracksUsage(t *testing.T) {
	backend := &fakeBackend{result: CompletionResult{Text: "ok", PromptTokens: 10, CompletionTokens: 5}}
	adapter := New(backend, 4, time.Second, time.Second, 5)

	_, err := adapter.Complete(context.Background(), CompletionRequest{UserPrompt: "hi"})
	require.NoError(t, err)

	usage := adapter.Usage()
	assert.Equal(t, int64(1), usage.CompleteCalls)
	assert.Equal(t, int64(10), usage.PromptTokens)
	assert.Equal(t, int64(5), usage.CompletionTokens)
}
