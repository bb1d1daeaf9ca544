package modeladapter

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/semaphore"

	"sentinel/internal/observability"
)

// pooledAdapter bounds in-flight Backend calls to a configured concurrency,
// retries ModelUnavailable/ModelThrottled with exponential backoff and
// jitter, applies a per-call deadline, and accumulates token usage. This is
// the Adapter every handler and the retrieval index are constructed with.
type pooledAdapter struct {
	backend Backend
	embed   Backend // set when Complete and Embed are served by different backends
	sem     *semaphore.Weighted

	completeTimeout time.Duration
	embedTimeout    time.Duration
	retryAttempts   int

	usage Usage
}

// Option configures a pooledAdapter at construction.
type Option func(*pooledAdapter)

// WithEmbedBackend routes Embed calls to a backend distinct from the one
// handling Complete, for the anthropic+openai pairing where Anthropic has no
// embeddings endpoint.
func WithEmbedBackend(b Backend) Option {
	return func(a *pooledAdapter) { a.embed = b }
}

// New builds an Adapter around backend with the given pool size, per-call
// timeouts, and retry attempt budget.
func New(backend Backend, poolSize int, completeTimeout, embedTimeout time.Duration, retryAttempts int, opts ...Option) Adapter {
	if poolSize <= 0 {
		poolSize = 16
	}
	if retryAttempts <= 0 {
		retryAttempts = 5
	}
	a := &pooledAdapter{
		backend:         backend,
		sem:             semaphore.NewWeighted(int64(poolSize)),
		completeTimeout: completeTimeout,
		embedTimeout:    embedTimeout,
		retryAttempts:   retryAttempts,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// newRetryBackOff is the retry schedule for Complete and Embed: 200ms base
// interval, doubling each attempt, with ±25% jitter.
func newRetryBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0.25
	return b
}

func (a *pooledAdapter) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return CompletionResult{}, newError(KindUnavailable, err)
	}
	defer a.sem.Release(1)

	result, err := backoff.Retry(ctx, func() (CompletionResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, a.completeTimeout)
		defer cancel()
		res, err := a.backend.Complete(callCtx, req)
		if err != nil {
			if !Retryable(err) {
				return CompletionResult{}, backoff.Permanent(err)
			}
			observability.WithTrace(ctx).Warn().Err(err).Msg("model_complete_retry")
			return CompletionResult{}, err
		}
		return res, nil
	},
		backoff.WithBackOff(newRetryBackOff()),
		backoff.WithMaxTries(uint(a.retryAttempts)),
	)
	if err != nil {
		return CompletionResult{}, err
	}

	atomic.AddInt64(&a.usage.CompleteCalls, 1)
	atomic.AddInt64(&a.usage.PromptTokens, int64(result.PromptTokens))
	atomic.AddInt64(&a.usage.CompletionTokens, int64(result.CompletionTokens))
	return result, nil
}

func (a *pooledAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, newError(KindUnavailable, err)
	}
	defer a.sem.Release(1)

	backend := a.backend
	if a.embed != nil {
		backend = a.embed
	}

	result, err := backoff.Retry(ctx, func() ([][]float32, error) {
		callCtx, cancel := context.WithTimeout(ctx, a.embedTimeout)
		defer cancel()
		vecs, err := backend.Embed(callCtx, texts)
		if err != nil {
			// Embed only retries on transport-level unavailability; a rejection
			// or invalid-shape response from the embedding endpoint is terminal.
			var adapterErr *Error
			if !errors.As(err, &adapterErr) || adapterErr.Kind != KindUnavailable {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return vecs, nil
	},
		backoff.WithBackOff(newRetryBackOff()),
		backoff.WithMaxTries(uint(a.retryAttempts)),
	)
	if err != nil {
		return nil, err
	}

	atomic.AddInt64(&a.usage.EmbedCalls, 1)
	return result, nil
}

func (a *pooledAdapter) Usage() Usage {
	return Usage{
		PromptTokens:     atomic.LoadInt64(&a.usage.PromptTokens),
		CompletionTokens: atomic.LoadInt64(&a.usage.CompletionTokens),
		CompleteCalls:    atomic.LoadInt64(&a.usage.CompleteCalls),
		EmbedCalls:       atomic.LoadInt64(&a.usage.EmbedCalls),
	}
}
