package modeladapter

import (
	"fmt"
	"net/http"
	"time"

	"sentinel/internal/config"
)

// Build constructs an Adapter from the configured backend. "anthropic" pairs
// the Anthropic chat backend with an OpenAI embedding backend, since
// Anthropic exposes no embeddings endpoint; "openai" serves both Complete
// and Embed from the same backend.
func Build(cfg config.ModelConfig, httpClient *http.Client) (Adapter, error) {
	completeTimeout := msOrDefault(cfg.CompleteTimeoutMS, 30000)
	embedTimeout := msOrDefault(cfg.EmbedTimeoutMS, 10000)

	switch cfg.Backend {
	case "", "anthropic":
		chat := NewAnthropicBackend(cfg.Anthropic, httpClient)
		embed := NewOpenAIBackend(cfg.OpenAI, httpClient)
		return New(chat, cfg.PoolSize, completeTimeout, embedTimeout, cfg.RetryAttempts, WithEmbedBackend(embed)), nil
	case "openai":
		backend := NewOpenAIBackend(cfg.OpenAI, httpClient)
		return New(backend, cfg.PoolSize, completeTimeout, embedTimeout, cfg.RetryAttempts), nil
	default:
		return nil, fmt.Errorf("modeladapter: unsupported backend %q", cfg.Backend)
	}
}

func msOrDefault(ms int, def int) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}
