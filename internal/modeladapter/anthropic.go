package modeladapter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"sentinel/internal/config"
)

const defaultMaxTokens int64 = 1024

// AnthropicBackend implements Backend against the Anthropic Messages API.
// Anthropic has no embeddings endpoint, so Embed always fails ModelInvalid;
// an Adapter configured with model_backend=anthropic must be paired with a
// retrieval index that falls back to lexical search, or with an OpenAI
// backend dedicated to Embed calls.
type AnthropicBackend struct {
	sdk   anthropic.Client
	model string
}

// NewAnthropicBackend constructs a backend from config, injecting httpClient
// (already instrumented with otelhttp) rather than letting the SDK build its
// own.
func NewAnthropicBackend(cfg config.AnthropicConfig, httpClient *http.Client) *AnthropicBackend {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &AnthropicBackend{sdk: anthropic.NewClient(opts...), model: model}
}

func (b *AnthropicBackend) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	userText := req.UserPrompt
	if len(req.Context) > 0 {
		userText = strings.Join(req.Context, "\n---\n") + "\n\n" + req.UserPrompt
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userText)),
		},
	}
	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}

	resp, err := b.sdk.Messages.New(ctx, params)
	if err != nil {
		return CompletionResult{}, classifyAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	if sb.Len() == 0 {
		return CompletionResult{}, newError(KindInvalid, nil)
	}

	return CompletionResult{
		Text:             sb.String(),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func (b *AnthropicBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, newError(KindInvalid, nil)
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return newError(KindUnavailable, err)
	}
	switch apiErr.StatusCode {
	case http.StatusTooManyRequests:
		return newError(KindThrottled, err)
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusUnauthorized, http.StatusForbidden:
		return newError(KindRejected, err)
	default:
		return newError(KindUnavailable, err)
	}
}
