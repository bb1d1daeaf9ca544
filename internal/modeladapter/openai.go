package modeladapter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"sentinel/internal/config"
)

// OpenAIBackend implements Backend against the OpenAI chat-completions and
// embeddings APIs. Used either as the sole backend (model_backend=openai)
// or paired with AnthropicBackend to supply Embed when Anthropic completes.
type OpenAIBackend struct {
	sdk        sdk.Client
	chatModel  string
	embedModel string
}

func NewOpenAIBackend(cfg config.OpenAIConfig, httpClient *http.Client) *OpenAIBackend {
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
	chatModel := strings.TrimSpace(cfg.ChatModel)
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	embedModel := strings.TrimSpace(cfg.EmbedModel)
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}
	return &OpenAIBackend{sdk: sdk.NewClient(opts...), chatModel: chatModel, embedModel: embedModel}
}

func (b *OpenAIBackend) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	userText := req.UserPrompt
	if len(req.Context) > 0 {
		userText = strings.Join(req.Context, "\n---\n") + "\n\n" + req.UserPrompt
	}

	messages := []sdk.ChatCompletionMessageParamUnion{}
	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		messages = append(messages, sdk.SystemMessage(sys))
	}
	messages = append(messages, sdk.UserMessage(userText))

	params := sdk.ChatCompletionNewParams{
		Model:    b.chatModel,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(req.MaxTokens)
	}

	resp, err := b.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return CompletionResult{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, newError(KindInvalid, nil)
	}

	return CompletionResult{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func (b *OpenAIBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	params := sdk.EmbeddingNewParams{
		Model: b.embedModel,
		Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	}
	resp, err := b.sdk.Embeddings.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, newError(KindInvalid, nil)
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *sdk.Error
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
