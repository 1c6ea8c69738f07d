package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/ibeckermayer/tganalytics/internal/config"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

// OpenAIProvider implements Provider with the chat completions API
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey)}
}

func (p *OpenAIProvider) Name() string {
	return config.ProviderOpenAI
}

// Complete sends a system + user message pair. JSON mode is requested so
// the reply is a single object.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", p.wrap(err)
	}
	if len(resp.Choices) == 0 {
		return "", &types.ProviderError{Provider: p.Name(), Kind: types.ProviderTransport, Err: errors.New("no choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) wrap(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &types.ProviderError{
			Provider: p.Name(),
			Kind:     types.ProviderKindForStatus(apiErr.HTTPStatusCode),
			Status:   apiErr.HTTPStatusCode,
			Err:      err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &types.ProviderError{
			Provider: p.Name(),
			Kind:     types.ProviderKindForStatus(reqErr.HTTPStatusCode),
			Status:   reqErr.HTTPStatusCode,
			Err:      err,
		}
	}
	return &types.ProviderError{Provider: p.Name(), Kind: types.ProviderTransport, Err: fmt.Errorf("failed to call OpenAI API: %w", err)}
}
