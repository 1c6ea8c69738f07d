package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ibeckermayer/tganalytics/internal/config"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

// AnthropicProvider implements Provider using Anthropic's Claude API
type AnthropicProvider struct {
	client *anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &AnthropicProvider{client: &client}
}

func (p *AnthropicProvider) Name() string {
	return config.ProviderAnthropic
}

// Complete prefills "{" so Claude continues with a JSON object
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		System:      []anthropic.TextBlockParam{{Text: req.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock("{")),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &types.ProviderError{
				Provider: p.Name(),
				Kind:     types.ProviderKindForStatus(apiErr.StatusCode),
				Status:   apiErr.StatusCode,
				Err:      err,
			}
		}
		return "", &types.ProviderError{Provider: p.Name(), Kind: types.ProviderTransport, Err: fmt.Errorf("failed to call Claude API: %w", err)}
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			// The reply continues after the prefilled "{"
			return "{" + block.Text, nil
		}
	}
	return "", &types.ProviderError{Provider: p.Name(), Kind: types.ProviderTransport, Err: errors.New("Claude returned empty response")}
}
