package providers

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/ibeckermayer/tganalytics/internal/config"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

// GeminiProvider implements Provider with the Gemini API
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string {
	return config.ProviderGemini
}

// Complete asks for a JSON response
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	result, err := p.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens:   int32(req.MaxTokens),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &types.ProviderError{
				Provider: p.Name(),
				Kind:     types.ProviderKindForStatus(apiErr.Code),
				Status:   apiErr.Code,
				Err:      err,
			}
		}
		return "", &types.ProviderError{Provider: p.Name(), Kind: types.ProviderTransport, Err: fmt.Errorf("failed to call Gemini API: %w", err)}
	}

	text := result.Text()
	if text == "" {
		return "", &types.ProviderError{Provider: p.Name(), Kind: types.ProviderTransport, Err: errors.New("Gemini returned empty response")}
	}
	return text, nil
}
