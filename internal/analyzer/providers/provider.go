// Package providers holds the language-model clients the analyzer can use.
package providers

import (
	"context"
	"fmt"

	"github.com/ibeckermayer/tganalytics/internal/config"
)

// Request is a single-turn completion request
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Provider turns a prompt into model text
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// New returns the provider named in the config
func New(ctx context.Context, cfg config.AnalysisConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey), nil
	case config.ProviderAnthropic:
		return NewAnthropicProvider(cfg.APIKey), nil
	case config.ProviderGemini:
		return NewGeminiProvider(ctx, cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
