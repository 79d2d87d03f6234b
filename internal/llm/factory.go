package llm

import (
	"context"
	"fmt"
)

// FactoryConfig is the subset of config.LLMConfig the factory needs. It
// is a plain struct (rather than importing internal/config) to keep the
// dependency pointed from config -> llm, not the reverse.
type FactoryConfig struct {
	Provider      string // "anthropic", "openai", "bedrock", "local"
	Model         string
	APIKey        string
	LocalEndpoint string
	ReactFallback bool
}

// New selects and constructs a Provider per cfg.Provider, wrapping it in
// the ReAct adapter when the backend lacks native tool support or the
// caller forces it via ReactFallback.
func New(ctx context.Context, cfg FactoryConfig) (Provider, error) {
	var (
		provider Provider
		err      error
	)
	switch cfg.Provider {
	case "anthropic":
		provider, err = NewAnthropicProvider(AnthropicConfig{APIKey: cfg.APIKey, DefaultModel: cfg.Model})
	case "openai":
		provider, err = NewOpenAIProvider(OpenAIConfig{APIKey: cfg.APIKey, DefaultModel: cfg.Model})
	case "bedrock":
		provider, err = NewBedrockProvider(ctx, BedrockConfig{DefaultModel: cfg.Model})
	case "local":
		provider, err = NewOpenAIProvider(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.LocalEndpoint, DefaultModel: cfg.Model})
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.ReactFallback || !provider.SupportsTools() {
		return NewReActProvider(provider), nil
	}
	return provider, nil
}
