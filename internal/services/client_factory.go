package services

import (
	"fmt"
	"strings"

	"bytedge/internal/config"
	"bytedge/internal/logger"
	"bytedge/pkg/edgetypes"
)

// NewClient returns a client for provider using apiKey and model.
// An empty model selects the provider default. opts apply to the SDK client.
func NewClient(provider, apiKey, model string, opts ...ClientOption) (edgetypes.LLMClient, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return nil, fmt.Errorf("provider cannot be empty")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key cannot be empty for provider '%s'", provider)
	}

	var client edgetypes.LLMClient
	switch provider {
	case config.ProviderGemini:
		client = NewGeminiClient(apiKey, model, opts...)
	case config.ProviderOpenAI:
		client = NewOpenAIClient(apiKey, model, opts...)
	case config.ProviderAnthropic:
		client = NewAnthropicClient(apiKey, model, opts...)
	default:
		return nil, fmt.Errorf("unsupported provider '%s'. Supported providers: %s",
			provider, strings.Join(config.SupportedProviders, ", "))
	}

	logger.ServiceOperation("client_factory", "create", "provider", provider, "model", model)
	return client, nil
}
