package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name          string
		provider      string
		apiKey        string
		model         string
		expectError   string
		expectedName  string
		expectedModel string
	}{
		{name: "gemini default model", provider: "gemini", apiKey: "k", expectedName: "gemini", expectedModel: DefaultGeminiModel},
		{name: "openai explicit model", provider: "openai", apiKey: "k", model: "gpt-4o", expectedName: "openai", expectedModel: "gpt-4o"},
		{name: "anthropic mixed case", provider: " Anthropic ", apiKey: "k", expectedName: "anthropic", expectedModel: DefaultAnthropicModel},
		{name: "empty provider", provider: "", apiKey: "k", expectError: "provider cannot be empty"},
		{name: "empty api key", provider: "openai", apiKey: "", expectError: "API key cannot be empty for provider 'openai'"},
		{name: "unsupported provider", provider: "bard", apiKey: "k", expectError: "unsupported provider 'bard'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.provider, tt.apiKey, tt.model)
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedName, client.GetProviderName())
			assert.True(t, client.IsConfigured())

			reporter, ok := client.(modelReporter)
			require.True(t, ok)
			assert.Equal(t, tt.expectedModel, reporter.Model())
		})
	}
}
