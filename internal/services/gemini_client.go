package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"bytedge/internal/logger"
	"bytedge/pkg/edgetypes"
)

// DefaultGeminiModel is used when no model is configured for the gemini provider.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient implements edgetypes.LLMClient for the Google Gemini API.
// The SDK client is created on the first Generate call.
type GeminiClient struct {
	apiKey   string
	model    string
	settings clientSettings

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiClient creates a Gemini client with lazy initialization.
func NewGeminiClient(apiKey, model string, opts ...ClientOption) *GeminiClient {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{
		apiKey:   apiKey,
		model:    model,
		settings: newClientSettings(opts),
	}
}

// GetProviderName returns the provider name for this client.
func (c *GeminiClient) GetProviderName() string {
	return "gemini"
}

// IsConfigured returns true if the client has an API key.
func (c *GeminiClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Model returns the model id requests are sent to.
func (c *GeminiClient) Model() string {
	return c.model
}

func (c *GeminiClient) initializeClientIfNeeded(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.settings.httpClient != nil {
		clientConfig.HTTPClient = c.settings.httpClient
	}
	if c.settings.baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: c.settings.baseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	logger.Debug("Gemini client initialized", "provider", "gemini", "model", c.model)
	c.client = client
	return client, nil
}

// Generate sends the prompt as a single user turn and returns the concatenated text parts.
// Thought parts are dropped.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, opts edgetypes.GenerationOptions) (string, error) {
	client, err := c.initializeClientIfNeeded(ctx)
	if err != nil {
		return "", err
	}

	result, err := client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), buildGeminiConfig(opts))
	if err != nil {
		logger.Error("Gemini request failed", "model", c.model, "error", err)
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	content := extractGeminiText(result)
	logger.Debug("Gemini response received", "model", c.model, "content_length", len(content))
	return content, nil
}

func buildGeminiConfig(opts edgetypes.GenerationOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if opts.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxOutputTokens)
	}
	if opts.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.TopP > 0 {
		config.TopP = genai.Ptr(float32(opts.TopP))
	}
	if opts.TopK > 0 {
		config.TopK = genai.Ptr(float32(opts.TopK))
	}
	return config
}

func extractGeminiText(result *genai.GenerateContentResponse) string {
	if result == nil {
		return ""
	}

	var b strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
		// Only the first candidate with content is used.
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}
