package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"bytedge/internal/logger"
	"bytedge/pkg/edgetypes"
)

// DefaultAnthropicModel is used when no model is configured for the anthropic provider.
const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicClient implements edgetypes.LLMClient over the Anthropic Messages API.
type AnthropicClient struct {
	apiKey   string
	model    string
	settings clientSettings

	mu     sync.Mutex
	client *anthropic.Client
}

// NewAnthropicClient creates an Anthropic client with lazy initialization.
func NewAnthropicClient(apiKey, model string, opts ...ClientOption) *AnthropicClient {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicClient{
		apiKey:   apiKey,
		model:    model,
		settings: newClientSettings(opts),
	}
}

// GetProviderName returns the provider name for this client.
func (c *AnthropicClient) GetProviderName() string {
	return "anthropic"
}

// IsConfigured returns true if the client has an API key.
func (c *AnthropicClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Model returns the model id requests are sent to.
func (c *AnthropicClient) Model() string {
	return c.model
}

func (c *AnthropicClient) initializeClientIfNeeded() (*anthropic.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured")
	}

	options := []option.RequestOption{option.WithAPIKey(c.apiKey)}
	if c.settings.baseURL != "" {
		options = append(options, option.WithBaseURL(c.settings.baseURL+"/"))
	}
	if c.settings.httpClient != nil {
		options = append(options, option.WithHTTPClient(c.settings.httpClient))
	}
	if c.settings.maxRetries >= 0 {
		options = append(options, option.WithMaxRetries(c.settings.maxRetries))
	}

	client := anthropic.NewClient(options...)
	c.client = &client
	logger.Debug("Anthropic client initialized", "provider", "anthropic", "model", c.model)
	return c.client, nil
}

// Generate sends the prompt as one user message and concatenates the returned text blocks.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string, opts edgetypes.GenerationOptions) (string, error) {
	client, err := c.initializeClientIfNeeded()
	if err != nil {
		return "", err
	}

	maxTokens := int64(opts.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = int64(edgetypes.DefaultGenerationOptions().MaxOutputTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	// The API rejects requests that set both temperature and top_p on some models;
	// temperature wins when both are configured.
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	} else if opts.TopP > 0 {
		params.TopP = anthropic.Float(opts.TopP)
	}
	if opts.TopK > 0 {
		params.TopK = anthropic.Int(int64(opts.TopK))
	}

	message, err := client.Messages.New(ctx, params)
	if err != nil {
		logger.Error("Anthropic request failed", "model", c.model, "error", err)
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		b.WriteString(block.Text)
	}

	content := b.String()
	logger.Debug("Anthropic response received", "model", c.model, "content_length", len(content))
	return content, nil
}
