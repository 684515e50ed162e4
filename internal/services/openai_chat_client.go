package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"bytedge/internal/logger"
	"bytedge/pkg/edgetypes"
)

// DefaultOpenAIModel is used when no model is configured for the openai provider.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient implements edgetypes.LLMClient over the OpenAI Chat Completions API.
// The chat API has no top_k; that option is ignored.
type OpenAIClient struct {
	apiKey   string
	model    string
	settings clientSettings

	mu     sync.Mutex
	client *openai.Client
}

// NewOpenAIClient creates an OpenAI client with lazy initialization.
func NewOpenAIClient(apiKey, model string, opts ...ClientOption) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{
		apiKey:   apiKey,
		model:    model,
		settings: newClientSettings(opts),
	}
}

// GetProviderName returns the provider name for this client.
func (c *OpenAIClient) GetProviderName() string {
	return "openai"
}

// IsConfigured returns true if the client has an API key.
func (c *OpenAIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Model returns the model id requests are sent to.
func (c *OpenAIClient) Model() string {
	return c.model
}

func (c *OpenAIClient) initializeClientIfNeeded() (*openai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
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

	client := openai.NewClient(options...)
	c.client = &client
	logger.Debug("OpenAI client initialized", "provider", "openai", "model", c.model)
	return c.client, nil
}

// Generate sends the prompt as one user message and returns the first choice's content.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts edgetypes.GenerationOptions) (string, error) {
	client, err := c.initializeClientIfNeeded()
	if err != nil {
		return "", err
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if opts.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxOutputTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = openai.Float(opts.TopP)
	}

	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Error("OpenAI request failed", "model", c.model, "error", err)
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	content := completion.Choices[0].Message.Content
	logger.Debug("OpenAI response received", "model", c.model, "content_length", len(content))
	return content, nil
}
