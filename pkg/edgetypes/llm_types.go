// Package edgetypes defines the shared data types for BytEdge.
// This file contains the generation capability interfaces implemented by provider clients.
package edgetypes

import "context"

// GenerationOptions are the fixed sampling parameters sent with every generation call.
type GenerationOptions struct {
	MaxOutputTokens int     `mapstructure:"max_output_tokens" json:"max_output_tokens"`
	Temperature     float64 `mapstructure:"temperature" json:"temperature"`
	TopP            float64 `mapstructure:"top_p" json:"top_p"`
	TopK            int     `mapstructure:"top_k" json:"top_k"`
}

// DefaultGenerationOptions returns the generation parameters used when none are configured.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		MaxOutputTokens: 2048,
		Temperature:     0.7,
		TopP:            0.8,
		TopK:            40,
	}
}

// Generator turns a flattened prompt into generated text.
// Implementations make a single round trip and keep no conversation state.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error)
}

// LLMClient is a Generator backed by a concrete provider SDK.
type LLMClient interface {
	Generator

	// GetProviderName returns the name of the provider (e.g., "gemini", "openai").
	GetProviderName() string

	// IsConfigured returns true if the client has the credentials it needs to make requests.
	IsConfigured() bool
}
