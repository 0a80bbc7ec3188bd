package ai

import (
	"context"
	"fmt"
)

// AnthropicConfig placeholder for anthropic integration configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// AnthropicGenerator is a stub implementation that can be expanded once the
// SDK is adopted.
type AnthropicGenerator struct{}

// NewAnthropicGenerator constructs a new stub generator.
func NewAnthropicGenerator(cfg AnthropicConfig) (*AnthropicGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	return &AnthropicGenerator{}, nil
}

// Generate is not yet implemented for Anthropic models.
func (a *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("%w: anthropic generator not implemented", ErrModelUnavailable)
}
