package ai

import (
	"context"
	"fmt"
)

// ---------------------------------------------------------------------------
// Provider kinds
// ---------------------------------------------------------------------------

// ProviderKind identifies a supported AI backend.
type ProviderKind string

const (
	ProviderBedrock ProviderKind = "bedrock"
	ProviderOllama  ProviderKind = "ollama"
)

// ---------------------------------------------------------------------------
// Provider interface
// ---------------------------------------------------------------------------

// Provider is the contract every AI backend must satisfy. Mind-map
// generation is single-turn: one prompt in, one completion out.
type Provider interface {
	// Generate produces a single, complete completion for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Name returns a human-readable provider name, e.g. "bedrock" or "ollama".
	Name() string

	// Close releases any resources held by the provider (e.g. HTTP clients).
	Close() error
}

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// ProviderConfig holds all configuration accepted by NewProvider.
type ProviderConfig struct {
	Kind   ProviderKind `json:"kind"`
	Region string       `json:"region,omitempty"` // AWS region for Bedrock
	Model  string       `json:"model,omitempty"`  // default model ID

	// Ollama-specific
	OllamaURL string `json:"ollama_url,omitempty"` // e.g. "http://localhost:11434"

	// Credential supplies the user's API key at call time. May be nil;
	// Bedrock ignores it (ambient AWS credentials), Ollama sends it as a
	// bearer token when present.
	Credential func() string `json:"-"`
}

// Validate checks that required fields are set.
func (c ProviderConfig) Validate() error {
	switch c.Kind {
	case ProviderBedrock:
		if c.Region == "" {
			return fmt.Errorf("ai: bedrock provider requires region")
		}
	case ProviderOllama:
		if c.OllamaURL == "" {
			return fmt.Errorf("ai: ollama provider requires ollama_url")
		}
	default:
		return fmt.Errorf("ai: unknown provider kind %q", c.Kind)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Factory
// ---------------------------------------------------------------------------

// NewProvider creates a concrete Provider from configuration.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case ProviderBedrock:
		return newBedrockProvider(ctx, cfg)
	case ProviderOllama:
		return newOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("ai: unsupported provider %q", cfg.Kind)
	}
}
