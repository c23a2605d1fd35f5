package llm

import (
	"context"
	"time"
)

// Service is the text-completion capability consumed by the pipeline stages.
// A nil Service means degraded mode: every stage uses its deterministic
// fallback.
type Service interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Configure(config Config) error
}

// Config represents a single provider configuration
type Config struct {
	Provider    string        `json:"provider"` // gemini, openai, anthropic, ollama
	Model       string        `json:"model"`
	APIKey      string        `json:"api_key,omitempty"`
	BaseURL     string        `json:"base_url,omitempty"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
}

// CompletionRequest is one prompt sent to a model
type CompletionRequest struct {
	// System carries standing instructions where the provider supports them
	System string
	Prompt string
	// MaxTokens overrides the configured limit when positive
	MaxTokens int
}

// CompletionResponse is the raw text a model returned
type CompletionResponse struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Provider constants for different LLM providers
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Model constants used when none is configured
const (
	ModelGeminiFlash = "gemini-2.0-flash"
	ModelGPT4oMini   = "gpt-4o-mini"
	ModelClaudeHaiku = "claude-3-5-haiku-latest"
	ModelLlama3      = "llama3"
)

// DefaultModel returns the model used for provider when none is configured
func DefaultModel(provider string) string {
	switch provider {
	case ProviderGemini:
		return ModelGeminiFlash
	case ProviderOpenAI:
		return ModelGPT4oMini
	case ProviderAnthropic:
		return ModelClaudeHaiku
	case ProviderOllama:
		return ModelLlama3
	default:
		return ""
	}
}

// DefaultBaseURL returns the public endpoint of provider
func DefaultBaseURL(provider string) string {
	switch provider {
	case ProviderGemini:
		return "https://generativelanguage.googleapis.com/v1beta"
	case ProviderOpenAI:
		return "https://api.openai.com/v1"
	case ProviderAnthropic:
		return "https://api.anthropic.com/v1"
	case ProviderOllama:
		return "http://localhost:11434"
	default:
		return ""
	}
}
