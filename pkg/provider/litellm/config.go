package litellm

import "time"

// Config holds configuration for the LiteLLM provider adapter.
type Config struct {
	// BaseURL is the LiteLLM proxy URL (e.g., "http://localhost:4000").
	BaseURL string

	// APIKey for LiteLLM authentication (optional).
	APIKey string

	// Timeout for non-streaming HTTP requests. Defaults to 120s.
	// Streaming requests are bounded by their context instead.
	Timeout time.Duration

	// ModelMapping maps requested model names to LiteLLM model identifiers.
	// For example: {"qwen3": "ollama/qwen3", "gpt-4": "openai/gpt-4"}.
	// If a model is not in the map, it is passed through unchanged.
	ModelMapping map[string]string
}

// DefaultConfig returns a Config pointing at a local LiteLLM proxy.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:4000",
		Timeout: 120 * time.Second,
	}
}
