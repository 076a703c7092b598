package vllm

import "time"

// Config holds configuration for the vLLM provider adapter.
type Config struct {
	// BaseURL is the vLLM server URL (e.g., "http://localhost:8000").
	BaseURL string

	// APIKey for backend authentication (optional).
	APIKey string

	// Timeout for non-streaming HTTP requests. Defaults to 120s.
	// Streaming requests are bounded by their context instead.
	Timeout time.Duration
}

// DefaultConfig returns a Config pointing at a local vLLM server.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8000",
		Timeout: 120 * time.Second,
	}
}
