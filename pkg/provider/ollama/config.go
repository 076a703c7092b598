package ollama

import "time"

// Config holds configuration for the Ollama provider adapter.
type Config struct {
	// BaseURL is the Ollama server URL (e.g., "http://localhost:11434").
	BaseURL string

	// Timeout for non-streaming HTTP requests. Defaults to 120s.
	// Streaming requests are bounded by their context instead.
	Timeout time.Duration
}

// DefaultConfig returns a Config pointing at a local Ollama server.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:11434",
		Timeout: 120 * time.Second,
	}
}
